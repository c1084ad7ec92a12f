package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scribe/notes"
	"scribe/patient"
	"scribe/settings"
)

func init() {
	generateCmd.Flags().
		String("patient", "", "Patient ID to include as context and save the visit to")
	generateCmd.Flags().
		Bool("save", false, "Save the generated notes as a visit (requires --patient)")
}

var generateCmd = &cobra.Command{
	Use:   "generate [transcript-file]",
	Short: "Generate medical notes from a transcript",
	Long:  `Generate structured medical notes from a transcript file, or from stdin when no file is given. The rendered notes print to the terminal as markdown.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) {
	mainLogger := createLogger().With().WithPrefix("main")

	transcript, err := readTranscript(args)
	if err != nil {
		mainLogger.Fatal("read transcript", "error", err.Error())
	}
	if strings.TrimSpace(transcript) == "" {
		mainLogger.Fatal("transcript is empty")
	}

	docs, err := openDocs(mainLogger.With().WithPrefix("data"))
	if err != nil {
		mainLogger.Fatal("open store", "error", err.Error())
	}
	prefs, err := settings.NewStore(docs)
	if err != nil {
		mainLogger.Fatal("load settings", "error", err.Error())
	}

	api := prefs.API()
	if !api.OpenAIConfigured() {
		if seed := flagSettings(); seed.OpenAIConfigured() {
			api = seed
		} else {
			mainLogger.Fatal(
				"missing OPENAI_ENDPOINT, OPENAI_KEY, or OPENAI_DEPLOYMENT",
			)
		}
	}

	patients, err := patient.NewStore(docs)
	if err != nil {
		mainLogger.Fatal("load patients", "error", err.Error())
	}

	var selected *patient.Patient
	patientID, _ := cmd.Flags().GetString("patient")
	if patientID != "" {
		p, ok := patients.Get(patientID)
		if !ok {
			mainLogger.Fatal("unknown patient", "id", patientID)
		}
		selected = &p
	}

	generator := notes.NewGenerator(mainLogger.With().WithPrefix("notes"))
	text, err := generator.Generate(
		context.Background(),
		transcript,
		selected,
		prefs.Preferences(),
		api,
	)
	if err != nil {
		mainLogger.Fatal("generate notes", "error", err.Error())
	}

	rendered, err := renderMarkdown(text)
	if err != nil {
		fmt.Println(text)
	} else {
		fmt.Print(rendered)
	}

	save, _ := cmd.Flags().GetBool("save")
	if !save {
		return
	}
	if selected == nil {
		mainLogger.Fatal("--save requires --patient")
	}
	if _, err := patients.AppendVisit(selected.ID, transcript, text); err != nil {
		mainLogger.Fatal("save visit", "error", err.Error())
	}
	fmt.Println(statusStyle.Render("Visit saved for " + selected.Name + "."))
}

func readTranscript(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
