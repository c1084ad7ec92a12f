package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"scribe/app"
)

func init() {
	recordCmd.Flags().
		Bool("notes", false, "Generate medical notes when the recording stops")
	recordCmd.Flags().
		String("patient", "", "Patient ID to attach context and save the visit to")
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a dictation session in the terminal",
	Long:  `Record a dictation session from the microphone, streaming recognized text to the terminal. Stop with Ctrl-C.`,
	Run:   runRecord,
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff8800")).
			Bold(true)
	transcriptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff"))
)

func runRecord(cmd *cobra.Command, args []string) {
	a, err := newApp()
	if err != nil {
		logger.Fatal("start application", "error", err.Error())
	}

	patientID, _ := cmd.Flags().GetString("patient")
	if patientID != "" {
		if err := a.SelectPatient(patientID); err != nil {
			logger.Fatal("select patient", "error", err.Error())
		}
	}

	ctx := context.Background()
	if err := a.StartRecording(ctx); err != nil {
		logger.Fatal("start recording", "error", err.Error())
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	lastStatus := ""
	printed := 0
	show := func() app.SessionState {
		snap := a.Snapshot()
		if snap.Status != lastStatus {
			lastStatus = snap.Status
			fmt.Println(statusStyle.Render(snap.Status))
		}
		if len(snap.Transcript) > printed {
			fmt.Print(transcriptStyle.Render(snap.Transcript[printed:]))
			printed = len(snap.Transcript)
		}
		return snap
	}

	// Recording only counts as over once it was actually running; right
	// after Start the session is still acquiring the microphone.
	sawRecording := false
loop:
	for {
		select {
		case <-sc:
			break loop
		case <-ticker.C:
			snap := show()
			if snap.IsRecording {
				sawRecording = true
			} else if sawRecording {
				break loop
			}
		}
	}

	if err := a.StopRecording(ctx); err != nil {
		logger.Error("stop recording", "error", err.Error())
	}
	show()
	fmt.Println()

	wantNotes, _ := cmd.Flags().GetBool("notes")
	if !wantNotes {
		return
	}

	snap := a.Snapshot()
	if strings.TrimSpace(snap.Transcript) == "" {
		logger.Error("nothing was transcribed, skipping note generation")
		return
	}

	fmt.Println(statusStyle.Render("Generating notes..."))
	if err := a.GenerateNotes(ctx); err != nil {
		logger.Error("generate notes", "error", err.Error())
		return
	}

	rendered, err := renderMarkdown(a.Snapshot().MedicalNotes)
	if err != nil {
		logger.Error("render notes", "error", err.Error())
		fmt.Println(a.Snapshot().MedicalNotes)
		return
	}
	fmt.Print(rendered)

	if patientID != "" {
		if err := a.SaveToPatient(); err != nil {
			logger.Error("save visit", "error", err.Error())
			return
		}
		fmt.Println(statusStyle.Render("Visit saved."))
	}
}

func renderMarkdown(text string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(78),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(text)
}
