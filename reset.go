package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"scribe/patient"
	"scribe/settings"
	"scribe/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all stored patients, preferences, and API settings",
	Run:   runReset,
}

func runReset(cmd *cobra.Command, args []string) {
	mainLogger := createLogger().With().WithPrefix("main")

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Delete all stored data?").
				Description("Every patient, visit, preference, and API setting will be removed.").
				Affirmative("Delete everything").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		mainLogger.Fatal("confirmation prompt", "error", err.Error())
	}
	if !confirmed {
		fmt.Println("Nothing was deleted.")
		return
	}

	docs, err := openDocs(mainLogger.With().WithPrefix("data"))
	if err != nil {
		mainLogger.Fatal("open store", "error", err.Error())
	}

	if err := docs.Save(store.KeyPatients, []patient.Patient{}); err != nil {
		mainLogger.Fatal("reset patients", "error", err.Error())
	}
	if err := docs.Save(store.KeyPreferences, settings.DefaultPreferences()); err != nil {
		mainLogger.Fatal("reset preferences", "error", err.Error())
	}
	if err := docs.Save(store.KeySettings, settings.API{}); err != nil {
		mainLogger.Fatal("reset settings", "error", err.Error())
	}

	fmt.Println("All stored data deleted.")
}
