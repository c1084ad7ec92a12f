package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"scribe/patient"
)

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "List stored patients",
	Run:   runPatients,
}

func runPatients(cmd *cobra.Command, args []string) {
	mainLogger := createLogger().With().WithPrefix("main")

	docs, err := openDocs(mainLogger.With().WithPrefix("data"))
	if err != nil {
		mainLogger.Fatal("open store", "error", err.Error())
	}
	patients, err := patient.NewStore(docs)
	if err != nil {
		mainLogger.Fatal("load patients", "error", err.Error())
	}

	list := patients.List()
	if len(list) == 0 {
		fmt.Println("No patients found.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "DOB", "MRN", "Conditions", "Visits", "Last Visit"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, p := range list {
		lastVisit := ""
		if n := len(p.Visits); n > 0 {
			lastVisit = p.Visits[n-1].Timestamp
		}
		table.Append([]string{
			p.ID,
			p.Name,
			p.DOB,
			p.MRN,
			p.Conditions,
			fmt.Sprintf("%d", len(p.Visits)),
			lastVisit,
		})
	}

	table.Render()
}
