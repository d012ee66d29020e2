package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"scholarmate/internal/pipeline"
	"scholarmate/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analyses",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Store.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	analyses, err := st.ListAnalyses()
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		fmt.Println("No analyses stored yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Paper", "Pages", "Model", "Validation", "Created"})
	for _, a := range analyses {
		validation := "issues"
		if strings.Contains(a.Validation, pipeline.CleanValidationSentinel) {
			validation = "clean"
		}
		t.AppendRow(table.Row{
			a.ID, a.Filename, a.Pages, a.Model, validation,
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	return nil
}
