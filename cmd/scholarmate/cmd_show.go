package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"scholarmate/internal/store"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show [analysis-id]",
	Short: "Render a stored analysis report in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print raw markdown instead of rendering")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Store.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	analysis, err := st.GetAnalysis(args[0])
	if err != nil {
		return err
	}

	report := analysis.Result.Markdown()
	if showRaw {
		fmt.Print(report)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fall back to raw markdown on dumb terminals.
		fmt.Print(report)
		return nil
	}

	out, err := renderer.Render(report)
	if err != nil {
		fmt.Print(report)
		return nil
	}
	fmt.Print(out)
	return nil
}
