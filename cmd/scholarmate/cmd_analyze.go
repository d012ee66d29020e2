package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scholarmate/internal/document"
	"scholarmate/internal/gemini"
	"scholarmate/internal/pipeline"
	"scholarmate/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paper.pdf]",
	Short: "Run the full analysis pipeline on a research paper",
	Long: `Runs all seven generation stages against the configured Gemini models
and stores the completed analysis. Progress is printed as each stage
starts. A rate-limited call retries with exponential backoff; exhausting
every retry aborts the run without partial results.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc, err := document.Load(args[0], cfg.Pipeline.MaxContextChars)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %s (%d pages)\n", doc.Filename, doc.Pages)

	ctx := cmd.Context()

	client, err := gemini.NewClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := store.New(cfg.Store.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := pipeline.NewService(client, cfg, logger)
	res, model, err := svc.Analyze(ctx, doc, func(message string) {
		fmt.Println(message)
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	analysis, err := st.SaveAnalysis(doc.Filename, model, doc.Pages, res)
	if err != nil {
		return err
	}

	fmt.Printf("\nAnalysis complete: %s\n", analysis.ID)
	if res.ValidationClean() {
		fmt.Println("Validation: no issues found.")
	} else {
		fmt.Println("Validation: issues detected, see the report.")
	}
	fmt.Printf("View it with: scholarmate show %s\n", analysis.ID)
	return nil
}
