package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scholarmate/internal/store"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export [analysis-id]",
	Short: "Write a stored analysis to files",
	Long:  `Writes report.md, experiment.py, and slides.json for a stored analysis.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", ".", "output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
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

	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	slides, err := json.MarshalIndent(analysis.Result.Slides, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal slides: %w", err)
	}

	files := map[string][]byte{
		"report.md":     []byte(analysis.Result.Markdown()),
		"experiment.py": []byte(analysis.Result.Code + "\n"),
		"slides.json":   slides,
	}
	for name, data := range files {
		path := filepath.Join(exportDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		fmt.Println("Wrote", path)
	}
	return nil
}
