package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scholarmate/internal/execute"
	"scholarmate/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run [analysis-id]",
	Short: "Execute the reproduction code of a stored analysis",
	Long: `Runs the generated experiment script in a constrained subprocess:
imports are checked against the configured allow-list, execution is
capped by a hard timeout, and stdout/stderr are captured line by line.
The execution record is stored alongside the analysis.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func runExecute(cmd *cobra.Command, args []string) error {
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

	runner := execute.NewRunner(cfg, logger)
	result, err := runner.Run(cmd.Context(), analysis.Result.Code)
	if err != nil {
		return err
	}

	if _, err := st.SaveExecution(analysis.ID, result); err != nil {
		return err
	}

	fmt.Println(result.Output)
	if result.Success {
		fmt.Printf("Finished in %s.\n", result.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("Execution failed (exit code %d).\n", result.ExitCode)
	}
	return nil
}
