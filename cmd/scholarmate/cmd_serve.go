package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scholarmate/internal/execute"
	"scholarmate/internal/gemini"
	"scholarmate/internal/pipeline"
	"scholarmate/internal/server"
	"scholarmate/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves the analysis pipeline over HTTP. POST /api/analyze accepts a
multipart PDF upload and streams NDJSON progress events; stored analyses
are available under /api/analyses.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

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

	runner := execute.NewRunner(cfg, logger)
	svc := pipeline.NewService(client, cfg, logger)

	srv := server.New(cfg, st, runner, svc, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Stop()

	fmt.Printf("ScholarMate API listening on %s\n", srv.Addr())
	<-ctx.Done()
	fmt.Println("Shutting down.")
	return nil
}
