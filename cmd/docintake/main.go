package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/piclane/DropboxAutomation/internal/config"
	httpserver "github.com/piclane/DropboxAutomation/internal/http"
	"github.com/piclane/DropboxAutomation/internal/services"
	"github.com/piclane/DropboxAutomation/internal/storage"
	"github.com/piclane/DropboxAutomation/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	if len(os.Args) > 1 && isFile(os.Args[1]) {
		runLocal(cfg, os.Args[1])
		return
	}

	runServer(cfg)
}

func runLocal(cfg config.Config, path string) {
	if err := cfg.Validate(false); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("running in local file mode", "path", path)

	wf := workflow.NewLocalWorkflow(services.NewClaudeService(cfg), services.NewPDFAnnotator())
	wf.Process(context.Background(), path)
}

func runServer(cfg config.Config) {
	if err := cfg.Validate(true); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbx := storage.NewDropboxClient(ctx, cfg)
	account, err := dbx.CurrentAccount(ctx)
	if err != nil {
		slog.Error("invalid Dropbox access token", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Dropbox", "account", account)

	cursor, err := dbx.LatestCursor(ctx, cfg.DropboxFolderPath)
	if err != nil {
		slog.Error("error initializing Dropbox cursor", "error", err)
		os.Exit(1)
	}

	remote := workflow.NewRemoteWorkflow(
		dbx,
		services.NewClaudeService(cfg),
		services.NewPDFAnnotator(),
		workflow.NewWatchState(cursor),
		cfg.FilePrefix,
	)

	srv := httpserver.NewServer(cfg, remote)
	if err := srv.Run(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
