// Command docqa-mcp serves the question answering pipeline as MCP tools over
// stdio. Stdout carries the protocol, so logs go to stderr.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xcro3dile/docqa-go/internal/infrastructure/config"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/mcp"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := providers.New(cfg, providers.WithLogger(slog.Default()))
	defer f.Close()

	orchestrator, err := f.Orchestrator(ctx)
	if err != nil {
		slog.Error("building query pipeline", "error", err)
		os.Exit(1)
	}

	if err := mcp.ServeStdio(mcp.NewServer(orchestrator)); err != nil {
		slog.Error("mcp server", "error", err)
		os.Exit(1)
	}
}
