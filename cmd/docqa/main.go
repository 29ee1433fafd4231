package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/infrastructure/config"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/database"
	httpapi "github.com/0xcro3dile/docqa-go/internal/infrastructure/http"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/http/middleware"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/providers"
	iredis "github.com/0xcro3dile/docqa-go/internal/infrastructure/redis"
)

const pdfServiceReadyTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := providers.New(cfg, providers.WithLogger(slog.Default()))
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing providers", "error", err)
		}
	}()

	// PDF text extraction sidecar
	if cfg.PDF.ScriptDir != "" {
		stopPDF, err := f.PDFParser().StartService(ctx, cfg.PDF.ScriptDir, pdfServiceReadyTimeout)
		if err != nil {
			return err
		}
		defer stopPDF()
	}

	orchestrator, err := f.Orchestrator(ctx)
	if err != nil {
		return err
	}
	files, err := f.FileIngester(ctx)
	if err != nil {
		return err
	}

	routerCfg := httpapi.RouterConfig{CORSAllowedOrigins: cfg.CORS.Origins}

	if cfg.VectorDB.Provider == config.StorePGVector {
		pool, err := f.Postgres(ctx)
		if err != nil {
			return err
		}
		routerCfg.ReadinessChecks = append(routerCfg.ReadinessChecks, httpapi.HealthCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return database.HealthCheck(ctx, pool) },
		})
	}

	if usesRedis(cfg) {
		client, err := f.Redis(ctx)
		if err != nil {
			return err
		}
		routerCfg.ReadinessChecks = append(routerCfg.ReadinessChecks, httpapi.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return iredis.HealthCheck(ctx, client) },
		})
		if cfg.RateLimit.Enabled {
			routerCfg.RateLimiter = middleware.NewRateLimiter(client, cfg.RateLimit.Requests, cfg.RateLimit.Window).Middleware
		}
	}

	// Folder sync
	if cfg.Watcher.Dir != "" {
		folderSync, stopWatcher, err := f.FolderSync(ctx)
		if err != nil {
			return err
		}
		defer stopWatcher()
		go func() {
			if err := folderSync.Run(ctx, cfg.Watcher.Dir); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("folder sync stopped", "dir", cfg.Watcher.Dir, "error", err)
			}
		}()
	}

	handler := httpapi.NewHandler(orchestrator, files, httpapi.UploadOptions{
		MaxFiles: cfg.Upload.MaxFiles,
		MaxBytes: cfg.Upload.MaxBytes,
		Dir:      cfg.Upload.Dir,
	})
	router := httpapi.NewRouter(routerCfg, httpapi.HandlerSet{
		Ask:    handler.Ask,
		Upload: handler.Upload,
	})

	slog.Info("starting docqa",
		"llm", cfg.LLM.Provider,
		"embedding", cfg.Embedding.Provider,
		"vectordb", cfg.VectorDB.Provider,
	)
	return httpapi.NewServer(cfg.Server, router).Start(ctx)
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Redis.Enabled ||
		cfg.RateLimit.Enabled ||
		(cfg.Cache.Enabled && cfg.Cache.Backend == config.CacheRedis)
}

func setupLogger(cfg config.LogConfig, out io.Writer) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}
