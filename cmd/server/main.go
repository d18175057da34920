package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/offerloader/internal/application"
	"github.com/JonMunkholm/offerloader/internal/config"
	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/logging"
	"github.com/JonMunkholm/offerloader/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Store.Driver == config.DriverNone {
		cfg.Store.Driver = config.DriverMemory
	}
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"import_failure_policy", cfg.Import.FailurePolicy,
		"host_lock", cfg.Redis.Addr != "",
	)
	slog.Debug("configuration", "config", cfg.String())

	ctx := context.Background()
	app, err := application.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			slog.Error("close error", "error", err)
		}
	}()

	importer, err := application.Importer(cfg, 0)
	if err != nil {
		slog.Error("invalid import configuration", "error", err)
		os.Exit(1)
	}

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	server := web.NewServer(web.Services{
		Offers:    app.Offers,
		Users:     app.Users,
		Comments:  app.Comments,
		Favorites: app.Favorites,
		Importer:  importer,
		Sink:      app.Sink,
		Limiter:   limiter,
	}, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
