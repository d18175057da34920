// Command offerctl prepares fixture data for the offer API: it imports TSV
// files into the configured store and generates random offers from a
// running service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/offerloader/internal/application"
	"github.com/JonMunkholm/offerloader/internal/cli"
	"github.com/JonMunkholm/offerloader/internal/config"
	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Logs go to stderr so they never mix with command output.
	logging.Setup(os.Stderr, "info", "text")

	// A missing .env is fine; the environment is used as is.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := cli.Env{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Config: cfg,
	}
	if cfg.Store.Driver != config.DriverNone {
		env.OpenSink = func(ctx context.Context) (core.Sink, func(), error) {
			app, err := application.New(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			slog.Info("importing into store", "driver", cfg.Store.Driver)
			return app.Sink, func() {
				if err := app.Close(context.Background()); err != nil {
					slog.Warn("close store", "error", err)
				}
			}, nil
		}
	}

	return cli.New(env).Run(ctx, os.Args[1:])
}
