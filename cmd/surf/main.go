// Command surf runs the browser task service: an HTTP endpoint that
// executes browser automation tasks under supervised deadlines with
// per-customer session persistence.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/config"
	"github.com/entrhq/surf/pkg/downloads"
	"github.com/entrhq/surf/pkg/logging"
	"github.com/entrhq/surf/pkg/orchestrator"
	"github.com/entrhq/surf/pkg/report"
	"github.com/entrhq/surf/pkg/server"
	"github.com/entrhq/surf/pkg/session"
	"github.com/entrhq/surf/pkg/task"
)

var version = "dev" // injected via ldflags at build time

type CLI struct {
	Config   string `short:"c" help:"Path to the YAML configuration file." type:"path"`
	Listen   string `short:"l" help:"HTTP listen address (overrides config)."`
	StateDir string `help:"Service state directory (overrides config)." type:"path"`
	Version  bool   `help:"Print version and exit."`
}

const sweepInterval = 5 * time.Minute

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("surf"),
		kong.Description("Browser task automation service."),
	)

	if cli.Version {
		fmt.Println("surf", version)
		return
	}

	kctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.Listen != "" {
		cfg.Listen = cli.Listen
	}
	if cli.StateDir != "" {
		cfg.StateDir = cli.StateDir
	}

	logging.SetLogDirectory(cfg.LogDir())
	logger, logErr := logging.NewLogger("surf")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "file logging unavailable: %v\n", logErr)
	}
	defer logger.Close()

	sessions := session.NewStore(cfg.AuthStorageDir, logger)
	reconciler, err := downloads.NewReconciler(os.TempDir(), cfg.ScratchGlob, cfg.DownloadsDir, logger)
	if err != nil {
		return err
	}
	aggregator := report.NewAggregator(logger)
	supervisor := task.NewSupervisor(logger)

	orch := orchestrator.New(cfg, sessions, reconciler, aggregator, logger,
		func(opts browser.DriverOptions) browser.Driver {
			return browser.NewPlaywrightDriver(opts)
		},
		newAgent,
	)

	srv := server.New(cfg, supervisor, orch, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go supervisor.RunSweeper(ctx, sweepInterval, cfg.TaskRetention)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("surf %s listening on %s", version, cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Infof("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
