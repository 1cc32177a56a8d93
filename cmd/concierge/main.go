package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/ent0n29/concierge/internal/app"
	"github.com/ent0n29/concierge/internal/config"
	"github.com/ent0n29/concierge/internal/httpapi"
	"github.com/ent0n29/concierge/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "concierge:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// The terminal belongs to the UI; logs go to a file.
	logFile, err := tea.LogToFile(cfg.LogFile, "concierge")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	built, err := app.BuildClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()
	logger.Info("client ready", "transport", cfg.RealtimeTransport, "devices", built.Devices, "server", cfg.ServerURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := built.Session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("session loop stopped", "error", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: httpapi.MetricsRouter(built.Metrics)}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics listener stopped", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	program := tea.NewProgram(tui.New(ctx, built.Session, built.Feed), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
