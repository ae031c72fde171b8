package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tally/internal/cli"
	"tally/internal/events"
	"tally/internal/log"
	"tally/internal/mirror"
	"tally/internal/profile"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	slog.Info("Starting tally-worker")

	if !cfg.MirrorEnabled() {
		slog.Info("Mirror disabled - no spreadsheet ID provided, nothing to do")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sheets, err := mirror.NewSheetsClient(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsSheetName)
	if err != nil {
		slog.Error("Failed to initialize sheets client", log.FieldError, err)
		os.Exit(1)
	}
	slog.Info("Sheets client initialized",
		"spreadsheet_id", cfg.SheetsSpreadsheetID, "sheet", cfg.SheetsSheetName)

	profiles := profile.NewStore(cfg.DataDir, cfg.ArchiveDir)
	worker := mirror.NewWorker(profiles, sheets, cfg.MirrorBatchSize)
	defer worker.Close()

	// The broker is optional; without it the periodic sweep still mirrors
	// everything, just later.
	var source mirror.EventSource
	if cfg.EventsEnabled() {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to initialize events client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		source = client
		slog.Info("Consuming mutation events", "queue", cfg.AMQPQueue)
	} else {
		slog.Info("Events disabled - mirroring on the timer only")
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	slog.Info("Mirroring", "interval", cfg.MirrorInterval.String(), "batch_size", cfg.MirrorBatchSize)
	if err := worker.Run(ctx, source, cfg.MirrorInterval); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	slog.Info("Worker stopped gracefully")
}
