package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tally/internal/audit"
	"tally/internal/cli"
	"tally/internal/events"
	apphttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	var publisher services.Publisher
	if cfg.EventsEnabled() {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to initialize events client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		slog.Info("Events client initialized", "exchange", cfg.AMQPExchange)
	} else {
		slog.Info("Events disabled - no AMQP URL provided")
	}

	svc := services.New(cfg, audit.NewLog(cfg.AuditLogPath), publisher)
	srv := apphttp.NewServer(cfg, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	slog.Info("Starting tallyd", "addr", cfg.HTTPAddr, "data_dir", cfg.DataDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", log.FieldError, err, "addr", cfg.HTTPAddr)
		os.Exit(1)
	}

	<-ctx.Done()
	if err := svc.Close(); err != nil {
		slog.Error("Service close error", log.FieldError, err)
	}
	slog.Info("Server stopped gracefully")
}
