package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"passi/internal/amqp"
	"passi/internal/cli"
	apphttp "passi/internal/http"
	"passi/internal/services"
	"passi/internal/store"
	"passi/internal/store/memory"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	// Choose data backend (default: sqlite).
	var st store.Store
	switch cfg.DataBackend {
	case "memory":
		st = memory.New()
		logger.Info("Initialized memory backend")
	default:
		st = cli.InitSQLite(logger, cfg.SQLiteDBPath)
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	}

	// AMQP is optional: without it entries are stored but never
	// exported to Google Sheets by the worker.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSyncQueue, cfg.AMQPRecapQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export sync", "error", err)
			amqpClient = nil
		} else {
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - entries will not sync to Google Sheets")
	}

	service := services.NewStepsService(st, amqpClient)
	defer service.Close()

	srv := apphttp.NewServer(":"+cfg.Port, service)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting passi server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
