package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passi/internal/amqp"
	"passi/internal/cli"
	"passi/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting passi-recap")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSyncQueue, cfg.AMQPRecapQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	service := services.NewStepsService(sqliteRepo, amqpClient)
	defer service.Close()

	scheduler := services.NewRecapScheduler(service, amqpClient)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run once on startup so a restart does not skip a window boundary
	// that passed while the process was down.
	if published, err := scheduler.ProcessDue(ctx, time.Now()); err != nil {
		logger.Error("Initial recap run failed", "error", err)
	} else {
		logger.Info("Initial recap run complete", "published", published)
	}

	ticker := time.NewTicker(cfg.RecapInterval)
	defer ticker.Stop()

	logger.Info("Recap scheduler running", "interval", cfg.RecapInterval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Recap scheduler shutdown complete")
			return
		case <-ticker.C:
			if published, err := scheduler.ProcessDue(ctx, time.Now()); err != nil {
				logger.Error("Recap run failed", "error", err)
			} else if published > 0 {
				logger.Info("Recaps published", "count", published)
			}
		}
	}
}
