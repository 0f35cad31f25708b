package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"safety-telemetry-service/internal/api"
	"safety-telemetry-service/internal/config"
	"safety-telemetry-service/internal/db"
	"safety-telemetry-service/internal/kafka"
	"safety-telemetry-service/internal/logging"
	"safety-telemetry-service/internal/providers"
	"safety-telemetry-service/internal/services"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// SOS notifier is optional
	var notifier services.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier = providers.NewTelegram(cfg, logger)
	} else {
		logger.Warnf("TELEGRAM_BOT_TOKEN not set, SOS notifications disabled")
	}

	// Initialize the fusion engine
	hub := api.NewHub(logger)
	engine := services.NewEngine(cfg, dbConn, notifier, hub, logger)
	defer engine.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.LoadSnapshots(ctx); err != nil {
		logger.Errorf("Failed to load snapshots: %v", err)
		log.Fatalf("Snapshot load failed: %v", err)
	}

	// Start Kafka consumers
	consumer := kafka.NewConsumer(cfg, engine, logger)
	var wg sync.WaitGroup
	consumer.Start(ctx, &wg)

	// Start API server
	router := api.NewRouter(engine, hub, logger, cfg)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	consumer.Close()
	hub.Close()
	wg.Wait()
	logger.Infof("Service stopped")
}
