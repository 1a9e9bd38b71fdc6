// Package main is the entry point for the outreach engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/orbitcrm/outreach-engine/app/handlers"
	"github.com/orbitcrm/outreach-engine/app/router"
	"github.com/orbitcrm/outreach-engine/app/scheduler"
	"github.com/orbitcrm/outreach-engine/app/services"
	businessflow "github.com/orbitcrm/outreach-engine/business_flow"
	"github.com/orbitcrm/outreach-engine/config"
	"github.com/orbitcrm/outreach-engine/repository"
)

func main() {
	log.Println("Starting outreach engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newAppLogger(cfg.Logging)

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	redisClient, err := initializeRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	logRepo := repository.NewCampaignLogRepository(db)
	directory := repository.NewDirectoryRepository(db)

	// Services
	emailTransport := services.NewMockEmailTransport()
	messagingTransport := services.NewMockMessagingTransport()
	progress := services.NewRedisProgressPublisher(redisClient, logger)

	// Business flows
	resolver := businessflow.NewAudienceResolver(directory, recipientRepo, campaignRepo, db, cfg.Delivery.MaxRecipients)
	tagger := businessflow.NewLinkTagger(linkRepo, businessflow.LinkTaggerConfig{
		ShortLinkDomain: cfg.Links.ShortLinkDomain,
		ShortCodeLength: cfg.Links.ShortCodeLength,
	})
	orchestrator := businessflow.NewDeliveryOrchestrator(
		campaignRepo, recipientRepo, logRepo, tagger,
		emailTransport, messagingTransport, progress,
		businessflow.DeliveryConfig{
			BatchSize:        cfg.Delivery.BatchSize,
			MessagePacing:    cfg.Delivery.MessagePacing,
			EmailBatchPacing: cfg.Delivery.EmailBatchPacing,
		},
		logger,
	)
	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo, recipientRepo, linkRepo, logRepo, resolver, orchestrator, logger)
	clickFlow := businessflow.NewClickFlow(linkRepo, clickRepo, recipientRepo, db)

	// Background scheduler
	campaignScheduler := scheduler.NewCampaignScheduler(
		campaignRepo, resolver, campaignFlow, cfg.Scheduler.ScanInterval, cfg.Scheduler.LogPath)
	stopScheduler := campaignScheduler.Start(context.Background())

	// HTTP server
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	redirectHandler := handlers.NewRedirectHandler(clickFlow, logger)
	r := router.NewFiberRouter(campaignHandler, redirectHandler)
	r.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := cfg.Server.Address()
		logger.Printf("server starting on %s", address)
		if err := r.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	logger.Printf("shutting down gracefully")

	stopScheduler()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := r.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		logger.Printf("error during shutdown: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		logger.Printf("error closing redis: %v", err)
	}
	logger.Printf("server stopped")
}

// newAppLogger writes to stdout and a rotating file
func newAppLogger(cfg config.LoggingConfig) *log.Logger {
	var sink io.Writer = os.Stdout
	if cfg.FilePath != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	return log.New(sink, "[outreach] ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// initializeDatabase opens the postgres connection with pooling configured
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// initializeRedis connects the progress pub/sub client
func initializeRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
