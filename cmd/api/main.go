package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/villagestay/whatsapp-bot/internal/api/router"
	"github.com/villagestay/whatsapp-bot/internal/app/bootstrap"
	"github.com/villagestay/whatsapp-bot/internal/bookings"
	appconfig "github.com/villagestay/whatsapp-bot/internal/config"
	"github.com/villagestay/whatsapp-bot/internal/conversation"
	"github.com/villagestay/whatsapp-bot/internal/http/handlers"
	"github.com/villagestay/whatsapp-bot/internal/listings"
	"github.com/villagestay/whatsapp-bot/internal/messaging"
	"github.com/villagestay/whatsapp-bot/internal/observability/metrics"
	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting villagestay whatsapp bot",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	store := conversation.NewStore(dynamoClient, cfg.ConversationsTable, logger)

	pool, err := bootstrap.BuildPgxPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var locker conversation.IdentityLocker
	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		locker = conversation.NewRedisLock(redisClient, cfg.LockTTL)
		defer func() { _ = redisClient.Close() }()
	}

	registry := prometheus.NewRegistry()
	botMetrics := metrics.NewBotMetrics(registry)

	finder := listings.NewService(listings.NewRepository(pool), logger)
	recorder := bookings.NewRecorder(pool, logger)
	machine := conversation.NewMachine(store, finder, recorder, locker, botMetrics, logger)

	sender := messaging.NewSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.WhatsAppFromNumber, logger)
	webhookHandler := handlers.NewWebhookHandler(machine, sender, cfg.TwilioWebhookSecret, cfg.WhatsAppFromNumber, botMetrics, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		WebhookHandler: webhookHandler,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
