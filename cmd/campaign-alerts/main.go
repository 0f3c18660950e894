package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/push-campaigns/backend/internal/alerts"
	"github.com/push-campaigns/backend/internal/config"
	"github.com/push-campaigns/backend/internal/db"
	"github.com/push-campaigns/backend/internal/events"
	"github.com/push-campaigns/backend/internal/push"
	"go.uber.org/zap"
)

// campaign-alerts subscribes to campaign events of every tenant and pushes
// terminal outcomes to the tenant's operator topic.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	gateway := push.NewGateway(ctx, push.FCMConfig{
		CredentialsFile: cfg.FirebaseCredentialsFile,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
		ProjectID:       cfg.FirebaseProjectID,
	}, push.Options{
		RetryAttempts: cfg.PushRetryAttempts,
		CallTimeout:   cfg.ProviderTimeout,
	}, log)

	forwarder := alerts.NewForwarder(gateway, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	log.Info("campaign-alerts started")

	if err := subscriber.Subscribe(ctx, events.CampaignStreamPattern, func(event events.Event) {
		forwarder.Handle(ctx, event)
	}); err != nil {
		log.Fatal("failed to subscribe to campaign events", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down campaign-alerts")
	cancel()
}
