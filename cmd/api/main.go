package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/push-campaigns/backend/internal/config"
	"github.com/push-campaigns/backend/internal/db"
	"github.com/push-campaigns/backend/internal/events"
	apphttp "github.com/push-campaigns/backend/internal/http"
	"github.com/push-campaigns/backend/internal/http/dto"
	"github.com/push-campaigns/backend/internal/http/handlers"
	"github.com/push-campaigns/backend/internal/lock"
	"github.com/push-campaigns/backend/internal/metrics"
	"github.com/push-campaigns/backend/internal/push"
	"github.com/push-campaigns/backend/internal/scheduler"
	"github.com/push-campaigns/backend/internal/services"
	"github.com/push-campaigns/backend/internal/tenancy"
	"github.com/push-campaigns/backend/internal/tracing"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer := tracing.InitTracer("push-campaigns-api", cfg.TracingEndpoint, log)
	defer shutdownTracer()

	metrics.InitAPIMetrics()
	metrics.InitDeliveryMetrics()

	// Tenants
	directory, closeDirectory, err := tenancy.OpenDirectory(ctx, tenancy.DirectoryConfig{
		File:          cfg.TenantDirectoryFile,
		ControlDSN:    cfg.ControlDSN,
		MigrationsDir: cfg.MigrationsDir,
	}, log)
	if err != nil {
		log.Fatal("failed to open tenant directory", zap.Error(err))
	}
	defer closeDirectory()

	pools := tenancy.NewPools(tenancy.PoolsConfig{
		DSNTemplate:   cfg.TenantDSNTemplate,
		MigrationsDir: tenancy.TenantMigrationsDir(cfg.MigrationsDir),
		Cache:         true,
	}, log)
	defer pools.Close()

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Delivery
	gateway := push.NewGateway(ctx, push.FCMConfig{
		CredentialsFile: cfg.FirebaseCredentialsFile,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
		ProjectID:       cfg.FirebaseProjectID,
	}, push.Options{
		RatePerSecond: cfg.PushRatePerSecond,
		RetryAttempts: cfg.PushRetryAttempts,
		CallTimeout:   cfg.ProviderTimeout,
	}, log)

	// Services
	deliverer := services.NewDeliverer(services.NewAudienceResolver(log), gateway, publisher, cfg.PublicBaseURL, log)
	campaignService := services.NewCampaignService(pools, deliverer, gateway, publisher, log)
	tokenService := services.NewTokenService(pools, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	wsHub.Start(ctx)

	// Scheduled processor, unless a dedicated worker runs it
	if cfg.SchedulerEnabled {
		processor := scheduler.NewProcessor(
			directory,
			tenancy.NewPools(tenancy.PoolsConfig{
				DSNTemplate:   cfg.TenantDSNTemplate,
				MigrationsDir: tenancy.TenantMigrationsDir(cfg.MigrationsDir),
			}, log),
			deliverer,
			lock.NewRedisLease(rdb, "lock:scheduler:tick", cfg.SchedulerLease),
			scheduler.Options{TenantTimeout: cfg.TenantTimeout},
			log,
		)
		go processor.Run(ctx, cfg.SchedulerInterval)
	} else {
		log.Info("scheduled processor disabled")
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, apphttp.Handlers{
		Campaigns:     handlers.NewCampaignHandler(campaignService, directory, log),
		Devices:       handlers.NewDeviceHandler(tokenService, directory, gateway, log),
		Notifications: handlers.NewNotificationHandler(campaignService, directory, log),
		Meta:          handlers.NewMetaHandler(gateway),
		WSHub:         wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
