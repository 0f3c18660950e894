package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/push-campaigns/backend/internal/config"
	"github.com/push-campaigns/backend/internal/db"
	"github.com/push-campaigns/backend/internal/events"
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

	shutdownTracer := tracing.InitTracer("push-campaigns-worker", cfg.TracingEndpoint, log)
	defer shutdownTracer()

	metrics.InitDeliveryMetrics()

	directory, closeDirectory, err := tenancy.OpenDirectory(ctx, tenancy.DirectoryConfig{
		File:          cfg.TenantDirectoryFile,
		ControlDSN:    cfg.ControlDSN,
		MigrationsDir: cfg.MigrationsDir,
	}, log)
	if err != nil {
		log.Fatal("failed to open tenant directory", zap.Error(err))
	}
	defer closeDirectory()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher := events.NewRedisPublisher(rdb, log)
	gateway := push.NewGateway(ctx, push.FCMConfig{
		CredentialsFile: cfg.FirebaseCredentialsFile,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
		ProjectID:       cfg.FirebaseProjectID,
	}, push.Options{
		RatePerSecond: cfg.PushRatePerSecond,
		RetryAttempts: cfg.PushRetryAttempts,
		CallTimeout:   cfg.ProviderTimeout,
	}, log)

	// One pool per tenant per tick, closed before the next tenant.
	pools := tenancy.NewPools(tenancy.PoolsConfig{
		DSNTemplate:   cfg.TenantDSNTemplate,
		MigrationsDir: tenancy.TenantMigrationsDir(cfg.MigrationsDir),
	}, log)

	deliverer := services.NewDeliverer(services.NewAudienceResolver(log), gateway, publisher, cfg.PublicBaseURL, log)
	processor := scheduler.NewProcessor(
		directory,
		pools,
		deliverer,
		lock.NewRedisLease(rdb, "lock:scheduler:tick", cfg.SchedulerLease),
		scheduler.Options{TenantTimeout: cfg.TenantTimeout},
		log,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.WorkerPort), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	if cfg.SchedulerEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Run(ctx, cfg.SchedulerInterval)
		}()
	} else {
		log.Warn("SCHEDULER_ENABLED=false, worker is idle")
	}

	log.Info("worker started", zap.String("metrics_addr", srv.Addr), zap.Bool("mock_push", gateway.IsMock()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	cancel()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
}
