// Package scheduler drives scheduled campaigns of every active tenant to a
// terminal status.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/push-campaigns/backend/internal/lock"
	"github.com/push-campaigns/backend/internal/metrics"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrTickInProgress = errors.New("scheduler tick already in progress")
	ErrLeaseHeld      = errors.New("scheduler lease held by another instance")
)

type TenantLister interface {
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type Options struct {
	TenantTimeout time.Duration // upper bound for one tenant's share of a tick
	BatchSize     int           // due campaigns taken per tenant per tick
}

func (o *Options) setDefaults() {
	if o.TenantTimeout <= 0 {
		o.TenantTimeout = 5 * time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
}

// TickReport summarizes one tick.
type TickReport struct {
	Tenants        int
	TenantFailures int
	Claimed        int
	Completed      int
	Failed         int
	LostClaims     int
}

type Processor struct {
	tenants   TenantLister
	opener    services.StoreOpener
	deliverer *services.Deliverer
	lease     lock.Lease
	opts      Options
	log       *zap.Logger
	now       func() time.Time

	running atomic.Bool
}

// NewProcessor builds a processor. lease may be nil when only one instance runs.
func NewProcessor(
	tenants TenantLister,
	opener services.StoreOpener,
	deliverer *services.Deliverer,
	lease lock.Lease,
	opts Options,
	log *zap.Logger,
) *Processor {
	opts.setDefaults()
	return &Processor{
		tenants:   tenants,
		opener:    opener,
		deliverer: deliverer,
		lease:     lease,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// DefaultInterval replaces a non-positive Run interval.
const DefaultInterval = time.Minute

// Run starts a tick every interval until ctx is done. A tick that is still
// running when the next one is due makes that one a no-op.
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		p.log.Warn("non-positive scheduler interval, using default",
			zap.Duration("interval", interval),
			zap.Duration("default", DefaultInterval),
		)
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	p.log.Info("scheduled processor started", zap.Duration("interval", interval))
	for {
		select {
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.runTick(ctx)
			}()
		case <-ctx.Done():
			p.log.Info("scheduled processor stopping")
			return
		}
	}
}

func (p *Processor) runTick(ctx context.Context) {
	report, err := p.Tick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress), errors.Is(err, ErrLeaseHeld):
		p.log.Debug("tick skipped", zap.Error(err))
	case err != nil:
		p.log.Error("tick failed", zap.Error(err))
	case report.Claimed > 0 || report.TenantFailures > 0:
		p.log.Info("tick finished",
			zap.Int("tenants", report.Tenants),
			zap.Int("tenant_failures", report.TenantFailures),
			zap.Int("claimed", report.Claimed),
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("lost_claims", report.LostClaims),
		)
	}
}

// Tick processes every due campaign of every active tenant once. Tenants and
// their campaigns are handled sequentially; a failing tenant is logged and
// skipped.
func (p *Processor) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport

	if !p.running.CompareAndSwap(false, true) {
		metrics.SchedulerTicksSkippedTotal.WithLabelValues("in_progress").Inc()
		return report, ErrTickInProgress
	}
	defer p.running.Store(false)

	if p.lease != nil {
		release, ok, err := p.lease.TryAcquire(ctx)
		if err != nil {
			metrics.SchedulerTicksSkippedTotal.WithLabelValues("lease_error").Inc()
			return report, fmt.Errorf("acquire scheduler lease: %w", err)
		}
		if !ok {
			metrics.SchedulerTicksSkippedTotal.WithLabelValues("lease_held").Inc()
			return report, ErrLeaseHeld
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn("scheduler lease release failed", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	defer func() { metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := otel.Tracer("scheduler").Start(ctx, "scheduler.tick")
	defer span.End()

	tenants, err := p.tenants.ListActive(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "list tenants")
		return report, fmt.Errorf("list tenants: %w", err)
	}

	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Tenants++
		if err := p.processTenant(ctx, t, &report); err != nil {
			report.TenantFailures++
			metrics.SchedulerTenantFailuresTotal.WithLabelValues(t.Slug).Inc()
			span.AddEvent("tenant_failed", trace.WithAttributes(
				attribute.String("tenant", t.Slug),
				attribute.String("error", err.Error()),
			))
			p.log.Error("tenant processing failed", zap.String("tenant", t.Slug), zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("tenants", report.Tenants),
		attribute.Int("claimed", report.Claimed),
	)
	return report, nil
}

func (p *Processor) processTenant(ctx context.Context, tenant models.Tenant, report *TickReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.opts.TenantTimeout)
	defer cancel()

	stores, release, err := p.opener.Open(ctx, tenant)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer release()

	due, err := stores.Campaigns.ListDue(ctx, p.now(), p.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list due campaigns: %w", err)
	}

	log := p.log.With(zap.String("tenant", tenant.Slug))
	for i := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := &due[i]

		ok, err := stores.Campaigns.Claim(ctx, c.ID)
		if err != nil {
			log.Error("campaign claim failed", zap.String("campaign_id", c.ID.String()), zap.Error(err))
			continue
		}
		if !ok {
			report.LostClaims++
			continue
		}
		report.Claimed++
		c.Status = models.CampaignStatusProcessing

		if err := p.deliverer.Deliver(ctx, tenant, stores, c, services.PathScheduled); err != nil {
			log.Error("scheduled campaign delivery failed", zap.String("campaign_id", c.ID.String()), zap.Error(err))
		}
		switch c.Status {
		case models.CampaignStatusCompleted:
			report.Completed++
		case models.CampaignStatusFailed:
			report.Failed++
		}
	}
	return nil
}
