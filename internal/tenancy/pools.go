package tenancy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/push-campaigns/backend/internal/db"
	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/repositories"
	"github.com/push-campaigns/backend/internal/services"
	"go.uber.org/zap"
)

// SlugPlaceholder is replaced by the tenant slug in a DSN template.
const SlugPlaceholder = "{tenant}"

// DSN returns the tenant's own connection string, or the template filled in
// with its slug.
func DSN(t models.Tenant, template string) (string, error) {
	if t.DSN != "" {
		return t.DSN, nil
	}
	if template == "" || !strings.Contains(template, SlugPlaceholder) {
		return "", fmt.Errorf("tenant %s has no dsn and no usable template", t.Slug)
	}
	return strings.ReplaceAll(template, SlugPlaceholder, t.Slug), nil
}

type PoolsConfig struct {
	DSNTemplate   string
	MigrationsDir string // tenant schema; empty skips migrations
	// Cache keeps pools open across Open calls. Without it every Open gets a
	// fresh pool that release closes.
	Cache bool
}

// Pools opens tenant databases and implements services.StoreOpener.
type Pools struct {
	cfg PoolsConfig
	log *zap.Logger

	mu       sync.Mutex
	pools    map[string]*pgxpool.Pool
	migrated map[string]bool
}

func NewPools(cfg PoolsConfig, log *zap.Logger) *Pools {
	return &Pools{
		cfg:      cfg,
		log:      log,
		pools:    make(map[string]*pgxpool.Pool),
		migrated: make(map[string]bool),
	}
}

func (p *Pools) Open(ctx context.Context, tenant models.Tenant) (services.Stores, func(), error) {
	pool, release, err := p.Acquire(ctx, tenant)
	if err != nil {
		return services.Stores{}, nil, err
	}
	return services.StoresFromRepos(repositories.NewTenantRepos(pool)), release, nil
}

// Acquire returns a pool for tenant and the func that gives it back.
func (p *Pools) Acquire(ctx context.Context, tenant models.Tenant) (*pgxpool.Pool, func(), error) {
	if p.cfg.Cache {
		p.mu.Lock()
		pool, ok := p.pools[tenant.Slug]
		p.mu.Unlock()
		if ok {
			return pool, func() {}, nil
		}
	}

	dsn, err := DSN(tenant, p.cfg.DSNTemplate)
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPostgresPoolWithOptions(ctx, dsn, db.TenantPoolOptions, p.log.With(zap.String("tenant", tenant.Slug)))
	if err != nil {
		return nil, nil, fmt.Errorf("connect tenant %s: %w", tenant.Slug, err)
	}
	if err := p.migrate(ctx, tenant.Slug, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if !p.cfg.Cache {
		return pool, pool.Close, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.pools[tenant.Slug]; ok {
		pool.Close()
		return existing, func() {}, nil
	}
	p.pools[tenant.Slug] = pool
	return pool, func() {}, nil
}

func (p *Pools) migrate(ctx context.Context, slug string, pool *pgxpool.Pool) error {
	if p.cfg.MigrationsDir == "" {
		return nil
	}
	p.mu.Lock()
	done := p.migrated[slug]
	p.mu.Unlock()
	if done {
		return nil
	}

	if err := db.RunMigrations(ctx, pool, p.cfg.MigrationsDir, p.log.With(zap.String("tenant", slug))); err != nil {
		return fmt.Errorf("migrate tenant %s: %w", slug, err)
	}
	p.mu.Lock()
	p.migrated[slug] = true
	p.mu.Unlock()
	return nil
}

// Close closes every cached pool.
func (p *Pools) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for slug, pool := range p.pools {
		pool.Close()
		delete(p.pools, slug)
	}
}
