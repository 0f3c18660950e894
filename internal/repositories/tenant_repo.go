package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/push-campaigns/backend/internal/models"
)

// TenantRepo reads the tenant directory from the control database.
type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

func (r *TenantRepo) ListActive(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slug, status, COALESCE(dsn, '') FROM tenants
		WHERE status = $1 ORDER BY slug
	`, models.TenantStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Slug, &t.Status, &t.DSN); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var t models.Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, slug, status, COALESCE(dsn, '') FROM tenants WHERE slug = $1
	`, slug).Scan(&t.ID, &t.Slug, &t.Status, &t.DSN)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}
