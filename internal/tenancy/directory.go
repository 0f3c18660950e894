// Package tenancy finds tenants and hands out their datastores.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/push-campaigns/backend/internal/models"
	"github.com/push-campaigns/backend/internal/repositories"
	"gopkg.in/yaml.v3"
)

// ErrUnknownTenant covers both missing and suspended tenants.
var ErrUnknownTenant = errors.New("unknown tenant")

// Directory lists tenants. *repositories.TenantRepo and *FileDirectory
// implement it.
type Directory interface {
	ListActive(ctx context.Context) ([]models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// Lookup returns the active tenant with slug.
func Lookup(ctx context.Context, dir Directory, slug string) (models.Tenant, error) {
	if slug == "" {
		return models.Tenant{}, ErrUnknownTenant
	}
	t, err := dir.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Tenant{}, ErrUnknownTenant
		}
		return models.Tenant{}, err
	}
	if t.Status != models.TenantStatusActive {
		return models.Tenant{}, ErrUnknownTenant
	}
	return *t, nil
}

type fileDirectory struct {
	Tenants []models.Tenant `yaml:"tenants"`
}

// FileDirectory is a static tenant list loaded from YAML, for local setups
// without a control database.
type FileDirectory struct {
	tenants []models.Tenant
}

func LoadFileDirectory(path string) (*FileDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileDirectory
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tenant directory %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Tenants))
	for i := range f.Tenants {
		t := &f.Tenants[i]
		if t.Slug == "" {
			return nil, fmt.Errorf("tenant directory %s: entry %d has no slug", path, i)
		}
		if seen[t.Slug] {
			return nil, fmt.Errorf("tenant directory %s: duplicate slug %q", path, t.Slug)
		}
		seen[t.Slug] = true
		if t.Status == "" {
			t.Status = models.TenantStatusActive
		}
	}
	return &FileDirectory{tenants: f.Tenants}, nil
}

func (d *FileDirectory) ListActive(context.Context) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, t := range d.tenants {
		if t.Status == models.TenantStatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *FileDirectory) GetBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	for _, t := range d.tenants {
		if t.Slug == slug {
			t := t
			return &t, nil
		}
	}
	return nil, repositories.ErrNotFound
}
