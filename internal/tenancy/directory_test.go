package tenancy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/push-campaigns/backend/internal/models"
)

const directoryYAML = `
tenants:
  - id: 7c9e6679-7425-40de-944b-e07fc1f90ae7
    slug: acme
    dsn: postgres://localhost/acme
  - id: 550e8400-e29b-41d4-a716-446655440000
    slug: globex
    status: suspended
  - id: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
    slug: initech
    status: active
`

func writeDirectory(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileDirectory(t *testing.T) {
	dir, err := LoadFileDirectory(writeDirectory(t, directoryYAML))
	if err != nil {
		t.Fatalf("LoadFileDirectory: %v", err)
	}

	active, err := dir.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 || active[0].Slug != "acme" || active[1].Slug != "initech" {
		t.Errorf("active = %+v", active)
	}
	if active[0].DSN != "postgres://localhost/acme" {
		t.Errorf("dsn = %q", active[0].DSN)
	}

	tests := []struct {
		slug    string
		wantErr error
	}{
		{"acme", nil},
		{"globex", ErrUnknownTenant},
		{"nope", ErrUnknownTenant},
		{"", ErrUnknownTenant},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			tenant, err := Lookup(context.Background(), dir, tt.slug)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Lookup(%q) error = %v, want %v", tt.slug, err, tt.wantErr)
			}
			if err == nil && tenant.Slug != tt.slug {
				t.Errorf("tenant = %+v", tenant)
			}
		})
	}
}

func TestFileDirectoryRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"missing slug":   "tenants:\n  - status: active\n",
		"duplicate slug": "tenants:\n  - slug: a\n  - slug: a\n",
		"not yaml":       "tenants: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFileDirectory(writeDirectory(t, body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		tenant   models.Tenant
		template string
		want     string
		wantErr  bool
	}{
		{"own dsn wins", models.Tenant{Slug: "acme", DSN: "postgres://x/acme"}, "postgres://y/{tenant}", "postgres://x/acme", false},
		{"template", models.Tenant{Slug: "acme"}, "postgres://db/tenant_{tenant}?sslmode=disable", "postgres://db/tenant_acme?sslmode=disable", false},
		{"no template", models.Tenant{Slug: "acme"}, "", "", true},
		{"template without placeholder", models.Tenant{Slug: "acme"}, "postgres://db/shared", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DSN(tt.tenant, tt.template)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DSN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}
