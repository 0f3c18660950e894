package tenancy

import (
	"context"
	"path/filepath"

	"github.com/push-campaigns/backend/internal/db"
	"github.com/push-campaigns/backend/internal/repositories"
	"go.uber.org/zap"
)

type DirectoryConfig struct {
	File          string // YAML directory; wins over ControlDSN
	ControlDSN    string
	MigrationsDir string // root holding control/ and tenant/
}

// OpenDirectory returns the configured tenant directory and a func that
// releases its resources.
func OpenDirectory(ctx context.Context, cfg DirectoryConfig, log *zap.Logger) (Directory, func(), error) {
	if cfg.File != "" {
		dir, err := LoadFileDirectory(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		log.Info("tenant directory loaded from file", zap.String("path", cfg.File))
		return dir, func() {}, nil
	}

	pool, err := db.NewPostgresPool(ctx, cfg.ControlDSN, log)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrationsDir != "" {
		if err := db.RunMigrations(ctx, pool, filepath.Join(cfg.MigrationsDir, "control"), log); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return repositories.NewTenantRepo(pool), pool.Close, nil
}

// TenantMigrationsDir is where tenant schema migrations live under root.
func TenantMigrationsDir(root string) string {
	if root == "" {
		return ""
	}
	return filepath.Join(root, "tenant")
}
