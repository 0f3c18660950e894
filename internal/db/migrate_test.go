package db

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPendingMigrationsOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_logs.up.sql", "001_init.up.sql", "001_init.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.up.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := PendingMigrations(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"001_init.up.sql", "002_logs.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PendingMigrations() = %v, want %v", got, want)
	}
}

func TestPendingMigrationsMissingDir(t *testing.T) {
	if _, err := PendingMigrations(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestPendingMigrationsShipped(t *testing.T) {
	for _, dir := range []string{"../../migrations/control", "../../migrations/tenant"} {
		files, err := PendingMigrations(dir)
		if err != nil {
			t.Fatalf("%s: %v", dir, err)
		}
		if len(files) == 0 {
			t.Errorf("%s: no migrations", dir)
		}
	}
}
