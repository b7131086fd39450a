package postgres

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestHealthCheck(t *testing.T) {
	if err := HealthCheck(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil db")
	}

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	if err := HealthCheck(context.Background(), sqlx.NewDb(db, "postgres")); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestOpenIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	db, err := Open(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
}

func TestMigrationVersions(t *testing.T) {
	versions, err := MigrationVersions()
	if err != nil {
		t.Fatalf("MigrationVersions: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("versions = %v, want to start at 1", versions)
	}
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	up, _ := fs.Glob(migrationFiles, "migrations/*.up.sql")
	down, _ := fs.Glob(migrationFiles, "migrations/*.down.sql")
	if len(up) == 0 || len(up) != len(down) {
		t.Fatalf("up = %v, down = %v", up, down)
	}
	body, err := migrationFiles.ReadFile(up[0])
	if err != nil {
		t.Fatalf("read %s: %v", up[0], err)
	}
	for _, table := range []string{"vendors", "packages", "bookings", "orders", "onboarding_progress"} {
		if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("migration does not create %s", table)
		}
	}
}

func TestMigrate_RequiresDSN(t *testing.T) {
	if _, err := MigrateUp(""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
	if _, err := MigrateDown("postgres://localhost/x", 0); err == nil {
		t.Fatal("expected error for zero steps")
	}
}
