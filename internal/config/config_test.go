package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Queue.Workers != 4 {
		t.Errorf("workers: got %d, want 4", cfg.Queue.Workers)
	}
	if cfg.Queue.JobStore != "memory" {
		t.Errorf("job store: got %q, want memory", cfg.Queue.JobStore)
	}
	if cfg.Queue.Retention != 24*time.Hour {
		t.Errorf("retention: got %v", cfg.Queue.Retention)
	}
	if cfg.Queue.StuckJobTimeout != 0 {
		t.Errorf("reaper should be disabled by default, got %v", cfg.Queue.StuckJobTimeout)
	}
	if !cfg.Storage.IsLocal() {
		t.Errorf("expected local storage by default, got %q", cfg.Storage.Type)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver: got %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero workers", body: "queue:\n  workers: 0\n"},
		{name: "unknown job store", body: "queue:\n  job_store: redis\n"},
		{name: "unknown driver", body: "database:\n  driver: oracle\n"},
		{name: "postgres without target", body: "database:\n  driver: postgres\n  host: \"\"\n"},
		{name: "s3 without bucket", body: "storage:\n  type: s3\n  bucket: \"\"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "ledger", SSLMode: "disable"}
	if got, want := pg.DSN(), "host=db port=5432 user=u password=p dbname=ledger sslmode=disable"; got != want {
		t.Errorf("postgres DSN: got %q, want %q", got, want)
	}

	pg.URL = "postgres://u:p@db/ledger"
	if pg.DSN() != pg.URL {
		t.Errorf("expected URL to win, got %q", pg.DSN())
	}

	mem := DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
	if mem.DSN() != "file::memory:?cache=shared" {
		t.Errorf("sqlite memory DSN: got %q", mem.DSN())
	}
}
