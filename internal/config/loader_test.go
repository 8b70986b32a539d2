package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("VS_TEST_HOST", "db.internal")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "host: ${VS_TEST_HOST}", "host: db.internal"},
		{"set variable ignores default", "host: ${VS_TEST_HOST:localhost}", "host: db.internal"},
		{"default", "port: ${VS_TEST_UNSET:5432}", "port: 5432"},
		{"empty default", "password: ${VS_TEST_UNSET:}", "password: "},
		{"unset without default kept", "key: ${VS_TEST_UNSET}", "key: ${VS_TEST_UNSET}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnv(tt.in); got != tt.want {
				t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadFromAppliesDefaultsAndOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	writeConfig(t, dir, "config.yaml", `
app:
  name: video-sentinel
capture:
  default_chunk_minutes: 5
security:
  jwt:
    secret: s3cret
`)
	writeConfig(t, dir, "config.test.yaml", `
index:
  backend: pgvector
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Capture.DefaultChunkMinutes != 5 {
		t.Errorf("chunk minutes = %d, want 5", cfg.Capture.DefaultChunkMinutes)
	}
	if cfg.Index.Backend != "pgvector" {
		t.Errorf("index backend = %q, want pgvector", cfg.Index.Backend)
	}
	if cfg.Query.MaxResults != 25 || cfg.Query.DefaultResults != 5 {
		t.Errorf("query defaults = %+v", cfg.Query)
	}
	if cfg.Query.MaxDistance != 0.70 {
		t.Errorf("max distance = %v, want 0.70", cfg.Query.MaxDistance)
	}
	if cfg.Ingest.StepTimeout != 5*time.Minute {
		t.Errorf("step timeout = %v, want 5m", cfg.Ingest.StepTimeout)
	}
	if cfg.Ingest.SweepGrace != 5*time.Minute || cfg.Ingest.SweepInterval != time.Minute || cfg.Ingest.LeaseTTL != 30*time.Second {
		t.Errorf("ingest sweep/lease defaults = %+v", cfg.Ingest)
	}
	if cfg.Alert.HistoryLimit != 1000 {
		t.Errorf("history limit = %d, want 1000", cfg.Alert.HistoryLimit)
	}
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "chunk duration out of range",
			body: `
capture:
  default_chunk_minutes: 61
security:
  jwt:
    secret: s3cret
`,
			wantErr: "default_chunk_minutes",
		},
		{
			name: "unknown index backend",
			body: `
index:
  backend: chroma
security:
  jwt:
    secret: s3cret
`,
			wantErr: "index.backend",
		},
		{
			name: "process-local index backend",
			body: `
index:
  backend: memory
security:
  jwt:
    secret: s3cret
`,
			wantErr: "process-local",
		},
		{
			name: "auth without secret",
			body: `
app:
  name: video-sentinel
`,
			wantErr: "security.jwt.secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("APP_ENV", "none")
			writeConfig(t, dir, "config.yaml", tt.body)

			_, err := LoadFrom(dir)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadFrom() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config.yaml")
	}
}
