package postgres

import (
	"testing"

	"video-sentinel/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := &config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "sentinel",
		Password: "secret",
		Database: "video_sentinel",
		SSLMode:  "disable",
	}
	want := "host=db port=5432 user=sentinel password=secret dbname=video_sentinel sslmode=disable"
	if got := DSN(cfg); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
