package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDBDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DB_DSN is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("http addr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.BatchInterval != 30*time.Minute {
		t.Errorf("batch interval = %s, want 30m", cfg.BatchInterval)
	}
	if cfg.BatchWindow != 24*time.Hour {
		t.Errorf("batch window = %s, want 24h", cfg.BatchWindow)
	}
	if cfg.BatchMaxTweets != 60 {
		t.Errorf("batch max tweets = %d, want 60", cfg.BatchMaxTweets)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/test")
	t.Setenv("BATCH_INTERVAL_MINUTES", "5")
	t.Setenv("BATCH_MAX_TWEETS", "10")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchInterval != 5*time.Minute {
		t.Errorf("batch interval = %s, want 5m", cfg.BatchInterval)
	}
	if cfg.BatchMaxTweets != 10 {
		t.Errorf("batch max tweets = %d, want 10", cfg.BatchMaxTweets)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
}

func TestLoad_RejectsBadIntegers(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/test")
	t.Setenv("BATCH_INTERVAL_MINUTES", "zero")

	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric BATCH_INTERVAL_MINUTES")
	}
}
