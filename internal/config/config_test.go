package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("unexpected api port %s", cfg.APIPort)
	}
	if cfg.RPMLimit != 15 || cfg.DailyLimit != 1500 {
		t.Fatalf("unexpected quota defaults %d/%d", cfg.RPMLimit, cfg.DailyLimit)
	}
	if cfg.EmbeddingDim != 768 {
		t.Fatalf("unexpected embedding dim %d", cfg.EmbeddingDim)
	}
	if cfg.MaxFileSizeBytes != 50<<20 {
		t.Fatalf("unexpected size limit %d", cfg.MaxFileSizeBytes)
	}
	if cfg.SweepMaxAge != time.Hour {
		t.Fatalf("unexpected sweep age %v", cfg.SweepMaxAge)
	}
	if len(cfg.AllowedExtensions) == 0 {
		t.Fatal("expected default extension list")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AI_RPM_LIMIT", "3")
	t.Setenv("ALLOWED_EXTENSIONS", " pdf , txt ,")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()
	if cfg.RPMLimit != 3 {
		t.Fatalf("override not applied: %d", cfg.RPMLimit)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != "pdf" || cfg.AllowedExtensions[1] != "txt" {
		t.Fatalf("unexpected extensions %v", cfg.AllowedExtensions)
	}
	if !cfg.MinIOUseSSL {
		t.Fatal("bool override not applied")
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("AI_DAILY_LIMIT", "not-a-number")
	if cfg := Load(); cfg.DailyLimit != 1500 {
		t.Fatalf("expected fallback, got %d", cfg.DailyLimit)
	}
}
