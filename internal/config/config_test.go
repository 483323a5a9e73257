package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("Server.HTTPAddr = %q, want :8080", cfg.Server.HTTPAddr)
	}
	if cfg.Detector.MarginMin != 100_000 {
		t.Errorf("Detector.MarginMin = %d, want 100000", cfg.Detector.MarginMin)
	}
	if cfg.Retention.Days != 7 {
		t.Errorf("Retention.Days = %d, want 7", cfg.Retention.Days)
	}
	if len(cfg.Tenant.AllowedWebhookHosts) != 2 {
		t.Errorf("AllowedWebhookHosts = %v, want 2 defaults", cfg.Tenant.AllowedWebhookHosts)
	}
}

func TestLoadBindsLiteralEnvNames(t *testing.T) {
	t.Setenv("ADMIN_KEY", "super-secret")
	t.Setenv("DB_URL", "postgres://example")
	t.Setenv("UPSTREAM_BASE_URL", "https://example.test")

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.AdminKey != "super-secret" {
		t.Errorf("AdminKey = %q, want super-secret", cfg.Security.AdminKey)
	}
	if cfg.DB.URL != "postgres://example" {
		t.Errorf("DB.URL = %q, want postgres://example", cfg.DB.URL)
	}
	if cfg.Upstream.BaseURL != "https://example.test" {
		t.Errorf("Upstream.BaseURL = %q, want https://example.test", cfg.Upstream.BaseURL)
	}
	if !cfg.DB.UsesRemote() {
		t.Error("UsesRemote() should be true once db.url is set")
	}
}

func TestLoadAppliesIntegerSecondsOverrides(t *testing.T) {
	t.Setenv("INGEST_PERIOD_SECONDS", "30")
	t.Setenv("CATALOG_PERIOD_SECONDS", "120")
	t.Setenv("RETENTION_DAYS", "14")

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.Period.Seconds() != 30 {
		t.Errorf("Ingest.Period = %v, want 30s", cfg.Ingest.Period)
	}
	if cfg.Catalog.Period.Seconds() != 120 {
		t.Errorf("Catalog.Period = %v, want 120s", cfg.Catalog.Period)
	}
	if cfg.Retention.Days != 14 {
		t.Errorf("Retention.Days = %d, want 14", cfg.Retention.Days)
	}
}

func TestLoadIgnoresNonNumericSecondsOverride(t *testing.T) {
	t.Setenv("INGEST_PERIOD_SECONDS", "not-a-number")
	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.Period.Seconds() != 60 {
		t.Errorf("Ingest.Period = %v, want the 60s default when override is malformed", cfg.Ingest.Period)
	}
}

func TestDBConfigUsesRemoteFalseWhenURLUnset(t *testing.T) {
	os.Unsetenv("DB_URL")
	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.UsesRemote() {
		t.Error("UsesRemote() should be false when db.url is empty")
	}
}
