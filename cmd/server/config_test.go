package main

import "testing"

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Address != ":8080" {
		t.Errorf("server.address = %q, want :8080", cfg.Server.Address)
	}
	if cfg.Database.Path != "data/taskforge.db" {
		t.Errorf("database.path = %q, want data/taskforge.db", cfg.Database.Path)
	}
	if cfg.API.AccessTokenTTL != "15m" {
		t.Errorf("api.access_token_ttl = %q, want 15m", cfg.API.AccessTokenTTL)
	}
	if cfg.API.RefreshTokenTTL != "168h" {
		t.Errorf("api.refresh_token_ttl = %q, want 168h", cfg.API.RefreshTokenTTL)
	}
	if cfg.Metrics.Address != ":9090" {
		t.Errorf("metrics.address = %q, want :9090", cfg.Metrics.Address)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfigValidate_RejectsInvalidDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.AccessTokenTTL = "not-a-duration"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid api.access_token_ttl")
	}
}

func TestConfigValidate_RequiresTLSFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.TLS.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when TLS is enabled without cert files")
	}

	cfg.Server.TLS.CertFile = "server.crt"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when TLS key file is missing")
	}

	cfg.Server.TLS.KeyFile = "server.key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
}

func TestConfigValidate_RequiresArchiveAddresses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Archive.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when archive is enabled without addresses")
	}

	cfg.Archive.Addresses = []string{"localhost:9000"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
}
