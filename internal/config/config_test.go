package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LAVACAR_ENV", "")
	t.Setenv("LAVACAR_API_URL", "")
	t.Setenv("LAVACAR_API_TIMEOUT", "")
	t.Setenv("LAVACAR_DATA_DIR", t.TempDir())
	t.Setenv("LAVACAR_TOKEN_STORE", "")
	t.Setenv("LAVACAR_KEEP_TOKEN_OFFLINE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.Environment != EnvDevelopment {
		t.Errorf("environment = %q, want %q", cfg.API.Environment, EnvDevelopment)
	}
	if cfg.API.BaseURL != Environments[EnvDevelopment] {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.API.Timeout)
	}
	if cfg.Storage.TokenBackend != TokenStoreKeyring {
		t.Errorf("token backend = %q", cfg.Storage.TokenBackend)
	}
	if cfg.Session.KeepTokenWhenUnreachable {
		t.Error("expected token teardown on unreachable by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LAVACAR_ENV", "production")
	t.Setenv("LAVACAR_API_URL", "http://127.0.0.1:8000/api/v1/")
	t.Setenv("LAVACAR_API_TIMEOUT", "2500")
	t.Setenv("LAVACAR_DATA_DIR", t.TempDir())
	t.Setenv("LAVACAR_TOKEN_STORE", "sqlite")
	t.Setenv("LAVACAR_KEEP_TOKEN_OFFLINE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.Environment != EnvProduction {
		t.Errorf("environment = %q", cfg.API.Environment)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8000/api/v1" {
		t.Errorf("base url = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 2500*time.Millisecond {
		t.Errorf("timeout = %v", cfg.API.Timeout)
	}
	if cfg.Storage.TokenBackend != TokenStoreSQLite {
		t.Errorf("token backend = %q", cfg.Storage.TokenBackend)
	}
	if !cfg.Session.KeepTokenWhenUnreachable {
		t.Error("expected keep-token flag")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown environment", "LAVACAR_ENV", "staging"},
		{"bad timeout", "LAVACAR_API_TIMEOUT", "soon"},
		{"bad token store", "LAVACAR_TOKEN_STORE", "plaintext"},
		{"bad bool", "LAVACAR_KEEP_TOKEN_OFFLINE", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LAVACAR_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestUseEnvironment(t *testing.T) {
	t.Setenv("LAVACAR_API_URL", "")
	cfg := &Config{API: APIConfig{Environment: EnvDevelopment, BaseURL: Environments[EnvDevelopment]}}

	if err := cfg.UseEnvironment(EnvProduction); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != Environments[EnvProduction] {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if err := cfg.UseEnvironment("qa"); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestDatabasePath_PerEnvironment(t *testing.T) {
	s := StorageConfig{DataDir: "/data"}
	if got := s.DatabasePath(EnvDevelopment); got != "/data/lavacar-development.sqlite" {
		t.Errorf("DatabasePath(development) = %q", got)
	}
	if got := s.DatabasePath(EnvProduction); got != "/data/lavacar-production.sqlite" {
		t.Errorf("DatabasePath(production) = %q", got)
	}
}
