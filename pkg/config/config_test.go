package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.App.Port != "8090" {
		t.Fatalf("expected default port 8090, got %q", cfg.App.Port)
	}
	if cfg.Backend.URL != "http://backend.test" {
		t.Fatalf("unexpected backend url %q", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 0 {
		t.Fatalf("expected no backend timeout by default, got %v", cfg.Backend.Timeout)
	}
	if cfg.Session.Kind() != SessionBackendFile {
		t.Fatalf("expected file session backend, got %q", cfg.Session.Kind())
	}
	if got := cfg.Catalog.CacheTTL; got != 5*time.Minute {
		t.Fatalf("expected catalog ttl 5m, got %v", got)
	}
	if got := cfg.Cart.NoticeTTL; got != 3*time.Second {
		t.Fatalf("expected notice ttl 3s, got %v", got)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsNonHTTPBackend(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvBackendURL, "ftp://backend.test")

	if _, err := Load(); err == nil {
		t.Fatal("expected non-http backend url to be rejected")
	}
}

func TestLoad_SessionBackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "memory", env: map[string]string{EnvSessionBackend: "memory"}},
		{name: "encrypted without passphrase", env: map[string]string{EnvSessionBackend: "encrypted"}, wantErr: true},
		{name: "encrypted", env: map[string]string{EnvSessionBackend: "encrypted", EnvSessionPassphrase: "hunter2"}},
		{name: "redis without endpoint", env: map[string]string{EnvSessionBackend: "redis"}, wantErr: true},
		{name: "redis", env: map[string]string{EnvSessionBackend: "redis", EnvRedisURL: "redis://localhost:6379/0"}},
		{name: "unknown", env: map[string]string{EnvSessionBackend: "cookie"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvBackendURL, "http://backend.test")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}

func TestCatalogCacheKindDefaults(t *testing.T) {
	if kind := (CatalogConfig{}).CacheKind(); kind != CatalogCacheMemory {
		t.Fatalf("expected memory cache by default, got %q", kind)
	}
	if kind := (CatalogConfig{Cache: " Redis "}).CacheKind(); kind != CatalogCacheRedis {
		t.Fatalf("expected redis cache, got %q", kind)
	}
}
