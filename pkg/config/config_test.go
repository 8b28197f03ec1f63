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

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}

	if cfg.Gateway.BaseURL != "http://localhost:3000/api/v1" {
		t.Fatalf("unexpected gateway base url: %q", cfg.Gateway.BaseURL)
	}

	if got := cfg.Gateway.Timeout; got != 15*time.Second {
		t.Fatalf("expected default gateway timeout 15s, got %v", got)
	}

	if got := cfg.Wishlist.DebounceWindow; got != 500*time.Millisecond {
		t.Fatalf("expected default debounce window 500ms, got %v", got)
	}

	if cfg.Redis.Enabled() {
		t.Fatalf("redis should be disabled when no URL is configured")
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

func TestLoad_RejectsRelativeGatewayURL(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvGatewayBaseURL, "/api/v1")

	if _, err := Load(); err == nil {
		t.Fatal("expected relative gateway url to be rejected")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvGatewayBaseURL, "http://localhost:3000/api/v1")
	t.Setenv(EnvJWTSecret, "secret")
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
