package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "production") // без .env
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "нет.yaml"))

	cfg := Load()
	if cfg.GatewayURL != "http://localhost:8080" {
		t.Fatalf("GatewayURL = %q", cfg.GatewayURL)
	}
	if cfg.ChannelURL != "ws://localhost:8080/ws" {
		t.Fatalf("ChannelURL = %q", cfg.ChannelURL)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("ReconnectDelay = %s", cfg.ReconnectDelay)
	}
	if cfg.TypingTTL != 3*time.Second {
		t.Fatalf("TypingTTL = %s", cfg.TypingTTL)
	}
	if cfg.PageLimit != 20 {
		t.Fatalf("PageLimit = %d", cfg.PageLimit)
	}
	if cfg.MaxMessageSize != 64<<10 {
		t.Fatalf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	data := []byte("gateway_url: http://gw:9090\nreconnect_delay: 7\ntyping_ttl_ms: 1500\npage_limit: 50\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg := Load()
	if cfg.GatewayURL != "http://gw:9090" {
		t.Fatalf("GatewayURL = %q", cfg.GatewayURL)
	}
	if cfg.ReconnectDelay != 7*time.Second {
		t.Fatalf("ReconnectDelay = %s", cfg.ReconnectDelay)
	}
	if cfg.TypingTTL != 1500*time.Millisecond {
		t.Fatalf("TypingTTL = %s", cfg.TypingTTL)
	}
	if cfg.PageLimit != 50 {
		t.Fatalf("PageLimit = %d", cfg.PageLimit)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	if err := os.WriteFile(path, []byte("gateway_url: http://gw:9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("GATEWAY_URL", "http://env-wins:8000/")
	t.Setenv("PAGE_LIMIT", "35")

	cfg := Load()
	// env приоритетнее YAML; слэш в конце отрезается
	if cfg.GatewayURL != "http://env-wins:8000" {
		t.Fatalf("GatewayURL = %q", cfg.GatewayURL)
	}
	if cfg.PageLimit != 35 {
		t.Fatalf("PageLimit = %d", cfg.PageLimit)
	}
}

func TestLoad_InvalidEnvIntFallsBack(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "нет.yaml"))
	t.Setenv("PAGE_LIMIT", "not-a-number")

	cfg := Load()
	if cfg.PageLimit != 20 {
		t.Fatalf("PageLimit = %d, want 20", cfg.PageLimit)
	}
}
