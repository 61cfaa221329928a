package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Server.TokenTTL != 30*24*time.Hour {
		t.Errorf("unexpected default token TTL: %v", cfg.Server.TokenTTL)
	}
	if cfg.Client.ServerURL != "http://localhost:8080" {
		t.Errorf("unexpected default server URL: %q", cfg.Client.ServerURL)
	}
	if cfg.Client.CachePath == "" {
		t.Error("expected a default cache path")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ORGANIZA_SERVER_ADDR", ":9999")
	t.Setenv("ORGANIZA_SERVER_JWT_SECRET", "from-env")
	t.Setenv("ORGANIZA_CLIENT_SERVER_URL", "https://sync.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected env addr override, got %q", cfg.Server.Addr)
	}
	if cfg.Server.JWTSecret != "from-env" {
		t.Errorf("expected env secret, got %q", cfg.Server.JWTSecret)
	}
	if cfg.Client.ServerURL != "https://sync.example.com" {
		t.Errorf("expected env server URL, got %q", cfg.Client.ServerURL)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "organiza.yaml")
	content := []byte(`
server:
  addr: ":7777"
  jwt_secret: "file-secret"
client:
  drop_dir: "/tmp/drop"
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("expected file addr, got %q", cfg.Server.Addr)
	}
	if cfg.Server.JWTSecret != "file-secret" {
		t.Errorf("expected file secret, got %q", cfg.Server.JWTSecret)
	}
	if cfg.Client.DropDir != "/tmp/drop" {
		t.Errorf("expected file drop dir, got %q", cfg.Client.DropDir)
	}

	// defaults survive where the file is silent
	if cfg.Client.ServerURL != "http://localhost:8080" {
		t.Errorf("expected default server URL, got %q", cfg.Client.ServerURL)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
