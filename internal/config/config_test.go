package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if cfg.Server.BasePath != "/v1" {
		t.Fatalf("unexpected base path %q", cfg.Server.BasePath)
	}
	if cfg.Auth.APIKeyTTL.Duration != 720*time.Hour {
		t.Fatalf("unexpected api key ttl %v", cfg.Auth.APIKeyTTL)
	}
	if cfg.Resolver.Workers != 4 {
		t.Fatalf("unexpected workers %d", cfg.Resolver.Workers)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("resolver:\n  workers: 9\nauth:\n  token_ttl: 5m\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Resolver.Workers != 9 {
		t.Fatalf("workers not overridden: %d", cfg.Resolver.Workers)
	}
	if cfg.Auth.TokenTTL.Duration != 5*time.Minute {
		t.Fatalf("token ttl not overridden: %v", cfg.Auth.TokenTTL)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Fatalf("default addr lost: %q", cfg.Server.Addr)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"workers":   "resolver:\n  workers: 0\n",
		"ttl":       "auth:\n  api_key_ttl: -1h\n",
		"duration":  "auth:\n  api_key_ttl: soon\n",
		"base path": "server:\n  base_path: v1\n",
		"log level": "log:\n  level: loud\n",
	}
	for name, raw := range cases {
		if _, err := FromYAML([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr == "" {
		t.Fatalf("expected default config")
	}
	if err := os.WriteFile(filepath.Join(dir, "tufline.yml"), []byte("server:\n  addr: 0.0.0.0:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Fatalf("file not applied: %q", cfg.Server.Addr)
	}
	if !strings.Contains(GenerateDefault(), "api_key_ttl") {
		t.Fatalf("default template missing keys")
	}
}
