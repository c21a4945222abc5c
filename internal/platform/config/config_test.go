package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Cache.Dir != ".cache" {
		t.Fatalf("expected default cache dir, got %q", cfg.Cache.Dir)
	}
	if cfg.StoreLookup.Debounce != 300*time.Millisecond {
		t.Fatalf("expected default debounce, got %v", cfg.StoreLookup.Debounce)
	}
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "PORT=9999\nSTORAGE_BUCKET=file-bucket\n# comment\nBROKEN LINE\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("ENV_FILE", envFile)
	t.Setenv("PORT", "7777")
	os.Unsetenv("STORAGE_BUCKET")
	t.Cleanup(func() { os.Unsetenv("STORAGE_BUCKET") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Fatalf("expected process env to win, got %q", cfg.Server.Port)
	}
	if cfg.Storage.Bucket != "file-bucket" {
		t.Fatalf("expected bucket from env file, got %q", cfg.Storage.Bucket)
	}
}

func TestLoadRejectsInvalidTimeouts(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SERVER_READ_TIMEOUT", "-5s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for negative timeout")
	}
}
