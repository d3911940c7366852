package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
port: "8080"
databaseURL: "postgres://localhost/bookstore"
tokenSecret: "0123456789abcdef0123456789abcdef"
storageDriver: "local"
localStorageDir: "./uploads"
`

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := writeConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Fatalf("maxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if len(cfg.AllowedExtensions) == 0 {
		t.Fatalf("allowed extensions should default")
	}
	ttl, err := cfg.ParseTokenTTL()
	if err != nil {
		t.Fatalf("parse ttl: %v", err)
	}
	if ttl != 24*time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override/db")
	t.Setenv("BOOKSTORE_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("BOOKSTORE_ALLOWED_EXTENSIONS", ".png, .webp")
	path := writeConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://override/db" {
		t.Fatalf("databaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("maxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != ".png" {
		t.Fatalf("allowed extensions = %v", cfg.AllowedExtensions)
	}
}

func TestLoadRequiresTokenSecret(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/bookstore"
storageDriver: "local"
localStorageDir: "./uploads"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "tokenSecret") {
		t.Fatalf("expected tokenSecret error, got %v", err)
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/bookstore"
tokenSecret: "0123456789abcdef0123456789abcdef"
storageDriver: "ftp"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "storageDriver") {
		t.Fatalf("expected storageDriver error, got %v", err)
	}
}

func TestLoadMinioDriverRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/bookstore"
tokenSecret: "0123456789abcdef0123456789abcdef"
storageDriver: "minio"
minioEndpoint: "localhost:9000"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "minioAccessKey") {
		t.Fatalf("expected minioAccessKey error, got %v", err)
	}
}

func TestLoadRateLimitRequiresRedis(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
authRateLimit: 10
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "redisAddr") {
		t.Fatalf("expected redisAddr error, got %v", err)
	}
}

func TestParseTokenTTLRejectsInvalid(t *testing.T) {
	cfg := FileConfig{TokenTTL: "never"}
	if _, err := cfg.ParseTokenTTL(); err == nil {
		t.Fatalf("invalid ttl must be rejected")
	}
	cfg.TokenTTL = "-1h"
	if _, err := cfg.ParseTokenTTL(); err == nil {
		t.Fatalf("negative ttl must be rejected")
	}
}
