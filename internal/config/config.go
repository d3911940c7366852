package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

const (
	defaultMaxUploadBytes = 5 << 20
	defaultTokenTTL       = "24h"
)

var defaultAllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	LogLevel    string `yaml:"logLevel"`

	TokenSecret   string `yaml:"tokenSecret"`
	TokenIssuer   string `yaml:"tokenIssuer"`
	TokenAudience string `yaml:"tokenAudience"`
	TokenTTL      string `yaml:"tokenTTL"`

	StorageDriver   string `yaml:"storageDriver"`
	LocalStorageDir string `yaml:"localStorageDir"`
	MinioEndpoint   string `yaml:"minioEndpoint"`
	MinioAccessKey  string `yaml:"minioAccessKey"`
	MinioSecretKey  string `yaml:"minioSecretKey"`
	MinioBucket     string `yaml:"minioBucket"`
	MinioUseSSL     bool   `yaml:"minioUseSSL"`

	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`

	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	AuthRateLimit  int    `yaml:"authRateLimit"`
	AuthRateWindow string `yaml:"authRateWindow"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BOOKSTORE_TOKEN_SECRET"); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = v
	}
	if v := os.Getenv("LOCAL_STORAGE_DIR"); v != "" {
		cfg.LocalStorageDir = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("BOOKSTORE_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("BOOKSTORE_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitCSV(v)
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = "local"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
	}
	if cfg.TokenTTL == "" {
		cfg.TokenTTL = defaultTokenTTL
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.TokenSecret == "" {
		return errors.New("config: tokenSecret is required (set in config.yaml or BOOKSTORE_TOKEN_SECRET)")
	}
	if _, err := cfg.ParseTokenTTL(); err != nil {
		return err
	}
	switch cfg.StorageDriver {
	case "local":
		if cfg.LocalStorageDir == "" {
			return errors.New("config: localStorageDir is required for the local storage driver")
		}
	case "minio":
		if cfg.MinioEndpoint == "" {
			return errors.New("config: minioEndpoint is required for the minio storage driver")
		}
		if cfg.MinioAccessKey == "" {
			return errors.New("config: minioAccessKey is required for the minio storage driver")
		}
		if cfg.MinioSecretKey == "" {
			return errors.New("config: minioSecretKey is required for the minio storage driver")
		}
		if cfg.MinioBucket == "" {
			return errors.New("config: minioBucket is required for the minio storage driver")
		}
	default:
		return fmt.Errorf("config: unknown storageDriver %q (local or minio)", cfg.StorageDriver)
	}
	if cfg.AuthRateLimit > 0 {
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required when authRateLimit is set")
		}
		if _, err := cfg.ParseAuthRateWindow(); err != nil {
			return err
		}
	}
	return nil
}

// ParseTokenTTL parses the configured token lifetime.
func (c FileConfig) ParseTokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: tokenTTL must be a positive duration, got %q", c.TokenTTL)
	}
	return d, nil
}

// ParseAuthRateWindow parses the auth rate-limit window, defaulting to one
// minute when unset.
func (c FileConfig) ParseAuthRateWindow() (time.Duration, error) {
	if c.AuthRateWindow == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(c.AuthRateWindow)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: authRateWindow must be a positive duration, got %q", c.AuthRateWindow)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
