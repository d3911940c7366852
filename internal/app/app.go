package app

import (
	"errors"
	"strings"

	"bookstore/pkg/auth"
	"bookstore/pkg/storage"
	"bookstore/pkg/store"
)

// Config holds runtime dependencies for the core application.
type Config struct {
	Store   store.Store
	Objects storage.ObjectStore
	Tokens  *auth.TokenIssuer

	MaxUploadBytes    int64
	AllowedExtensions []string
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store   store.Store
	objects storage.ObjectStore
	tokens  *auth.TokenIssuer

	maxUploadBytes int64
	allowedExt     map[string]struct{}
}

// New constructs the application from its dependencies.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	if len(allowed) == 0 {
		for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
			allowed[ext] = struct{}{}
		}
	}
	return &App{
		store:          cfg.Store,
		objects:        cfg.Objects,
		tokens:         cfg.Tokens,
		maxUploadBytes: maxBytes,
		allowedExt:     allowed,
	}, nil
}

// MaxUploadBytes returns the configured upload size limit.
func (a *App) MaxUploadBytes() int64 { return a.maxUploadBytes }
