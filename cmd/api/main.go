package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"bookstore/internal/app"
	"bookstore/internal/config"
	"bookstore/internal/ratelimit"
	"bookstore/internal/server"
	"bookstore/internal/util"
	"bookstore/pkg/auth"
	"bookstore/pkg/storage"
	"bookstore/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenTTL, err := cfg.ParseTokenTTL()
	if err != nil {
		log.Fatalf("failed to parse token ttl: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   cfg.TokenSecret,
		Issuer:   cfg.TokenIssuer,
		Audience: cfg.TokenAudience,
		TTL:      tokenTTL,
	})
	if err != nil {
		log.Fatalf("failed to init token issuer: %v", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	var objects storage.ObjectStore
	uploadsDir := ""
	switch cfg.StorageDriver {
	case "minio":
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		var local *storage.LocalStore
		local, err = storage.NewLocalStore(cfg.LocalStorageDir)
		if err == nil {
			objects = local
			uploadsDir = local.Root()
		}
	}
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:             dataStore,
		Objects:           objects,
		Tokens:            tokens,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var authLimiter server.Limiter
	if cfg.AuthRateLimit > 0 {
		window, err := cfg.ParseAuthRateWindow()
		if err != nil {
			log.Fatalf("failed to parse auth rate window: %v", err)
		}
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "bookstore:ratelimit", cfg.AuthRateLimit, window)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		authLimiter = limiter
	}

	httpServer := server.New(server.Config{
		App:         appCore,
		AuthLimiter: authLimiter,
		UploadsDir:  uploadsDir,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("bookstore api listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
