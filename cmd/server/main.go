package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"tripparty/internal/app"
	"tripparty/internal/config"
	"tripparty/internal/server"
	"tripparty/internal/usertoken"
	"tripparty/internal/util"
	"tripparty/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenTTL := time.Duration(0)
	if cfg.TokenTTL != "" {
		tokenTTL, err = time.ParseDuration(cfg.TokenTTL)
		if err != nil {
			fatal(logger, "invalid tokenTTL", err)
		}
	}
	tokens, err := usertoken.New(usertoken.Config{
		Secret:   cfg.TokenSecret,
		Issuer:   cfg.TokenIssuer,
		Audience: cfg.TokenAudience,
		TTL:      tokenTTL,
	})
	if err != nil {
		fatal(logger, "failed to init user tokens", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			fatal(logger, "failed to init object store", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		LLMProvider: cfg.LLMProvider,
		LLMBaseURL:  cfg.LLMBaseURL,
		LLMAPIKey:   cfg.LLMAPIKey,
		LLMModel:    cfg.LLMModel,
		Objects:     objects,
	})
	if err != nil {
		fatal(logger, "failed to init app", err)
	}

	httpServer, err := server.New(server.Config{
		App:                    appCore,
		Tokens:                 tokens,
		RedisAddr:              cfg.RedisAddr,
		RedisPassword:          cfg.RedisPassword,
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		AskRateLimitPerMinute:  cfg.AskRateLimitPerMinute,
		TrustedProxyCIDRs:      cfg.TrustedProxyCIDRs,
		MaxImageUploadBytes:    cfg.MaxImageUploadBytes,
	})
	if err != nil {
		fatal(logger, "failed to init server", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
