package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GarethPark/story-subscription-sub001/internal/app"
	"github.com/GarethPark/story-subscription-sub001/internal/billing"
	"github.com/GarethPark/story-subscription-sub001/internal/config"
	"github.com/GarethPark/story-subscription-sub001/internal/metrics"
	"github.com/GarethPark/story-subscription-sub001/internal/ratelimit"
	"github.com/GarethPark/story-subscription-sub001/internal/server"
	"github.com/GarethPark/story-subscription-sub001/internal/util"
	"github.com/GarethPark/story-subscription-sub001/pkg/ai"
	"github.com/GarethPark/story-subscription-sub001/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCfg := app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		JWTSecret:      cfg.JWTSecret,
		SessionTTL:     sessionTTL,
		GenerationCost: cfg.GenerationCost,
	}
	if cfg.AIBaseURL != "" {
		appCfg.Generator = ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	}
	if cfg.StripeSecretKey != "" {
		appCfg.Portal = billing.NewStripeClient(cfg.StripeSecretKey)
	}
	if cfg.Minio.Endpoint != "" {
		covers, err := storage.NewMinioStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			log.Fatalf("failed to init cover storage: %v", err)
		}
		appCfg.Covers = covers
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var loginLimiter, generateLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		if cfg.LoginRateLimitPerMinute > 0 {
			loginLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "storysub:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init login limiter: %v", err)
			}
		}
		if cfg.GenerateRateLimitPerMinute > 0 {
			generateLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "storysub:ratelimit:generate", cfg.GenerateRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init generate limiter: %v", err)
			}
		}
	}

	httpServer, err := server.New(server.Config{
		App:               appCore,
		BaseURL:           cfg.BaseURL,
		ImageOriginURL:    cfg.ImageOriginURL,
		SessionCookieName: cfg.SessionCookieName,
		LoginLimiter:      loginLimiter,
		GenerateLimiter:   generateLimiter,
		Metrics:           metrics.NewCollector(),
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// Story generation waits on the AI provider, so writes get a long leash.
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
