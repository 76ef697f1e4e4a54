// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthtrack-billing/internal/config"
	"healthtrack-billing/internal/domain/ports/adapter"
	"healthtrack-billing/internal/domain/ports/repository"
	pg "healthtrack-billing/internal/infra/db/postgres"
	"healthtrack-billing/internal/infra/logging"
	"healthtrack-billing/internal/infra/metrics"
	"healthtrack-billing/internal/infra/notify"
	red "healthtrack-billing/internal/infra/redis"
	"healthtrack-billing/internal/infra/sched"
	"healthtrack-billing/internal/infra/stripe"
	"healthtrack-billing/internal/infra/web"
	"healthtrack-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	var tierRepo repository.TierRepository = pg.NewTierRepo(pool)
	subRepo := pg.NewSubscriptionStateRepo(pool)
	historyRepo := pg.NewHistoryRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	// ---- Redis tier-catalog cache (optional) ----
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		tierRepo = pg.NewTierRepoCacheDecorator(tierRepo, redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url not set; tier catalog cache disabled")
	}

	// ---- Adapters ----
	gateway := stripe.NewClient(cfg.Stripe.SecretKey, *logger)
	decoder := stripe.NewWebhookDecoder(cfg.Stripe.WebhookSecret, cfg.Stripe.Tolerance)
	notifier := notify.NewEmailJSNotifier(
		cfg.Notify.EmailJS.ServiceID,
		cfg.Notify.EmailJS.PublicKey,
		cfg.Notify.EmailJS.PrivateKey,
		*logger,
	)
	templates := adapter.TemplateSet{
		Welcome:   cfg.Notify.Templates.Welcome,
		Upgrade:   cfg.Notify.Templates.Upgrade,
		Downgrade: cfg.Notify.Templates.Downgrade,
		Cancelled: cfg.Notify.Templates.Cancelled,
	}

	// ---- Use cases ----
	catalogUC := usecase.NewCatalogUseCase(tierRepo, logger)
	entitlementUC := usecase.NewEntitlementUseCase(catalogUC, subRepo, historyRepo, logger)
	reconcileUC := usecase.NewReconcileUseCase(catalogUC, subRepo, userRepo, historyRepo, notifier, templates, logger)
	checkoutUC := usecase.NewCheckoutUseCase(gateway, catalogUC, subRepo, userRepo, cfg.App.BaseURL, logger)
	expiryUC := usecase.NewExpiryUseCase(subRepo, historyRepo, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.SessionSecret, cfg.Server.SessionTTL)
	srv := web.NewServer(reconcileUC, entitlementUC, catalogUC, checkoutUC, decoder, auth, cfg.Server.APIKey, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, expiryUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
}
