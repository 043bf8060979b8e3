// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"premium-activation/internal/config"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/adapters/account"
	"premium-activation/internal/infra/adapters/notify"
	payAdapters "premium-activation/internal/infra/adapters/payment"
	"premium-activation/internal/infra/adapters/session"
	"premium-activation/internal/infra/api"
	pg "premium-activation/internal/infra/db/postgres"
	"premium-activation/internal/infra/i18n"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/infra/memstore"
	"premium-activation/internal/infra/metrics"
	red "premium-activation/internal/infra/redis"
	"premium-activation/internal/infra/sched"
	"premium-activation/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, in-memory account service)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	plans, err := model.NewPlanCatalog(cfg.Plans)
	if err != nil {
		logger.Fatal().Err(err).Msg("plans")
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.I18n.Lang)
	if err != nil {
		logger.Fatal().Err(err).Str("lang", cfg.I18n.Lang).Msg("i18n")
	}
	if missing := tr.Missing(i18n.RequiredKeys...); len(missing) > 0 {
		logger.Warn().Strs("keys", missing).Str("lang", tr.Lang()).Msg("i18n catalog incomplete")
	}

	// ---- Redis (optional) ----
	var (
		snapshots repository.EngineSnapshotRepository
		params    repository.ReturnParamsRepository
		premium   repository.PremiumCacheRepository
		limiter   api.RateLimiter
		locker    adapter.Locker
		limitKey  = red.InitiateKey
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		snapshots = red.NewSnapshotRepo(redisClient, cfg.Redis.TTL)
		params = red.NewReturnParamsRepo(redisClient, cfg.Redis.TTL)
		premium = red.NewPremiumCache(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		logger.Info().Msg("redis state store enabled")
	} else {
		store := memstore.New()
		snapshots, params, premium = store, store, store
		limiter = memstore.NewRateLimiter()
		logger.Warn().Msg("redis.url not set; engine state is kept in memory only")
	}

	// ---- Postgres attempt ledger (optional) ----
	var (
		attempts repository.ActivationAttemptRepository
		txm      repository.TransactionManager
		ledger   usecase.LedgerUseCase
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, &cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema")
		}
		attempts = pg.NewActivationAttemptRepo(pool)
		txm = pg.NewTxManager(pool)
		ledger = usecase.NewLedgerUseCase(attempts, logger)
	} else {
		logger.Warn().Msg("database.url not set; activation attempt ledger disabled")
	}

	// ---- Adapters ----
	gateway, err := payAdapters.NewBackendGateway(cfg.Payment.BaseURL, cfg.Payment.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	var accounts adapter.AccountService
	if cfg.Runtime.Dev {
		accounts = account.NewMemoryAccountService()
	} else {
		accounts, err = account.NewHTTPAccountService(cfg.Account.BaseURL, cfg.Account.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("account service")
		}
	}
	sessions := session.NewMemoryStore()
	inbox := notify.NewInbox(20)
	notifier := notify.Multi{notify.NewLogNotifier(logger), inbox}

	// ---- Use cases ----
	checkout := usecase.NewCheckoutUseCase(gateway, notify.NewLogOpener(logger), usecase.CheckoutOptions{
		PublicBaseURL:     cfg.HTTP.PublicBaseURL,
		ReturnPath:        cfg.Payment.ReturnPath,
		CancelPath:        cfg.Payment.CancelPath,
		DescriptionBudget: cfg.Payment.DescriptionBudget,
	}, logger)
	registry := usecase.NewEngineRegistry(usecase.EngineDeps{
		Plans:     plans,
		Checkout:  checkout,
		Activator: usecase.NewActivator(accounts, premium, logger),
		Sessions:  sessions,
		Notifier:  notifier,
		Prompter:  notify.NewLoginPrompter(notifier, tr),
		Messages:  tr,
		Snapshots: snapshots,
		Attempts:  attempts,
		TxManager: txm,
		Locker:    locker,
	}, logger)
	listener := usecase.NewReturnListener(params, registry, logger)

	// ---- HTTP ----
	var admin *api.AdminAuth
	if cfg.Admin.JWTSecret != "" {
		admin = api.NewAdminAuth(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	}
	srv := api.NewServer(api.Deps{
		Engines:  registry,
		Listener: listener,
		Sessions: sessions,
		Plans:    plans,
		Premium:  premium,
		Ledger:   ledger,
		Inbox:    inbox,
		Limiter:  limiter,
		Admin:    admin,
	}, api.Options{
		ReturnPath:     cfg.Payment.ReturnPath,
		CancelPath:     cfg.Payment.CancelPath,
		InitiateLimit:  cfg.RateLimit.InitiatePerWindow,
		RateWindow:     cfg.RateLimit.Window,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		LimitKey:       limitKey,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("return_path", cfg.Payment.ReturnPath).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Stale attempt sweeper ----
	if ledger != nil {
		sweeper := sched.NewAttemptSweeper(cfg.Sweeper.Interval, cfg.Sweeper.StaleAfter, ledger, logger)
		go func() { _ = sweeper.Run(ctx) }()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
