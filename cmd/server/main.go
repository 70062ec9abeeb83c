package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"crypto_quote_bot/internal/app/di"
	"crypto_quote_bot/internal/app/router"
	"crypto_quote_bot/internal/config"
	commandhandler "crypto_quote_bot/internal/feature/command/transport/handler"
	commandusecase "crypto_quote_bot/internal/feature/command/usecase"
	entitlementadapters "crypto_quote_bot/internal/feature/entitlement/adapters"
	entitlementusecase "crypto_quote_bot/internal/feature/entitlement/usecase"
	quotausecase "crypto_quote_bot/internal/feature/quota/usecase"
	"crypto_quote_bot/internal/platform/cache"
	infradb "crypto_quote_bot/internal/platform/db"
	"crypto_quote_bot/internal/platform/http/handler"
	"crypto_quote_bot/internal/platform/logger"
	infraredis "crypto_quote_bot/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	log, closeLog := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	defer closeLog.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.OpenDB(infradb.Config{URL: cfg.DB.URL, RunMigrations: cfg.DB.RunMigrations})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer sqlDB.Close()

	// Redis（任意）
	var rdb *redis.Client
	if tmp, err := infraredis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password); err != nil {
		slog.Warn("Redis unavailable. Running without shared quote tier.", "error", err)
	} else if tmp != nil {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("Failed to close Redis client", "error", err)
			}
		}()
	}

	// Repository
	store, closeStore, err := di.NewQuotaStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()
	users := entitlementadapters.NewUserGorm(db)

	// Infrastructure
	quotes := cache.NewQuoteCache(cfg.Cache.TTL, cfg.Cache.Capacity)
	market := di.NewMarket(cfg.Market, rdb, cfg.Cache.TTL)
	enricher := di.NewEnricher(ctx, cfg.Narrative)
	alerts, closeAlerts := di.NewAlertNotifier(ctx, cfg.NATS.URL)
	defer closeAlerts()

	// Usecase
	policies := cfg.Policies()
	ledger := quotausecase.NewLedger(store, policies, quotausecase.Config{
		Window:       cfg.Quota.Window,
		StoreTimeout: cfg.Quota.StoreTimeout,
		FailOpen:     cfg.Quota.FailOpen,
	})
	orchestrator := commandusecase.NewOrchestrator(commandusecase.Deps{
		Resolver: entitlementusecase.NewResolver(cfg.Bot.PremiumRoleID),
		Ledger:   ledger,
		Cache:    quotes,
		Market:   market,
		Enricher: enricher,
		Alerts:   alerts,
		Users:    users,
		Policies: policies,
	}, commandusecase.Config{
		EnrichmentEnabled: cfg.Narrative.Enabled,
		StoreTimeout:      cfg.Quota.StoreTimeout,
	})

	// Handler
	health := handler.NewHealthHandler(2 * time.Second).With("database", handler.PingFunc(sqlDB.PingContext))
	if rdb != nil {
		health.With("redis", handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
	}
	commandH := commandhandler.NewCommandHandler(orchestrator, ledger)

	// ルータ生成
	r := router.NewRouter(health, commandH, cfg.Gateway.JWTSecret)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return quotes.RunSweeper(gctx, cfg.Cache.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
