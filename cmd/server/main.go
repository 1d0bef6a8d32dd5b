package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/nits22/smart-grocery-cart/config"
	httpDelivery "github.com/nits22/smart-grocery-cart/internal/delivery/http"
	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/cache"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/catalog"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/registry"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/sqlite"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/storeapi"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/summary"
	"github.com/nits22/smart-grocery-cart/internal/optimizer"
	"github.com/nits22/smart-grocery-cart/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		zap.L().Error("server stopped", zap.Error(err))
		_ = zap.L().Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer zap.L().Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("starting smart grocery cart",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.String("store", cfg.Store.Path))

	// Store registry
	stores, err := cfg.DomainStores()
	if err != nil {
		return err
	}
	reg, err := registry.New(stores)
	if err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}

	// Price tiers: memory cache -> sqlite cache -> live store search -> fallback catalog
	var (
		tiers []usecase.Tier
		runs  domain.RunRepository
	)

	if cfg.Cache.Type == "memory" {
		memoryCache := cache.NewMemoryCache(cfg.Cache.CleanupInterval)
		defer memoryCache.Close() //nolint:errcheck
		tiers = append(tiers, usecase.Tier{
			Provider:  usecase.NewCachedPriceProvider("memory", memoryCache, cfg.Cache.TTL),
			WriteBack: true,
		})
	}

	if cfg.Store.Path != "none" {
		db, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		go purgeExpiredPrices(ctx, db, cfg.Cache.CleanupInterval)

		tiers = append(tiers, usecase.Tier{
			Provider:  usecase.NewCachedPriceProvider("sqlite", db, cfg.Cache.TTL),
			WriteBack: true,
			Cacheable: true,
		})
		runs = db
	}

	if len(cfg.Scraper.Endpoints) > 0 {
		client := storeapi.NewClient(storeapi.Config{
			Endpoints:  cfg.Scraper.Endpoints,
			Timeout:    cfg.Scraper.Timeout,
			RateLimit:  cfg.Scraper.RateLimit,
			Burst:      cfg.Scraper.Burst,
			MaxRetries: cfg.Scraper.MaxRetries,
			Backoff:    cfg.Scraper.Backoff,
		})
		// Enable debug mode in development environment
		if cfg.Server.Environment == "development" {
			client.SetDebug(true)
		}
		tiers = append(tiers, usecase.Tier{
			Provider: usecase.NewLivePriceProvider(client, usecase.MatchConfig{
				MinConfidenceThreshold: cfg.Matching.MinConfidenceThreshold,
				ScoreTolerance:         cfg.Matching.ScoreTolerance,
				EnableFuzzyMatching:    cfg.Matching.EnableFuzzyMatching,
				EnableDebugLogging:     cfg.Matching.EnableDebugLogging,
			}),
			Cacheable: true,
		})
		zap.L().Info("live store search enabled", zap.Strings("stores", client.Stores()))
	} else {
		zap.L().Warn("no store search endpoints configured, using cached and catalog prices only")
	}

	fallback, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	// catalog prices are static and never cached
	tiers = append(tiers, usecase.Tier{Provider: fallback})

	// Summary
	var summarizer domain.Summarizer = summary.Template{}
	if cfg.Summary.Provider == "anthropic" {
		summarizer = summary.NewAnthropic(summary.AnthropicConfig{
			APIKey:    cfg.Summary.APIKey,
			Model:     cfg.Summary.Model,
			MaxTokens: cfg.Summary.MaxTokens,
			Options:   []option.RequestOption{option.WithRequestTimeout(cfg.Summary.Timeout)},
		})
	}

	strategy, err := domain.ParseStrategy(cfg.Optimizer.DefaultStrategy)
	if err != nil {
		return err
	}

	// Initialize usecase layer
	cartService := usecase.NewCartService(
		reg,
		usecase.NewPriceChain(tiers...),
		optimizer.New(optimizer.Config{MaxExactStores: cfg.Optimizer.MaxExactStores}),
		summarizer,
		runs,
		usecase.CartServiceConfig{
			DefaultStrategy:  strategy,
			MaxItems:         cfg.Optimizer.MaxItems,
			FetchConcurrency: cfg.Scraper.Concurrency,
			FetchTimeout:     cfg.Scraper.FetchTimeout,
			DefaultCity:      cfg.Server.DefaultCity,
		},
	)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(cartService)
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeExpiredPrices deletes expired sqlite cache rows until ctx is done
func purgeExpiredPrices(ctx context.Context, db *sqlite.Store, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.DeleteExpiredPrices(ctx)
			if err != nil {
				zap.L().Warn("failed to purge expired prices", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Debug("purged expired prices", zap.Int("rows", n))
			}
		}
	}
}
