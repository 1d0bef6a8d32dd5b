package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9.\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

const defaultPriceCacheTTL = 6 * time.Hour

// CachedPriceProvider serves observations from a keyed cache and accepts write-backs
// from later tiers of the price chain.
type CachedPriceProvider struct {
	name  string
	cache domain.PriceCache
	ttl   time.Duration
}

// NewCachedPriceProvider wraps cache as a price provider tier
func NewCachedPriceProvider(name string, cache domain.PriceCache, ttl time.Duration) *CachedPriceProvider {
	if ttl <= 0 {
		ttl = defaultPriceCacheTTL
	}
	return &CachedPriceProvider{name: name, cache: cache, ttl: ttl}
}

// Name returns the tier name used in logs and source tags
func (p *CachedPriceProvider) Name() string {
	return p.name
}

// FetchPrices returns the cached observation for every queried store that has one.
// Misses are skipped; other cache failures are returned alongside the hits.
func (p *CachedPriceProvider) FetchPrices(ctx context.Context, query domain.PriceQuery) ([]domain.Observation, error) {
	var (
		found []domain.Observation
		errs  []error
	)
	for _, store := range query.Stores {
		obs, err := p.cache.Get(ctx, priceCacheKey(query.City, query.Item, store))
		if errors.Is(err, domain.ErrCacheMiss) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store, err))
			continue
		}
		obs.Item = query.Item
		obs.Store = store
		obs.Source = domain.SourceCache
		found = append(found, obs)
	}
	return found, errors.Join(errs...)
}

// StorePrices caches observations resolved by a later tier
func (p *CachedPriceProvider) StorePrices(ctx context.Context, query domain.PriceQuery, observations []domain.Observation) error {
	var errs []error
	for _, obs := range observations {
		key := priceCacheKey(query.City, query.Item, obs.Store)
		if err := p.cache.Set(ctx, key, obs, p.ttl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", obs.Store, err))
		}
	}
	if len(errs) > 0 {
		zap.L().Warn("price cache write failed",
			zap.String("tier", p.name),
			zap.String("item", string(query.Item)),
			zap.Int("failed", len(errs)))
	}
	return errors.Join(errs...)
}

// priceCacheKey creates a normalized cache key.
// Format: "price:{city}:{item}:{store}"
func priceCacheKey(city string, item domain.Item, store string) string {
	return fmt.Sprintf("price:%s:%s:%s",
		normalizeForCacheKey(city), normalizeForCacheKey(string(item)), normalizeForCacheKey(store))
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
