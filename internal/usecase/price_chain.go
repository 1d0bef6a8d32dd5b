package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// Tier is one provider in a PriceChain. WriteBack tiers receive observations
// resolved by later Cacheable tiers when the provider also implements domain.PriceSink.
// Fallback data such as the static catalog must not be Cacheable, or it would
// shadow live prices for the whole cache TTL.
type Tier struct {
	Provider  domain.PriceProvider
	WriteBack bool
	Cacheable bool
}

// PriceChain queries provider tiers in order until every store is resolved.
type PriceChain struct {
	tiers []Tier
}

// NewPriceChain creates a chain over tiers, queried first to last
func NewPriceChain(tiers ...Tier) *PriceChain {
	return &PriceChain{tiers: tiers}
}

// Name returns the chain name
func (c *PriceChain) Name() string {
	return "chain"
}

// FetchPrices resolves each queried store from the first tier that has an available
// price for it. Stores only seen as unavailable keep the first such observation.
// A failing tier is logged and skipped. Context errors stop the chain and are
// returned together with whatever earlier tiers already resolved.
func (c *PriceChain) FetchPrices(ctx context.Context, query domain.PriceQuery) ([]domain.Observation, error) {
	resolved := make(map[string]domain.Observation, len(query.Stores))
	unavailable := make(map[string]domain.Observation)

	pending := append([]string(nil), query.Stores...)
	for i, tier := range c.tiers {
		if len(pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return collect(query.Stores, resolved, unavailable), err
		}

		tierQuery := query
		tierQuery.Stores = pending
		observations, err := tier.Provider.FetchPrices(ctx, tierQuery)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return collect(query.Stores, resolved, unavailable), err
			}
			zap.L().Warn("price tier failed",
				zap.String("tier", tier.Provider.Name()),
				zap.String("item", string(query.Item)),
				zap.Error(err))
		}

		var fresh []domain.Observation
		for _, obs := range observations {
			if !contains(pending, obs.Store) {
				continue
			}
			if obs.Source == "" {
				obs.Source = tier.Provider.Name()
			}
			if obs.Available && obs.Price != domain.PriceUnavailable {
				if _, done := resolved[obs.Store]; !done {
					resolved[obs.Store] = obs
					fresh = append(fresh, obs)
				}
				continue
			}
			if _, seen := unavailable[obs.Store]; !seen {
				unavailable[obs.Store] = obs
			}
		}

		if len(fresh) > 0 && tier.Cacheable {
			c.writeBack(ctx, i, query, fresh)
		}
		pending = remaining(pending, resolved)
	}

	return collect(query.Stores, resolved, unavailable), nil
}

// collect orders observations by the queried stores, preferring resolved prices
func collect(stores []string, resolved, unavailable map[string]domain.Observation) []domain.Observation {
	out := make([]domain.Observation, 0, len(stores))
	for _, store := range stores {
		if obs, ok := resolved[store]; ok {
			out = append(out, obs)
		} else if obs, ok := unavailable[store]; ok {
			out = append(out, obs)
		}
	}
	return out
}

// writeBack hands observations resolved at tier upto to every earlier write-back tier
func (c *PriceChain) writeBack(ctx context.Context, upto int, query domain.PriceQuery, observations []domain.Observation) {
	for _, tier := range c.tiers[:upto] {
		if !tier.WriteBack {
			continue
		}
		sink, ok := tier.Provider.(domain.PriceSink)
		if !ok {
			continue
		}
		if err := sink.StorePrices(ctx, query, observations); err != nil {
			zap.L().Warn("price write-back failed",
				zap.String("tier", tier.Provider.Name()),
				zap.String("item", string(query.Item)),
				zap.Error(err))
		}
	}
}

func remaining(stores []string, resolved map[string]domain.Observation) []string {
	out := stores[:0:0]
	for _, s := range stores {
		if _, ok := resolved[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
