package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// LivePriceProvider resolves prices by searching each store's product API and
// matching the returned listings against the requested item.
type LivePriceProvider struct {
	client       domain.StoreSearchClient
	preprocessor *QueryPreprocessor
	matcher      *MatchingService
}

// NewLivePriceProvider creates a live price tier backed by client
func NewLivePriceProvider(client domain.StoreSearchClient, matchConfig MatchConfig) *LivePriceProvider {
	return &LivePriceProvider{
		client:       client,
		preprocessor: NewQueryPreprocessor(matchConfig.EnableDebugLogging),
		matcher:      NewMatchingService(matchConfig),
	}
}

// Name returns the tier name
func (p *LivePriceProvider) Name() string {
	return domain.SourceLive
}

// FetchPrices searches every queried store concurrently. Stores without a configured
// endpoint are skipped. A store whose search finds nothing suitable yields an
// unavailable observation. An error is returned only when every searched store failed.
func (p *LivePriceProvider) FetchPrices(ctx context.Context, query domain.PriceQuery) ([]domain.Observation, error) {
	searchQuery := p.preprocessor.PreprocessQuery(string(query.Item))
	if searchQuery == "" {
		return nil, domain.NewValidationError("item", "nothing to search for in %q", query.Item)
	}

	var (
		mu       sync.Mutex
		found    []domain.Observation
		failures []error
		searched int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, store := range query.Stores {
		g.Go(func() error {
			obs, err := p.fetchStore(gctx, query, store, searchQuery)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, domain.ErrNoEndpoint):
				return nil
			case err != nil:
				searched++
				failures = append(failures, fmt.Errorf("%s: %w", store, err))
				zap.L().Warn("live price lookup failed",
					zap.String("store", store),
					zap.String("item", string(query.Item)),
					zap.Error(err))
			default:
				searched++
				found = append(found, obs)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return found, err
	}
	if searched > 0 && len(failures) == searched {
		return nil, errors.Join(failures...)
	}
	return found, nil
}

func (p *LivePriceProvider) fetchStore(ctx context.Context, query domain.PriceQuery, store, searchQuery string) (domain.Observation, error) {
	resp, err := p.client.SearchProducts(ctx, store, query.City, searchQuery)
	if err != nil {
		return domain.Observation{}, err
	}

	// Retry with the single most important keyword when the full query finds nothing
	if len(resp.Products) == 0 {
		if keywords := p.preprocessor.ExtractFoodKeywords(searchQuery); len(keywords) > 0 && keywords[0] != searchQuery {
			resp, err = p.client.SearchProducts(ctx, store, query.City, keywords[0])
			if err != nil {
				return domain.Observation{}, err
			}
		}
	}

	unavailable := domain.Observation{
		Item:   query.Item,
		Store:  store,
		Price:  domain.PriceUnavailable,
		Source: domain.SourceLive,
	}

	match, err := p.matcher.FindBestMatch(ctx, query.Item, resp.Products)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Observation{}, err
		}
		return unavailable, nil
	}

	listing := match.Listing
	if !listing.Available || listing.Price == domain.PriceUnavailable {
		unavailable.DisplayName = listing.Name
		return unavailable, nil
	}
	return domain.Observation{
		Item:        query.Item,
		Store:       store,
		Price:       listing.Price,
		Available:   true,
		DisplayName: listing.Name,
		Source:      domain.SourceLive,
	}, nil
}
