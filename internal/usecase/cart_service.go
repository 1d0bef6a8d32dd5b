package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/summary"
	"github.com/nits22/smart-grocery-cart/internal/optimizer"
	"github.com/nits22/smart-grocery-cart/internal/pricematrix"
)

const (
	defaultMaxItems         = 50
	defaultFetchConcurrency = 4
	defaultFetchTimeout     = 30 * time.Second
	defaultRunListLimit     = 20
)

// CartServiceConfig holds configuration for the cart service
type CartServiceConfig struct {
	DefaultStrategy  domain.Strategy
	MaxItems         int
	FetchConcurrency int
	FetchTimeout     time.Duration
	DefaultCity      string
}

// CartRequest asks for the cheapest way to buy a shopping list
type CartRequest struct {
	Items    []string `json:"items"`
	City     string   `json:"city"`
	Stores   []string `json:"stores,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
	Compare  bool     `json:"compare,omitempty"`
}

// ObservationRequest optimizes caller-supplied observations without fetching prices
type ObservationRequest struct {
	Items        []string             `json:"items"`
	Stores       []domain.Store       `json:"stores"`
	Observations []domain.Observation `json:"observations"`
	Strategy     string               `json:"strategy,omitempty"`
	Compare      bool                 `json:"compare,omitempty"`
}

// CartResult is the outcome of one optimization
type CartResult struct {
	RunID        string                 `json:"run_id,omitempty"`
	City         string                 `json:"city,omitempty"`
	Plan         *domain.AllocationPlan `json:"plan"`
	Comparison   *domain.Comparison     `json:"comparison,omitempty"`
	Observations []domain.Observation   `json:"observations,omitempty"`
	Sources      map[domain.Item]string `json:"sources,omitempty"`
	Summary      string                 `json:"summary,omitempty"`
}

// CartService orchestrates price lookup, optimization, summary and run history
type CartService struct {
	registry   domain.StoreRegistry
	prices     domain.PriceProvider
	optimizer  *optimizer.Optimizer
	summarizer domain.Summarizer
	runs       domain.RunRepository
	config     CartServiceConfig
}

// NewCartService creates a new cart service with dependencies.
// summarizer and runs may be nil.
func NewCartService(
	registry domain.StoreRegistry,
	prices domain.PriceProvider,
	opt *optimizer.Optimizer,
	summarizer domain.Summarizer,
	runs domain.RunRepository,
	config CartServiceConfig,
) *CartService {
	if config.DefaultStrategy == "" {
		config.DefaultStrategy = domain.StrategyGreedy
	}
	if config.MaxItems <= 0 {
		config.MaxItems = defaultMaxItems
	}
	if config.FetchConcurrency <= 0 {
		config.FetchConcurrency = defaultFetchConcurrency
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaultFetchTimeout
	}
	if opt == nil {
		opt = optimizer.New(optimizer.Config{})
	}

	return &CartService{
		registry:   registry,
		prices:     prices,
		optimizer:  opt,
		summarizer: summarizer,
		runs:       runs,
		config:     config,
	}
}

// OptimizeCart looks up prices for every item, optimizes the cart and records the run.
// Flow: normalize -> resolve stores -> fetch prices -> build matrix -> optimize -> summarize -> save
func (s *CartService) OptimizeCart(ctx context.Context, req *CartRequest) (*CartResult, error) {
	if req == nil {
		return nil, domain.NewValidationError("request", "must not be empty")
	}

	items, err := s.normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}
	strategy, err := s.strategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	stores, err := s.resolveStores(req.Stores)
	if err != nil {
		return nil, err
	}

	city := strings.TrimSpace(req.City)
	if city == "" {
		city = s.config.DefaultCity
	}

	observations, err := s.fetchPrices(ctx, city, items, stores)
	if err != nil {
		return nil, err
	}

	m, err := pricematrix.Build(observations, items, stores)
	if err != nil {
		return nil, err
	}

	plan, comparison, err := s.optimize(m, stores, strategy, req.Compare)
	if err != nil {
		return nil, err
	}

	result := &CartResult{
		City:         city,
		Plan:         plan,
		Comparison:   comparison,
		Observations: observations,
		Sources:      sourcesByItem(items, observations),
		Summary:      s.summarize(ctx, city, plan),
	}

	run := &domain.Run{
		Items:      items,
		City:       city,
		Stores:     storeNames(stores),
		Strategy:   strategy,
		Plan:       plan,
		Comparison: comparison,
		Sources:    result.Sources,
		Summary:    result.Summary,
	}
	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, run); err != nil {
			zap.L().Warn("failed to save run", zap.Error(err))
		} else {
			result.RunID = run.ID
		}
	}

	zap.L().Info("cart optimized",
		zap.String("run_id", result.RunID),
		zap.String("city", city),
		zap.String("strategy", string(strategy)),
		zap.Int("items", len(items)),
		zap.Int("stores", len(stores)),
		zap.Int("unavailable", len(plan.UnavailableItems)),
		zap.Stringer("grand_total", plan.GrandTotal))

	return result, nil
}

// OptimizeObservations runs the optimizer directly on caller-supplied observations.
// When no stores are given the registry's stores are used.
func (s *CartService) OptimizeObservations(ctx context.Context, req *ObservationRequest) (*CartResult, error) {
	if req == nil {
		return nil, domain.NewValidationError("request", "must not be empty")
	}

	items, err := s.normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}
	strategy, err := s.strategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	stores := req.Stores
	if len(stores) == 0 && s.registry != nil {
		stores = s.registry.List()
	}

	m, err := pricematrix.Build(req.Observations, items, stores)
	if err != nil {
		return nil, err
	}

	plan, comparison, err := s.optimize(m, stores, strategy, req.Compare)
	if err != nil {
		return nil, err
	}

	return &CartResult{
		Plan:       plan,
		Comparison: comparison,
		Summary:    summary.Describe(plan),
	}, nil
}

// ListStores returns every configured store
func (s *CartService) ListStores() []domain.Store {
	if s.registry == nil {
		return []domain.Store{}
	}
	return s.registry.List()
}

// GetRun returns a recorded run
func (s *CartService) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}
	if s.runs == nil {
		return nil, domain.ErrRunNotFound
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns the most recent runs, newest first
func (s *CartService) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	if s.runs == nil {
		return []domain.Run{}, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

func (s *CartService) normalizeItems(raw []string) ([]domain.Item, error) {
	items := domain.NormalizeItems(raw)
	if len(items) == 0 {
		return nil, domain.NewValidationError("items", "must contain at least one item")
	}
	if len(items) > s.config.MaxItems {
		return nil, domain.NewValidationError("items", "at most %d items allowed, got %d", s.config.MaxItems, len(items))
	}
	return items, nil
}

func (s *CartService) strategy(name string) (domain.Strategy, error) {
	if strings.TrimSpace(name) == "" {
		return s.config.DefaultStrategy, nil
	}
	return domain.ParseStrategy(name)
}

func (s *CartService) resolveStores(names []string) ([]domain.Store, error) {
	if s.registry == nil {
		return nil, domain.NewValidationError("stores", "no store registry configured")
	}
	if len(names) == 0 {
		stores := s.registry.List()
		if len(stores) == 0 {
			return nil, domain.NewValidationError("stores", "no stores configured")
		}
		return stores, nil
	}
	return s.registry.Lookup(names)
}

// fetchPrices queries the price provider for every item concurrently.
// A failed lookup leaves the item with whatever partial data came back.
func (s *CartService) fetchPrices(ctx context.Context, city string, items []domain.Item, stores []domain.Store) ([]domain.Observation, error) {
	if s.prices == nil {
		return nil, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	names := storeNames(stores)
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	perItem := make([][]domain.Observation, len(items))
	g, gctx := errgroup.WithContext(fetchCtx)
	g.SetLimit(s.config.FetchConcurrency)
	for i, item := range items {
		g.Go(func() error {
			obs, err := s.prices.FetchPrices(gctx, domain.PriceQuery{Item: item, City: city, Stores: names})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				zap.L().Warn("price lookup failed",
					zap.String("item", string(item)),
					zap.String("provider", s.prices.Name()),
					zap.Error(err))
			}

			kept := make([]domain.Observation, 0, len(obs))
			for _, o := range obs {
				if !known[o.Store] {
					continue
				}
				o.Item = item
				kept = append(kept, o)
			}
			perItem[i] = kept
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var observations []domain.Observation
	for _, obs := range perItem {
		observations = append(observations, obs...)
	}
	return observations, nil
}

func (s *CartService) optimize(m *pricematrix.Matrix, stores []domain.Store, strategy domain.Strategy, compare bool) (*domain.AllocationPlan, *domain.Comparison, error) {
	if !compare {
		plan, err := s.optimizer.Optimize(m, stores, strategy)
		return plan, nil, err
	}

	comparison, err := s.optimizer.Compare(m, stores)
	if err != nil {
		return nil, nil, err
	}
	if strategy == domain.StrategyExact {
		return comparison.Exact, comparison, nil
	}
	return comparison.Greedy, comparison, nil
}

// summarize asks the summarizer for advice and falls back to the template summary
func (s *CartService) summarize(ctx context.Context, city string, plan *domain.AllocationPlan) string {
	if s.summarizer != nil {
		text, err := s.summarizer.Summarize(ctx, city, plan)
		if err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Warn("summary failed, using template", zap.Error(err))
		}
	}
	return summary.Describe(plan)
}

// sourcesByItem reports which price tiers supplied each item, e.g. "cache,live"
func sourcesByItem(items []domain.Item, observations []domain.Observation) map[domain.Item]string {
	bySource := make(map[domain.Item]map[string]bool, len(items))
	for _, o := range observations {
		if o.Source == "" {
			continue
		}
		if bySource[o.Item] == nil {
			bySource[o.Item] = make(map[string]bool)
		}
		bySource[o.Item][o.Source] = true
	}

	out := make(map[domain.Item]string, len(items))
	for _, item := range items {
		var sources []string
		for src := range bySource[item] {
			sources = append(sources, src)
		}
		if len(sources) == 0 {
			out[item] = "none"
			continue
		}
		sort.Strings(sources)
		out[item] = strings.Join(sources, ",")
	}
	return out
}

func storeNames(stores []domain.Store) []string {
	names := make([]string, len(stores))
	for i, st := range stores {
		names[i] = st.Name
	}
	return names
}
