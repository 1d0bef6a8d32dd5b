package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/infrastructure/registry"
	"github.com/nits22/smart-grocery-cart/internal/optimizer"
)

func newTestRegistry(t *testing.T) *registry.Static {
	t.Helper()
	reg, err := registry.New([]domain.Store{
		{Name: "Blinkit", DeliveryFee: 2000},
		{Name: "Zepto", DeliveryFee: 2500},
	})
	require.NoError(t, err)
	return reg
}

// groceryPrices has milk and bread cheapest at Blinkit and caviar nowhere
func groceryPrices() *MockPriceProvider {
	return NewMockPriceProvider("catalog").
		add("milk", "Blinkit", 5000, true).
		add("milk", "Zepto", 5500, true).
		add("bread", "Blinkit", 3000, true).
		add("bread", "Zepto", 3500, true).
		add("caviar", "Blinkit", 0, false)
}

func TestNewCartService(t *testing.T) {
	svc := NewCartService(newTestRegistry(t), groceryPrices(), nil, nil, nil, CartServiceConfig{})

	assert.Equal(t, domain.StrategyGreedy, svc.config.DefaultStrategy)
	assert.Equal(t, defaultMaxItems, svc.config.MaxItems)
	assert.Equal(t, defaultFetchConcurrency, svc.config.FetchConcurrency)
	assert.Equal(t, defaultFetchTimeout, svc.config.FetchTimeout)
	assert.NotNil(t, svc.optimizer)
}

func TestOptimizeCart_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService(newTestRegistry(t), groceryPrices(), nil, nil, nil, CartServiceConfig{MaxItems: 2})

	testCases := []struct {
		name   string
		req    *CartRequest
		target error
	}{
		{"nil request", nil, domain.ErrValidation},
		{"no items", &CartRequest{Items: []string{" ", ""}}, domain.ErrValidation},
		{"too many items", &CartRequest{Items: []string{"milk", "bread", "eggs"}}, domain.ErrValidation},
		{"unknown strategy", &CartRequest{Items: []string{"milk"}, Strategy: "fastest"}, domain.ErrUnknownStrategy},
		{"unknown store", &CartRequest{Items: []string{"milk"}, Stores: []string{"Dunzo"}}, domain.ErrUnknownStore},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.OptimizeCart(ctx, tc.req)
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestOptimizeCart(t *testing.T) {
	ctx := context.Background()

	t.Run("optimizes, summarizes and records the run", func(t *testing.T) {
		runs := NewMockRunRepository()
		svc := NewCartService(newTestRegistry(t), groceryPrices(), nil,
			&MockSummarizer{text: "Buy everything at Blinkit."}, runs,
			CartServiceConfig{DefaultCity: "Bengaluru"})

		result, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"Milk", "bread", "caviar"}})
		require.NoError(t, err)

		assert.Equal(t, "run-1", result.RunID)
		assert.Equal(t, "Bengaluru", result.City)
		assert.Equal(t, "Buy everything at Blinkit.", result.Summary)
		assert.Equal(t, domain.Money(10000), result.Plan.GrandTotal)
		assert.Equal(t, domain.StrategyGreedy, result.Plan.Strategy)
		assert.Equal(t, []string{"Blinkit"}, result.Plan.StoresUsed())
		assert.Equal(t, domain.Money(0), result.Plan.DeliveryFeesCharged["Zepto"])
		require.Len(t, result.Plan.UnavailableItems, 1)
		assert.Equal(t, domain.Item("caviar"), result.Plan.UnavailableItems[0].Item)
		assert.Nil(t, result.Comparison)
		assert.Equal(t, "catalog", result.Sources["milk"])

		saved, err := svc.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, []domain.Item{"milk", "bread", "caviar"}, saved.Items)
		assert.Equal(t, []string{"Blinkit", "Zepto"}, saved.Stores)
	})

	t.Run("falls back to template summary", func(t *testing.T) {
		svc := NewCartService(newTestRegistry(t), groceryPrices(), nil,
			&MockSummarizer{err: domain.ErrSummaryUnavailable}, nil, CartServiceConfig{})

		result, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"milk", "bread", "caviar"}})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.Summary, "Found 2/3 items"), result.Summary)
		assert.Empty(t, result.RunID)
	})

	t.Run("run history failure does not fail the request", func(t *testing.T) {
		runs := NewMockRunRepository()
		runs.saveErr = errors.New("database is locked")
		svc := NewCartService(newTestRegistry(t), groceryPrices(), nil, nil, runs, CartServiceConfig{})

		result, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"milk"}})
		require.NoError(t, err)
		assert.Empty(t, result.RunID)
		assert.NotEmpty(t, result.Summary)
	})

	t.Run("failed price lookup leaves item unavailable", func(t *testing.T) {
		prices := groceryPrices()
		prices.errs["bread"] = domain.ErrStoreAPIFailure
		svc := NewCartService(newTestRegistry(t), prices, nil, nil, nil, CartServiceConfig{})

		result, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"milk", "bread"}})
		require.NoError(t, err)
		require.Len(t, result.Plan.UnavailableItems, 1)
		assert.Equal(t, domain.Item("bread"), result.Plan.UnavailableItems[0].Item)
		assert.Equal(t, "none", result.Sources["bread"])
	})

	t.Run("queries only the requested stores", func(t *testing.T) {
		prices := groceryPrices()
		svc := NewCartService(newTestRegistry(t), prices, nil, nil, nil, CartServiceConfig{})

		result, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"milk"}, Stores: []string{"Zepto"}, City: "Mumbai"})
		require.NoError(t, err)
		assert.Equal(t, domain.Money(8000), result.Plan.GrandTotal)
		for _, q := range prices.queries {
			assert.Equal(t, []string{"Zepto"}, q.Stores)
			assert.Equal(t, "Mumbai", q.City)
		}
	})

	t.Run("compare reports both plans", func(t *testing.T) {
		svc := NewCartService(newTestRegistry(t), groceryPrices(), nil, nil, nil, CartServiceConfig{})

		result, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"milk", "bread"}, Strategy: "exact", Compare: true})
		require.NoError(t, err)
		require.NotNil(t, result.Comparison)
		assert.Same(t, result.Comparison.Exact, result.Plan)
		assert.True(t, result.Plan.Optimal)
		assert.GreaterOrEqual(t, int64(result.Comparison.Savings), int64(0))
	})

	t.Run("exact search refuses too many stores", func(t *testing.T) {
		svc := NewCartService(newTestRegistry(t), groceryPrices(), optimizer.New(optimizer.Config{MaxExactStores: 1}), nil, nil, CartServiceConfig{})

		_, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"milk"}, Strategy: "exact"})
		assert.ErrorIs(t, err, domain.ErrSearchSpaceTooLarge)
	})

	t.Run("cancelled context aborts the lookup", func(t *testing.T) {
		prices := groceryPrices()
		prices.err = context.Canceled
		svc := NewCartService(newTestRegistry(t), prices, nil, nil, nil, CartServiceConfig{FetchTimeout: time.Second})

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.OptimizeCart(cctx, &CartRequest{Items: []string{"milk"}})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("slow live search keeps cached prices", func(t *testing.T) {
		cached := NewMockPriceProvider("memory").add("milk", "Blinkit", 5000, true)
		chain := NewPriceChain(Tier{Provider: cached}, Tier{Provider: stallingProvider{}}, Tier{Provider: groceryPrices()})
		svc := NewCartService(newTestRegistry(t), chain, nil, nil, nil, CartServiceConfig{FetchTimeout: 20 * time.Millisecond})

		result, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{"milk"}, Strategy: "exact"})
		require.NoError(t, err)
		assert.Empty(t, result.Plan.UnavailableItems)
		assert.Equal(t, domain.Money(7000), result.Plan.GrandTotal)
		assert.Equal(t, "memory", result.Sources["milk"])
	})
}

func TestOptimizeObservations(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService(newTestRegistry(t), nil, nil, nil, nil, CartServiceConfig{})

	t.Run("uses supplied stores and observations", func(t *testing.T) {
		result, err := svc.OptimizeObservations(ctx, &ObservationRequest{
			Items:  []string{"milk", "bread"},
			Stores: []domain.Store{{Name: "A", DeliveryFee: 3000}, {Name: "B", DeliveryFee: 3000}},
			Observations: []domain.Observation{
				{Item: "milk", Store: "A", Price: 4000, Available: true},
				{Item: "milk", Store: "B", Price: 3500, Available: true},
				{Item: "bread", Store: "A", Price: 2000, Available: true},
				{Item: "bread", Store: "B", Price: 2500, Available: true},
			},
			Strategy: "exact",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Money(9000), result.Plan.GrandTotal)
		assert.Equal(t, []string{"A"}, result.Plan.StoresUsed())
		assert.NotEmpty(t, result.Summary)
	})

	t.Run("falls back to registry stores", func(t *testing.T) {
		result, err := svc.OptimizeObservations(ctx, &ObservationRequest{
			Items:        []string{"milk"},
			Observations: []domain.Observation{{Item: "milk", Store: "Zepto", Price: 5000, Available: true}},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Money(7500), result.Plan.GrandTotal)
	})

	t.Run("rejects observations for unknown stores", func(t *testing.T) {
		_, err := svc.OptimizeObservations(ctx, &ObservationRequest{
			Items:        []string{"milk"},
			Stores:       []domain.Store{{Name: "A"}},
			Observations: []domain.Observation{{Item: "milk", Store: "B", Price: 5000, Available: true}},
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("without a repository", func(t *testing.T) {
		svc := NewCartService(newTestRegistry(t), nil, nil, nil, nil, CartServiceConfig{})

		_, err := svc.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)

		runs, err := svc.ListRuns(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		svc := NewCartService(newTestRegistry(t), nil, nil, nil, NewMockRunRepository(), CartServiceConfig{})
		_, err := svc.GetRun(ctx, " ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("lists newest first", func(t *testing.T) {
		repo := NewMockRunRepository()
		svc := NewCartService(newTestRegistry(t), groceryPrices(), nil, nil, repo, CartServiceConfig{})
		for _, item := range []string{"milk", "bread"} {
			_, err := svc.OptimizeCart(ctx, &CartRequest{Items: []string{item}})
			require.NoError(t, err)
		}

		runs, err := svc.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID)
	})

	t.Run("lists stores", func(t *testing.T) {
		svc := NewCartService(newTestRegistry(t), nil, nil, nil, nil, CartServiceConfig{})
		stores := svc.ListStores()
		require.Len(t, stores, 2)
		assert.Equal(t, "Blinkit", stores[0].Name)
	})
}
