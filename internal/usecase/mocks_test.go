package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// MockPriceCache is a mock implementation of domain.PriceCache
type MockPriceCache struct {
	mu       sync.Mutex
	data     map[string]domain.Observation
	getError error
	setError error
	setKeys  []string
}

func NewMockPriceCache() *MockPriceCache {
	return &MockPriceCache{data: make(map[string]domain.Observation)}
}

func (m *MockPriceCache) Get(ctx context.Context, key string) (domain.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return domain.Observation{}, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return domain.Observation{}, domain.ErrCacheMiss
}

func (m *MockPriceCache) Set(ctx context.Context, key string, value domain.Observation, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	m.setKeys = append(m.setKeys, key)
	return nil
}

func (m *MockPriceCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockPriceProvider is a mock implementation of domain.PriceProvider and domain.PriceSink
type MockPriceProvider struct {
	mu      sync.Mutex
	name    string
	data    map[domain.Item][]domain.Observation
	errs    map[domain.Item]error
	err     error
	queries []domain.PriceQuery
	stored  []domain.Observation
	onFetch func()
}

func NewMockPriceProvider(name string) *MockPriceProvider {
	return &MockPriceProvider{
		name: name,
		data: make(map[domain.Item][]domain.Observation),
		errs: make(map[domain.Item]error),
	}
}

func (m *MockPriceProvider) add(item domain.Item, store string, price domain.Money, available bool) *MockPriceProvider {
	if !available {
		price = domain.PriceUnavailable
	}
	m.data[item] = append(m.data[item], domain.Observation{
		Item:      item,
		Store:     store,
		Price:     price,
		Available: available,
		Source:    m.name,
	})
	return m
}

func (m *MockPriceProvider) Name() string {
	return m.name
}

func (m *MockPriceProvider) FetchPrices(ctx context.Context, query domain.PriceQuery) ([]domain.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.onFetch != nil {
		m.onFetch()
	}
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.errs[query.Item]; ok {
		return nil, err
	}

	var out []domain.Observation
	for _, obs := range m.data[query.Item] {
		for _, s := range query.Stores {
			if s == obs.Store {
				out = append(out, obs)
			}
		}
	}
	return out, nil
}

func (m *MockPriceProvider) StorePrices(ctx context.Context, query domain.PriceQuery, observations []domain.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, observations...)
	return nil
}

func (m *MockPriceProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// stallingProvider blocks until the context is done, like a live search that never answers
type stallingProvider struct{}

func (stallingProvider) Name() string { return "live" }

func (stallingProvider) FetchPrices(ctx context.Context, _ domain.PriceQuery) ([]domain.Observation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// MockSearchClient is a mock implementation of domain.StoreSearchClient
type MockSearchClient struct {
	mu       sync.Mutex
	products map[string]map[string][]domain.Listing // store -> query -> listings
	errs     map[string]error
	queries  []string
}

func NewMockSearchClient() *MockSearchClient {
	return &MockSearchClient{
		products: make(map[string]map[string][]domain.Listing),
		errs:     make(map[string]error),
	}
}

func (m *MockSearchClient) add(store, query string, listings ...domain.Listing) *MockSearchClient {
	if m.products[store] == nil {
		m.products[store] = make(map[string][]domain.Listing)
	}
	m.products[store][query] = append(m.products[store][query], listings...)
	return m
}

func (m *MockSearchClient) SearchProducts(ctx context.Context, store, city, query string) (*domain.SearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, store+":"+query)
	if err, ok := m.errs[store]; ok {
		return nil, err
	}
	byQuery, ok := m.products[store]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoEndpoint, store)
	}
	return &domain.SearchResponse{Store: store, Query: query, Products: byQuery[query]}, nil
}

// MockSummarizer is a mock implementation of domain.Summarizer
type MockSummarizer struct {
	text string
	err  error
}

func (m *MockSummarizer) Summarize(ctx context.Context, city string, plan *domain.AllocationPlan) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// MockRunRepository is a mock implementation of domain.RunRepository
type MockRunRepository struct {
	mu      sync.Mutex
	runs    map[string]*domain.Run
	order   []string
	saveErr error
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{runs: make(map[string]*domain.Run)}
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(m.order)+1)
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return nil
}

func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (m *MockRunRepository) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Run{}
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.runs[m.order[i]])
	}
	return out, nil
}
