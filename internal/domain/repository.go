package domain

import (
	"context"
	"time"
)

// PriceProvider is one tier of the price fallback chain (cache, live scrape, catalog).
// It may return partial data: stores it knows nothing about are simply absent.
type PriceProvider interface {
	Name() string
	FetchPrices(ctx context.Context, query PriceQuery) ([]Observation, error)
}

// PriceSink receives observations resolved by a later tier (write-through caching)
type PriceSink interface {
	StorePrices(ctx context.Context, query PriceQuery, observations []Observation) error
}

// PriceCache defines the interface for keyed observation caching
type PriceCache interface {
	Get(ctx context.Context, key string) (Observation, error)
	Set(ctx context.Context, key string, value Observation, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StoreRegistry supplies candidate stores and their delivery fees
type StoreRegistry interface {
	Lookup(names []string) ([]Store, error)
	List() []Store
}

// StoreSearchClient defines the interface for querying a delivery platform's product search
type StoreSearchClient interface {
	SearchProducts(ctx context.Context, store, city, query string) (*SearchResponse, error)
}

// Summarizer turns a read-only plan into free-text advice
type Summarizer interface {
	Summarize(ctx context.Context, city string, plan *AllocationPlan) (string, error)
}

// RunRepository persists orchestration runs
type RunRepository interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
