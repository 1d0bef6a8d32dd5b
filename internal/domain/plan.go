package domain

import (
	"sort"
	"strings"
	"time"
)

// Strategy selects the optimizer algorithm. It is always an explicit caller choice.
type Strategy string

const (
	StrategyGreedy Strategy = "greedy"
	StrategyExact  Strategy = "exact"
)

// UnavailableReason is reported for items no candidate store has in stock
const UnavailableReason = "no store has this item in stock"

// ParseStrategy parses a strategy name. "ilp" is accepted as an alias of exact.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StrategyGreedy):
		return StrategyGreedy, nil
	case string(StrategyExact), "ilp", "optimal":
		return StrategyExact, nil
	default:
		return "", &ValidationError{Field: "strategy", Reason: "must be greedy or exact, got " + s, Err: ErrUnknownStrategy}
	}
}

// Assignment places one item at one store
type Assignment struct {
	Item        Item   `json:"item"`
	Store       string `json:"store"`
	Price       Money  `json:"price"`
	DisplayName string `json:"display_name,omitempty"`
}

// UnavailableItem is an item no candidate store can serve
type UnavailableItem struct {
	Item   Item   `json:"item"`
	Reason string `json:"reason"`
}

// AllocationPlan is the final item to store assignment plus cost breakdown
type AllocationPlan struct {
	Strategy            Strategy          `json:"strategy"`
	Assignments         []Assignment      `json:"assignments"`
	UnavailableItems    []UnavailableItem `json:"unavailable_items"`
	PerStoreSubtotal    map[string]Money  `json:"per_store_subtotal"`
	DeliveryFeesCharged map[string]Money  `json:"delivery_fees_charged"`
	GrandTotal          Money             `json:"grand_total"`
	Optimal             bool              `json:"optimal"`
}

// StoresUsed returns the names of stores with at least one assignment, sorted.
func (p *AllocationPlan) StoresUsed() []string {
	seen := make(map[string]bool)
	var stores []string
	for _, a := range p.Assignments {
		if !seen[a.Store] {
			seen[a.Store] = true
			stores = append(stores, a.Store)
		}
	}
	sort.Strings(stores)
	return stores
}

// ItemsByStore groups assignments by store name.
func (p *AllocationPlan) ItemsByStore() map[string][]Assignment {
	out := make(map[string][]Assignment)
	for _, a := range p.Assignments {
		out[a.Store] = append(out[a.Store], a)
	}
	return out
}

// Comparison reports both strategies on the same input
type Comparison struct {
	Greedy  *AllocationPlan `json:"greedy"`
	Exact   *AllocationPlan `json:"exact"`
	Savings Money           `json:"savings"` // greedy total minus exact total, never negative
}

// Run is one persisted orchestration request and its outcome
type Run struct {
	ID         string          `json:"id"`
	Items      []Item          `json:"items"`
	City       string          `json:"city"`
	Stores     []string        `json:"stores"`
	Strategy   Strategy        `json:"strategy"`
	Plan       *AllocationPlan `json:"plan"`
	Comparison *Comparison     `json:"comparison,omitempty"`
	Sources    map[Item]string `json:"sources,omitempty"`
	Summary    string          `json:"summary"`
	CreatedAt  time.Time       `json:"created_at"`
}
