// Package optimizer partitions a shopping list across delivery stores to minimize
// item prices plus per-store delivery fees.
//
// Two interchangeable strategies share one contract: a greedy local search
// (fast, not guaranteed optimal) and an exact power-set search. Both are
// synchronous and allocation-local, so concurrent calls need no locking.
//
// Ties between equally priced stores are always broken the same way: prefer the
// store already holding the most other assigned items, then the lexicographically
// smallest store name.
package optimizer

import (
	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/pricematrix"
)

// DefaultMaxExactStores bounds the exact search at 2^20 subsets
const DefaultMaxExactStores = 20

// Config holds configuration for the optimizer
type Config struct {
	MaxExactStores int
}

// Optimizer runs the strategy its caller names. It holds no per-call state.
type Optimizer struct {
	maxExactStores int
}

// New creates an optimizer with the given configuration
func New(config Config) *Optimizer {
	maxStores := config.MaxExactStores
	if maxStores <= 0 {
		maxStores = DefaultMaxExactStores
	}
	return &Optimizer{maxExactStores: maxStores}
}

// solver assigns every item to a store index, or -1 when no candidate store has it.
type solver interface {
	solve(p *problem) ([]int, error)
}

// Optimize builds an allocation plan for the candidate stores using the named strategy.
func (o *Optimizer) Optimize(m *pricematrix.Matrix, stores []domain.Store, strategy domain.Strategy) (*domain.AllocationPlan, error) {
	var (
		s       solver
		optimal bool
	)
	switch strategy {
	case domain.StrategyGreedy:
		s = greedy{}
	case domain.StrategyExact:
		s, optimal = exact{maxStores: o.maxExactStores}, true
	default:
		return nil, &domain.ValidationError{Field: "strategy", Reason: "must be greedy or exact, got " + string(strategy), Err: domain.ErrUnknownStrategy}
	}

	p, err := newProblem(m, stores)
	if err != nil {
		return nil, err
	}

	assign, err := s.solve(p)
	if err != nil {
		return nil, err
	}
	return p.plan(assign, strategy, optimal), nil
}

// Compare runs both strategies on the same input and reports what exact search saves.
func (o *Optimizer) Compare(m *pricematrix.Matrix, stores []domain.Store) (*domain.Comparison, error) {
	g, err := o.Optimize(m, stores, domain.StrategyGreedy)
	if err != nil {
		return nil, err
	}
	e, err := o.Optimize(m, stores, domain.StrategyExact)
	if err != nil {
		return nil, err
	}
	return &domain.Comparison{Greedy: g, Exact: e, Savings: g.GrandTotal - e.GrandTotal}, nil
}

// Optimize runs strategy with the default configuration.
func Optimize(m *pricematrix.Matrix, stores []domain.Store, strategy domain.Strategy) (*domain.AllocationPlan, error) {
	return New(Config{}).Optimize(m, stores, strategy)
}

// problem is the dense, index-based view of one optimization call.
// Stores are sorted by name, so a lower index is a lexicographically smaller name.
type problem struct {
	items  []domain.Item
	stores []domain.Store
	price  [][]domain.Money
	avail  [][]bool
	label  [][]string
}

func newProblem(m *pricematrix.Matrix, stores []domain.Store) (*problem, error) {
	if m == nil {
		return nil, domain.NewValidationError("matrix", "must not be nil")
	}
	if len(stores) == 0 {
		return nil, domain.NewValidationError("stores", "must not be empty")
	}

	fees := make(map[string]domain.Money, len(stores))
	for _, s := range stores {
		if _, ok := m.Store(s.Name); !ok {
			return nil, domain.NewValidationError("stores", "store %q is not in the price matrix", s.Name)
		}
		if s.DeliveryFee < 0 || s.DeliveryFee > domain.MaxAmount {
			return nil, domain.NewValidationError("stores", "store %q delivery fee %d is outside [0, %d]", s.Name, s.DeliveryFee, domain.MaxAmount)
		}
		if fee, dup := fees[s.Name]; dup && fee != s.DeliveryFee {
			return nil, domain.NewValidationError("stores", "store %q listed with conflicting delivery fees", s.Name)
		}
		fees[s.Name] = s.DeliveryFee
	}

	p := &problem{items: m.Items()}
	for _, s := range m.Stores() {
		if fee, ok := fees[s.Name]; ok {
			p.stores = append(p.stores, domain.Store{Name: s.Name, DeliveryFee: fee})
		}
	}

	p.price = make([][]domain.Money, len(p.items))
	p.avail = make([][]bool, len(p.items))
	p.label = make([][]string, len(p.items))
	for i, item := range p.items {
		p.price[i] = make([]domain.Money, len(p.stores))
		p.avail[i] = make([]bool, len(p.stores))
		p.label[i] = make([]string, len(p.stores))
		for j, s := range p.stores {
			c, _ := m.Cell(item, s.Name)
			p.price[i][j] = c.Price
			p.avail[i][j] = c.Available
			p.label[i][j] = c.DisplayName
		}
	}
	return p, nil
}

// assignWithin assigns each item to its cheapest available open store. Items with
// a unique cheapest store are placed first; ties are then resolved in item order.
func (p *problem) assignWithin(open []bool) []int {
	assign := make([]int, len(p.items))
	counts := make([]int, len(p.stores))
	tied := make(map[int][]int)

	for i := range p.items {
		assign[i] = -1
		best := domain.PriceUnavailable
		var candidates []int
		for j := range p.stores {
			if !open[j] || !p.avail[i][j] {
				continue
			}
			switch {
			case p.price[i][j] < best:
				best = p.price[i][j]
				candidates = append(candidates[:0], j)
			case p.price[i][j] == best:
				candidates = append(candidates, j)
			}
		}
		switch len(candidates) {
		case 0:
		case 1:
			assign[i] = candidates[0]
			counts[candidates[0]]++
		default:
			tied[i] = candidates
		}
	}

	for i := range p.items {
		if candidates, ok := tied[i]; ok {
			j := breakTie(candidates, counts)
			assign[i] = j
			counts[j]++
		}
	}
	return assign
}

// breakTie prefers the candidate holding the most assigned items, then the lowest index.
// candidates must be in ascending index order.
func breakTie(candidates []int, counts []int) int {
	best := candidates[0]
	for _, j := range candidates[1:] {
		if counts[j] > counts[best] {
			best = j
		}
	}
	return best
}

func (p *problem) counts(assign []int) []int {
	counts := make([]int, len(p.stores))
	for _, j := range assign {
		if j >= 0 {
			counts[j]++
		}
	}
	return counts
}

// total is the sum of assigned prices plus one delivery fee per used store.
func (p *problem) total(assign []int) domain.Money {
	var sum domain.Money
	for i, j := range assign {
		if j >= 0 {
			sum += p.price[i][j]
		}
	}
	for j, n := range p.counts(assign) {
		if n > 0 {
			sum += p.stores[j].DeliveryFee
		}
	}
	return sum
}

func (p *problem) plan(assign []int, strategy domain.Strategy, optimal bool) *domain.AllocationPlan {
	plan := &domain.AllocationPlan{
		Strategy:            strategy,
		Assignments:         []domain.Assignment{},
		UnavailableItems:    []domain.UnavailableItem{},
		PerStoreSubtotal:    make(map[string]domain.Money, len(p.stores)),
		DeliveryFeesCharged: make(map[string]domain.Money, len(p.stores)),
		Optimal:             optimal,
	}
	for _, s := range p.stores {
		plan.PerStoreSubtotal[s.Name] = 0
		plan.DeliveryFeesCharged[s.Name] = 0
	}

	for i, j := range assign {
		item := p.items[i]
		if j < 0 {
			plan.UnavailableItems = append(plan.UnavailableItems, domain.UnavailableItem{Item: item, Reason: domain.UnavailableReason})
			continue
		}
		s := p.stores[j]
		plan.Assignments = append(plan.Assignments, domain.Assignment{
			Item:        item,
			Store:       s.Name,
			Price:       p.price[i][j],
			DisplayName: p.label[i][j],
		})
		plan.PerStoreSubtotal[s.Name] += p.price[i][j]
		plan.DeliveryFeesCharged[s.Name] = s.DeliveryFee
	}

	for _, s := range p.stores {
		plan.GrandTotal += plan.PerStoreSubtotal[s.Name] + plan.DeliveryFeesCharged[s.Name]
	}
	return plan
}
