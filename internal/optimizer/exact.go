package optimizer

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// exact enumerates every subset of candidate stores. For a fixed subset the best
// allocation is each item at its cheapest store within the subset, so the search
// only has to pick the subset.
type exact struct {
	maxStores int
}

// subsetScore orders subsets: fewer unavailable items, then lower cost, then fewer
// stores, then the lexicographically smaller name list.
type subsetScore struct {
	mask        uint64
	unavailable int
	cost        domain.Money
	size        int
}

func (e exact) solve(p *problem) ([]int, error) {
	k := len(p.stores)
	if k > e.maxStores || k >= 64 {
		return nil, fmt.Errorf("%w: %d candidate stores, limit is %d", domain.ErrSearchSpaceTooLarge, k, e.maxStores)
	}

	// per item, available stores sorted by (price, index)
	order := make([][]int, len(p.items))
	for i := range p.items {
		for j := range p.stores {
			if p.avail[i][j] {
				order[i] = append(order[i], j)
			}
		}
		row := p.price[i]
		sort.SliceStable(order[i], func(a, b int) bool {
			return row[order[i][a]] < row[order[i][b]]
		})
	}

	var best *subsetScore
	for mask := uint64(0); mask < uint64(1)<<k; mask++ {
		s := subsetScore{mask: mask, size: bits.OnesCount64(mask)}
		for j := 0; j < k; j++ {
			if mask&(1<<j) != 0 {
				s.cost += p.stores[j].DeliveryFee
			}
		}
		for i := range p.items {
			found := false
			for _, j := range order[i] {
				if mask&(1<<j) != 0 {
					s.cost += p.price[i][j]
					found = true
					break
				}
			}
			if !found {
				s.unavailable++
			}
		}
		if best == nil || s.better(*best) {
			b := s
			best = &b
		}
	}

	open := make([]bool, k)
	for j := range open {
		open[j] = best.mask&(1<<j) != 0
	}
	return p.assignWithin(open), nil
}

func (s subsetScore) better(o subsetScore) bool {
	if s.unavailable != o.unavailable {
		return s.unavailable < o.unavailable
	}
	if s.cost != o.cost {
		return s.cost < o.cost
	}
	if s.size != o.size {
		return s.size < o.size
	}
	// equal sizes: the first differing store decides, lower index is the smaller name
	diff := s.mask ^ o.mask
	if diff == 0 {
		return false
	}
	low := diff & -diff
	return s.mask&low != 0
}
