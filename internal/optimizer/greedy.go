package optimizer

import "sort"

// greedy starts from the per-item cheapest assignment and then tries to close
// stores whose delivery fee costs more than moving their items elsewhere.
type greedy struct{}

func (greedy) solve(p *problem) ([]int, error) {
	all := make([]bool, len(p.stores))
	for j := range all {
		all[j] = true
	}
	assign := p.assignWithin(all)

	for {
		counts := p.counts(assign)
		var open []int
		for j, n := range counts {
			if n > 0 {
				open = append(open, j)
			}
		}
		if len(open) <= 1 {
			return assign, nil
		}

		sort.SliceStable(open, func(a, b int) bool {
			if counts[open[a]] != counts[open[b]] {
				return counts[open[a]] < counts[open[b]]
			}
			return open[a] < open[b]
		})

		current := p.total(assign)
		improved := false
		for _, victim := range open {
			next, ok := p.collapse(assign, counts, victim)
			if ok && p.total(next) < current {
				assign, improved = next, true
				break
			}
		}
		if !improved {
			return assign, nil
		}
	}
}

// collapse moves every item assigned to victim into the cheapest other open store
// that has it. It reports false when some item has nowhere else to go.
func (p *problem) collapse(assign []int, counts []int, victim int) ([]int, bool) {
	next := make([]int, len(assign))
	copy(next, assign)
	load := make([]int, len(counts))
	copy(load, counts)
	load[victim] = 0

	for i, j := range assign {
		if j != victim {
			continue
		}
		target := -1
		for k := range p.stores {
			if k == victim || counts[k] == 0 || !p.avail[i][k] {
				continue
			}
			switch {
			case target < 0, p.price[i][k] < p.price[i][target]:
				target = k
			case p.price[i][k] == p.price[i][target] && load[k] > load[target]:
				target = k
			}
		}
		if target < 0 {
			return nil, false
		}
		next[i] = target
		load[target]++
	}
	return next, true
}
