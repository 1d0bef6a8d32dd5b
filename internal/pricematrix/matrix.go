// Package pricematrix normalizes raw per-store price observations into a dense
// item × store decision matrix.
package pricematrix

import (
	"sort"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// Cell is one item × store entry. Unavailable cells carry domain.PriceUnavailable.
type Cell struct {
	Price       domain.Money `json:"price"`
	Available   bool         `json:"available"`
	DisplayName string       `json:"display_name,omitempty"`
}

var unavailable = Cell{Price: domain.PriceUnavailable}

// Matrix is a complete item × store price/availability table. It is read-only after Build.
type Matrix struct {
	items  []domain.Item
	stores []domain.Store
	index  map[string]int
	cells  map[domain.Item]map[string]Cell
}

// Build populates every item × store cell from observations. Missing data becomes an
// unavailable cell. Duplicate observations for one cell keep the lowest available price;
// an unavailable observation never overrides an available one.
func Build(observations []domain.Observation, items []domain.Item, stores []domain.Store) (*Matrix, error) {
	m := &Matrix{
		index: make(map[string]int, len(stores)),
		cells: make(map[domain.Item]map[string]Cell, len(items)),
	}

	if err := m.setStores(stores); err != nil {
		return nil, err
	}
	if err := m.setItems(items); err != nil {
		return nil, err
	}

	for i, obs := range observations {
		item := domain.NormalizeItem(string(obs.Item))
		row, ok := m.cells[item]
		if !ok {
			return nil, domain.NewValidationError("observations", "observation %d references unknown item %q", i, obs.Item)
		}
		if _, ok := m.index[obs.Store]; !ok {
			return nil, domain.NewValidationError("observations", "observation %d references unknown store %q", i, obs.Store)
		}
		if obs.Price < 0 {
			return nil, domain.NewValidationError("observations", "observation %d has negative price %d", i, obs.Price)
		}
		if !obs.Available || obs.Price == domain.PriceUnavailable {
			continue
		}
		if obs.Price > domain.MaxAmount {
			return nil, domain.NewValidationError("observations", "observation %d price exceeds the maximum of %s", i, domain.MaxAmount)
		}

		current := row[obs.Store]
		if !current.Available || obs.Price < current.Price {
			row[obs.Store] = Cell{Price: obs.Price, Available: true, DisplayName: obs.DisplayName}
		}
	}

	return m, nil
}

func (m *Matrix) setStores(stores []domain.Store) error {
	if len(stores) == 0 {
		return domain.NewValidationError("stores", "must not be empty")
	}
	for _, s := range stores {
		if s.Name == "" {
			return domain.NewValidationError("stores", "store name must not be empty")
		}
		if s.DeliveryFee < 0 {
			return domain.NewValidationError("stores", "store %q has negative delivery fee", s.Name)
		}
		if s.DeliveryFee > domain.MaxAmount {
			return domain.NewValidationError("stores", "store %q delivery fee exceeds the maximum of %s", s.Name, domain.MaxAmount)
		}
		if i, dup := m.index[s.Name]; dup {
			if m.stores[i].DeliveryFee != s.DeliveryFee {
				return domain.NewValidationError("stores", "store %q listed with conflicting delivery fees", s.Name)
			}
			continue
		}
		m.index[s.Name] = len(m.stores)
		m.stores = append(m.stores, s)
	}

	sort.Slice(m.stores, func(i, j int) bool { return m.stores[i].Name < m.stores[j].Name })
	for i, s := range m.stores {
		m.index[s.Name] = i
	}
	return nil
}

func (m *Matrix) setItems(items []domain.Item) error {
	if len(items) == 0 {
		return domain.NewValidationError("items", "must not be empty")
	}
	for _, raw := range items {
		item := domain.NormalizeItem(string(raw))
		if item == "" {
			return domain.NewValidationError("items", "item name must not be blank")
		}
		if _, dup := m.cells[item]; dup {
			continue
		}
		row := make(map[string]Cell, len(m.stores))
		for _, s := range m.stores {
			row[s.Name] = unavailable
		}
		m.cells[item] = row
		m.items = append(m.items, item)
	}
	sort.Slice(m.items, func(i, j int) bool { return m.items[i] < m.items[j] })
	return nil
}

// Items returns the matrix rows in sorted order.
func (m *Matrix) Items() []domain.Item {
	return append([]domain.Item(nil), m.items...)
}

// Stores returns the matrix columns sorted by name.
func (m *Matrix) Stores() []domain.Store {
	return append([]domain.Store(nil), m.stores...)
}

// Store looks up a column by name.
func (m *Matrix) Store(name string) (domain.Store, bool) {
	i, ok := m.index[name]
	if !ok {
		return domain.Store{}, false
	}
	return m.stores[i], true
}

// Cell returns the entry for item at store. ok is false when either key is outside the matrix.
func (m *Matrix) Cell(item domain.Item, store string) (Cell, bool) {
	row, ok := m.cells[item]
	if !ok {
		return Cell{}, false
	}
	c, ok := row[store]
	return c, ok
}

// AvailableStores returns the stores where item is in stock, sorted by name.
func (m *Matrix) AvailableStores(item domain.Item) []string {
	var out []string
	for _, s := range m.stores {
		if c := m.cells[item][s.Name]; c.Available {
			out = append(out, s.Name)
		}
	}
	return out
}

// Rows exports the matrix as item → store → cell, for display and persistence.
func (m *Matrix) Rows() map[domain.Item]map[string]Cell {
	out := make(map[domain.Item]map[string]Cell, len(m.cells))
	for item, row := range m.cells {
		cp := make(map[string]Cell, len(row))
		for s, c := range row {
			cp[s] = c
		}
		out[item] = cp
	}
	return out
}
