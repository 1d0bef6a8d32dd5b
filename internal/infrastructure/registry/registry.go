// Package registry holds the configured delivery stores and their fees.
package registry

import (
	"sort"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// Static is an immutable, config-backed domain.StoreRegistry.
type Static struct {
	stores map[string]domain.Store
}

// New validates and indexes stores. Names must be unique and fees non-negative.
func New(stores []domain.Store) (*Static, error) {
	r := &Static{stores: make(map[string]domain.Store, len(stores))}
	for _, s := range stores {
		if s.Name == "" {
			return nil, domain.NewValidationError("stores", "store name must not be empty")
		}
		if s.DeliveryFee < 0 {
			return nil, domain.NewValidationError("stores", "store %q has negative delivery fee", s.Name)
		}
		if _, dup := r.stores[s.Name]; dup {
			return nil, domain.NewValidationError("stores", "store %q is configured twice", s.Name)
		}
		r.stores[s.Name] = s
	}
	return r, nil
}

// Lookup resolves store names in order, skipping repeats. Unknown names fail with domain.ErrUnknownStore.
func (r *Static) Lookup(names []string) ([]domain.Store, error) {
	if len(names) == 0 {
		return nil, domain.NewValidationError("stores", "at least one store is required")
	}
	seen := make(map[string]bool, len(names))
	out := make([]domain.Store, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		s, ok := r.stores[name]
		if !ok {
			return nil, &domain.ValidationError{Field: "stores", Reason: "unknown store " + name, Err: domain.ErrUnknownStore}
		}
		out = append(out, s)
	}
	return out, nil
}

// List returns every configured store sorted by name.
func (r *Static) List() []domain.Store {
	out := make([]domain.Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
