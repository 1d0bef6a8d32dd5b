// Package catalog serves static fallback prices from a YAML document.
package catalog

import (
	"context"
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// entry is one store's price for one item. A missing available field means in stock.
type entry struct {
	Price     *float64 `yaml:"price"`
	Available *bool    `yaml:"available"`
	Name      string   `yaml:"name"`
}

type document struct {
	Items map[string]map[string]entry `yaml:"items"`
}

// Catalog implements domain.PriceProvider over static prices.
type Catalog struct {
	prices map[domain.Item]map[string]domain.Observation
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(eris.Wrap(err, "catalog: embedded catalog is invalid"))
	}
	return c
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. Item keys are normalized; prices are in rupees.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}

	c := &Catalog{prices: make(map[domain.Item]map[string]domain.Observation, len(doc.Items))}
	for rawItem, stores := range doc.Items {
		item := domain.NormalizeItem(rawItem)
		if item == "" {
			return nil, eris.New("catalog: blank item key")
		}
		row := c.prices[item]
		if row == nil {
			row = make(map[string]domain.Observation, len(stores))
			c.prices[item] = row
		}
		for store, e := range stores {
			obs := domain.Observation{
				Item:        item,
				Store:       store,
				Price:       domain.PriceUnavailable,
				DisplayName: e.Name,
				Source:      domain.SourceCatalog,
			}
			if e.Price != nil {
				price, err := domain.MoneyFromFloat(*e.Price)
				if err != nil {
					return nil, eris.Wrapf(err, "catalog: %s at %s", rawItem, store)
				}
				obs.Price = price
				obs.Available = e.Available == nil || *e.Available
			}
			row[store] = obs
		}
	}
	return c, nil
}

// Name identifies the provider in logs.
func (c *Catalog) Name() string {
	return domain.SourceCatalog
}

// FetchPrices returns catalog observations for the queried stores the catalog knows.
func (c *Catalog) FetchPrices(ctx context.Context, q domain.PriceQuery) ([]domain.Observation, error) {
	row, ok := c.prices[domain.NormalizeItem(string(q.Item))]
	if !ok {
		return nil, nil
	}
	var out []domain.Observation
	for _, store := range q.Stores {
		if obs, ok := row[store]; ok {
			obs.Item = q.Item
			out = append(out, obs)
		}
	}
	return out, nil
}

// Items lists the catalog's items, sorted.
func (c *Catalog) Items() []domain.Item {
	items := make([]domain.Item, 0, len(c.prices))
	for item := range c.prices {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}
