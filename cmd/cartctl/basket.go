package main

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/usecase"
)

// basketFile is the YAML basket format. Amounts are in rupees; an observation
// without a price is unavailable.
type basketFile struct {
	Items  []string `yaml:"items"`
	Stores []struct {
		Name        string  `yaml:"name"`
		DeliveryFee float64 `yaml:"delivery_fee"`
	} `yaml:"stores"`
	Observations []struct {
		Item      string   `yaml:"item"`
		Store     string   `yaml:"store"`
		Price     *float64 `yaml:"price"`
		Available *bool    `yaml:"available"`
		Name      string   `yaml:"name"`
	} `yaml:"observations"`
}

// loadBasket reads a basket file into an optimizer request
func loadBasket(path string) (*usecase.ObservationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read basket %s", path)
	}
	return parseBasket(data)
}

func parseBasket(data []byte) (*usecase.ObservationRequest, error) {
	var doc basketFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse basket")
	}

	req := &usecase.ObservationRequest{Items: doc.Items}
	for _, s := range doc.Stores {
		fee, err := domain.MoneyFromFloat(s.DeliveryFee)
		if err != nil {
			return nil, domain.NewValidationError("stores", "delivery fee for %s: %v", s.Name, err)
		}
		req.Stores = append(req.Stores, domain.Store{Name: s.Name, DeliveryFee: fee})
	}

	for i, o := range doc.Observations {
		obs := domain.Observation{
			Item:        domain.Item(o.Item),
			Store:       o.Store,
			Price:       domain.PriceUnavailable,
			DisplayName: o.Name,
			Source:      domain.SourceRequest,
		}
		if o.Price != nil {
			price, err := domain.MoneyFromFloat(*o.Price)
			if err != nil {
				return nil, domain.NewValidationError("observations", "observation %d: %v", i, err)
			}
			obs.Price = price
			obs.Available = o.Available == nil || *o.Available
		}
		req.Observations = append(req.Observations, obs)
	}
	return req, nil
}
