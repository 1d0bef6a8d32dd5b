package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// Item is a normalized product name/quantity string requested by the user, e.g. "milk 1l".
type Item string

// NormalizeItem case-folds, trims and collapses internal whitespace.
func NormalizeItem(raw string) Item {
	// a Caser is stateful and must not be shared between goroutines
	return Item(strings.Join(strings.Fields(cases.Fold().String(raw)), " "))
}

// NormalizeItems normalizes and de-duplicates raw item strings, keeping first-seen order.
// Blank entries are dropped.
func NormalizeItems(raw []string) []Item {
	seen := make(map[Item]bool, len(raw))
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		it := NormalizeItem(r)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		items = append(items, it)
	}
	return items
}

// Store is a delivery platform with a fixed per-order delivery fee.
type Store struct {
	Name        string `json:"name"`
	DeliveryFee Money  `json:"delivery_fee"`
}
