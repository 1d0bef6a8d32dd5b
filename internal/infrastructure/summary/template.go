// Package summary turns an allocation plan into short shopping advice.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

// Template writes a deterministic summary without any external call.
type Template struct{}

// Summarize never fails.
func (Template) Summarize(ctx context.Context, city string, plan *domain.AllocationPlan) (string, error) {
	return Describe(plan), nil
}

// Describe renders the template summary for plan.
func Describe(plan *domain.AllocationPlan) string {
	if plan == nil {
		return ""
	}
	stores := plan.StoresUsed()
	requested := len(plan.Assignments) + len(plan.UnavailableItems)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d/%d items across %d %s. Total: ₹%s.",
		len(plan.Assignments), requested, len(stores), plural(len(stores), "store", "stores"), plan.GrandTotal)

	if len(stores) > 1 {
		byStore := plan.ItemsByStore()
		primary, most := "", 0
		for _, s := range stores {
			if n := len(byStore[s]); n > most {
				primary, most = s, n
			}
		}
		fmt.Fprintf(&b, " Start at %s (%d %s), then visit the others.", primary, most, plural(most, "item", "items"))
	}

	if len(plan.UnavailableItems) > 0 {
		missing := make([]string, len(plan.UnavailableItems))
		for i, u := range plan.UnavailableItems {
			missing[i] = string(u.Item)
		}
		fmt.Fprintf(&b, " Not found: %s.", strings.Join(missing, ", "))
	} else if requested > 0 {
		b.WriteString(" All items found.")
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
