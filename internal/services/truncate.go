// Package services – deterministic text truncation and store ranking.
package services

import (
	"sort"

	"github.com/tbourn/go-commerce-edge/internal/catalog"
)

// ellipsis is the suffix appended to truncated text. Three ASCII dots keep
// the result byte-stable across client platforms.
const ellipsis = "..."

// Truncate hard-truncates s to exactly budget runes including the ellipsis
// suffix when s exceeds the budget; shorter strings pass through unchanged.
// Truncation is rune-based so multi-byte text never splits mid-character,
// and deterministic: the same input always yields the same output.
func Truncate(s string, budget int) string {
	if budget <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	if budget <= len(ellipsis) {
		return string(runes[:budget])
	}
	return string(runes[:budget-len(ellipsis)]) + ellipsis
}

// rankStores orders stores by rating descending, then review count
// descending, with id as the stable tie-break.
func rankStores(stores []catalog.StoreRecord) {
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].Rating != stores[j].Rating {
			return stores[i].Rating > stores[j].Rating
		}
		if stores[i].ReviewCount != stores[j].ReviewCount {
			return stores[i].ReviewCount > stores[j].ReviewCount
		}
		return stores[i].ID < stores[j].ID
	})
}
