package pool

import "github.com/mora-interactive/prizevault-backend/pkg/db/models"

// TotalWeight sums the draw weights of the provided entries. A zero total
// means the pool is undrawable: every entry is display-only or the pool is
// empty, and any sampled win must degrade to a loss.
func TotalWeight(entries []models.PrizeEntry) int64 {
	var total int64
	for _, entry := range entries {
		if entry.Weight > 0 {
			total += int64(entry.Weight)
		}
	}
	return total
}

// PickWeighted walks the cumulative-weight prefix sums and returns the first
// entry whose cumulative sum exceeds roll. roll must be in [0, TotalWeight).
// Weight-zero entries never match. Pools are small (tens of entries), so the
// linear walk is fine.
func PickWeighted(entries []models.PrizeEntry, roll int64) *models.PrizeEntry {
	var cumulative int64
	for i := range entries {
		if entries[i].Weight <= 0 {
			continue
		}
		cumulative += int64(entries[i].Weight)
		if roll < cumulative {
			return &entries[i]
		}
	}
	return nil
}

// Affordable filters the drawable entries down to those whose value fits the
// remaining budget.
func Affordable(entries []models.PrizeEntry, budgetCents int64) []models.PrizeEntry {
	var out []models.PrizeEntry
	for _, entry := range entries {
		if entry.Weight > 0 && entry.ItemValueCents <= budgetCents {
			out = append(out, entry)
		}
	}
	return out
}
