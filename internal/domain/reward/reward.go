// Package reward implements the loyalty bonus lookup applied to order
// subtotals. Bonuses are defined as threshold tiers: an order qualifies for
// the bonus of the highest tier whose minimum subtotal it reaches.
package reward

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Tier pairs a minimum order subtotal with the wallet bonus it grants.
type Tier struct {
	MinSubtotal decimal.Decimal
	Bonus       decimal.Decimal
}

// Table is an ordered set of reward tiers. Build one with NewTable so lookup
// order is deterministic regardless of configuration order.
type Table struct {
	tiers []Tier
}

// NewTable returns a Table with the given tiers sorted ascending by minimum
// subtotal. With that ordering, "last qualifying tier wins" and "highest
// qualifying threshold wins" are the same rule.
func NewTable(tiers []Tier) Table {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinSubtotal.LessThan(sorted[j].MinSubtotal)
	})
	return Table{tiers: sorted}
}

// Tiers returns a copy of the tiers in lookup order.
func (t Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// BonusFor returns the bonus of the highest tier whose minimum subtotal is
// less than or equal to the given subtotal, or zero when no tier qualifies.
func (t Table) BonusFor(subtotal decimal.Decimal) decimal.Decimal {
	bonus := decimal.Zero
	for _, tier := range t.tiers {
		if subtotal.GreaterThanOrEqual(tier.MinSubtotal) {
			bonus = tier.Bonus
		}
	}
	return bonus
}
