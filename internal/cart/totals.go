package cart

import (
	"github.com/shopspring/decimal"

	"github.com/halcyonretail/storefront-sync/internal/catalog"
)

// TotalItems sums the quantities of the given lines.
func TotalItems(lines []Line) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice sums effective unit price times quantity across the given
// lines. The effective price honours an active discount; see
// catalog.EffectiveUnitPrice.
func TotalPrice(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		unit := catalog.EffectiveUnitPrice(line.Product)
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}
