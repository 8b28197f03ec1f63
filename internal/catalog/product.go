package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors the remote store's product resource. It is read-only
// here: the remote store owns it and the synchronizers only carry it
// for display and price math. Price fields arrive either as JSON
// numbers or as numeric strings; decimal handles both.
type Product struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Price              decimal.Decimal  `json:"price"`
	DiscountPercentage *float64         `json:"discount_percentage"`
	DiscountPrice      *decimal.Decimal `json:"discount_price"`
	SKU                string           `json:"sku"`
	QuantityInStock    int              `json:"quantity_in_stock"`
	InStock            bool             `json:"in_stock"`
	ImageURLs          []string         `json:"images_urls"`
	CreatedAt          time.Time        `json:"created_at"`
}

// EffectiveUnitPrice returns the discounted price when one is present
// and positive, otherwise the base price. A zero discount price means
// "no discount", matching how the storefront UI renders prices.
func EffectiveUnitPrice(p Product) decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}
