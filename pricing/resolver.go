// Package pricing derives the displayed and charged unit prices of a product.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"goflare.io/storefront/models"
)

// minorUnitExponent converts catalog prices (cents) into major units.
const minorUnitExponent = -2

// Resolve returns the old and new price of product for selection. NewPrice is
// set only when the discounted price is below the base price; otherwise it is
// nil and OldPrice is the effective price.
func Resolve(product models.CatalogProduct, _ *models.Selection) models.PriceResolution {
	old := FromMinor(product.BasePrice)
	res := models.PriceResolution{OldPrice: &old}

	if product.DiscountedPrice != nil && *product.DiscountedPrice < product.BasePrice {
		discounted := FromMinor(*product.DiscountedPrice)
		res.NewPrice = &discounted
	}

	return res
}

// UnitPrice is the price written into the ledger: new price, else old price, else 0.
func UnitPrice(res models.PriceResolution) decimal.Decimal {
	switch {
	case res.NewPrice != nil:
		return *res.NewPrice
	case res.OldPrice != nil:
		return *res.OldPrice
	default:
		return decimal.Zero
	}
}

func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, minorUnitExponent)
}

// ToProduct builds the display view of a catalog product.
func ToProduct(p models.CatalogProduct, selection *models.Selection) models.Product {
	res := Resolve(p, selection)
	return models.Product{
		ID:               p.ID,
		Name:             p.Name,
		Weight:           p.Weight,
		DescriptionShort: p.DescriptionShort,
		MainImage:        p.MainImage,
		OldPrice:         res.OldPrice,
		NewPrice:         res.NewPrice,
	}
}

// Format renders an amount followed by the currency symbol, e.g. "79.53 ₴".
// Whole amounts are printed without decimals.
func Format(amount decimal.Decimal, symbol string) string {
	var s string
	if amount.IsInteger() {
		s = amount.StringFixed(0)
	} else {
		s = amount.StringFixed(2)
	}
	if symbol == "" {
		return s
	}
	return strings.Join([]string{s, symbol}, " ")
}
