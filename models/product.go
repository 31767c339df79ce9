package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogProduct 是商品目錄回傳的資料，價格以最小貨幣單位表示
type CatalogProduct struct {
	ID               ProductID `json:"id"`
	Name             string    `json:"name"`
	Weight           int       `json:"weight"`
	DescriptionShort string    `json:"description_short"`
	MainImage        *string   `json:"main_image,omitempty"`
	BasePrice        int64     `json:"base_price"`
	DiscountedPrice  *int64    `json:"discounted_price,omitempty"`
}

// Selection is a variant selection. Pricing ignores it for now.
type Selection struct {
	VariantID *int64            `json:"variant_id,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

type PriceResolution struct {
	OldPrice *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice *decimal.Decimal `json:"new_price,omitempty"`
}

// Product 代表畫面上顯示的商品
type Product struct {
	ID               ProductID        `json:"id"`
	Name             string           `json:"name"`
	Weight           int              `json:"weight"`
	DescriptionShort string           `json:"description_short"`
	MainImage        *string          `json:"main_image,omitempty"`
	OldPrice         *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice         *decimal.Decimal `json:"new_price,omitempty"`
}

// Discounted reports whether the struck-through old price should be shown.
func (p Product) Discounted() bool {
	if p.NewPrice == nil || p.OldPrice == nil {
		return false
	}
	return p.NewPrice.LessThan(*p.OldPrice)
}

func (p Product) EffectivePrice() decimal.Decimal {
	switch {
	case p.NewPrice != nil:
		return *p.NewPrice
	case p.OldPrice != nil:
		return *p.OldPrice
	default:
		return decimal.Zero
	}
}

func (p Product) Preview() string {
	return DescriptionPreview(p.DescriptionShort)
}

// DescriptionPreview keeps the first three comma separated words of a description.
func DescriptionPreview(description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}
	words := strings.Split(description, ",")
	for i := range words {
		words[i] = strings.TrimSpace(words[i])
	}
	if len(words) > 3 {
		return strings.Join(words[:3], ", ") + "..."
	}
	return strings.Join(words, ", ")
}

// ProductCard 是商品卡片需要的資料
type ProductCard struct {
	Product    Product `json:"product"`
	Count      int64   `json:"count"`
	InWishlist bool    `json:"in_wishlist"`
}
