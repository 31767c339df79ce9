package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ProductID 代表商品編號
type ProductID int64

// CartEntry 代表購物車中單個商品的數量與快照單價
type CartEntry struct {
	Count     int64           `json:"count"`
	UnitPrice decimal.Decimal `json:"price"`
}

// CartLedger 代表整個購物車
type CartLedger map[ProductID]CartEntry

func NewCartLedger() CartLedger {
	return make(CartLedger)
}

// Count returns the quantity stored for id, 0 when absent.
func (l CartLedger) Count(id ProductID) int64 {
	if l == nil {
		return 0
	}
	return l[id].Count
}

func (l CartLedger) Has(id ProductID) bool {
	_, ok := l[id]
	return ok
}

func (l CartLedger) Len() int {
	return len(l)
}

// IDs returns the product ids in ascending order.
func (l CartLedger) IDs() []ProductID {
	ids := make([]ProductID, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l CartLedger) Clone() CartLedger {
	out := make(CartLedger, len(l))
	for id, entry := range l {
		out[id] = entry
	}
	return out
}

func (l CartLedger) Equal(other CartLedger) bool {
	if len(l) != len(other) {
		return false
	}
	for id, entry := range l {
		o, ok := other[id]
		if !ok || o.Count != entry.Count || !o.UnitPrice.Equal(entry.UnitPrice) {
			return false
		}
	}
	return true
}

// CartView 是購物車畫面的資料
type CartView struct {
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int64           `json:"item_count"`
	Version   uint64          `json:"version"`
}

// LineItem 代表購物車畫面上的單行商品
type LineItem struct {
	Product    Product         `json:"product"`
	Count      int64           `json:"count"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	InWishlist bool            `json:"in_wishlist"`
}
