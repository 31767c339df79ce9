package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"goflare.io/storefront/models"
)

// Total is Σ count × unit price over the ledger; zero when empty.
func Total(ledger models.CartLedger) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range ledger {
		total = total.Add(LineTotal(entry))
	}
	return total
}

func LineTotal(entry models.CartEntry) decimal.Decimal {
	return entry.UnitPrice.Mul(decimal.NewFromInt(entry.Count))
}

// ItemCount is the number of units in the cart, used by the cart badge.
func ItemCount(ledger models.CartLedger) int64 {
	var count int64
	for _, entry := range ledger {
		count += entry.Count
	}
	return count
}

// TotalWatcher keeps the grand total in step with the cache.
type TotalWatcher struct {
	mu          sync.RWMutex
	total       decimal.Decimal
	count       int64
	unsubscribe func()
}

func NewTotalWatcher(cache *Cache, initial models.CartLedger) *TotalWatcher {
	w := &TotalWatcher{}
	w.update(initial)
	w.unsubscribe = cache.Subscribe(w.update)
	return w
}

func (w *TotalWatcher) update(ledger models.CartLedger) {
	total, count := Total(ledger), ItemCount(ledger)

	w.mu.Lock()
	w.total = total
	w.count = count
	w.mu.Unlock()
}

func (w *TotalWatcher) Total() decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.total
}

func (w *TotalWatcher) ItemCount() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

func (w *TotalWatcher) Close() {
	w.unsubscribe()
}
