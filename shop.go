package storefront

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/models"
	"goflare.io/storefront/pricing"
	"goflare.io/storefront/wishlist"
)

// Service is the surface screens call. Unit prices for cart writes are always
// resolved from the current catalog at the time of the tap.
type Service interface {
	ReadLedger(ctx context.Context) (models.CartLedger, error)
	Subscribe(fn cart.Listener) (unsubscribe func())
	Total(ctx context.Context) (decimal.Decimal, error)
	// ReadLedgerVersion also returns the cache version the ledger belongs to.
	ReadLedgerVersion(ctx context.Context) (models.CartLedger, uint64, error)

	Increment(ctx context.Context, id models.ProductID) (models.CartLedger, error)
	Decrement(ctx context.Context, id models.ProductID) (models.CartLedger, error)
	SetQuantity(ctx context.Context, id models.ProductID, count int64) (models.CartLedger, error)
	RemoveItem(ctx context.Context, id models.ProductID) (models.CartLedger, error)
	ClearCart(ctx context.Context) error

	CartView(ctx context.Context) (*models.CartView, error)
	ProductCard(ctx context.Context, id models.ProductID) (*models.ProductCard, error)
	ToggleWishlist(ctx context.Context, id models.ProductID) (bool, error)
	CanCheckout(ctx context.Context, now time.Time) (bool, error)
}

// WorkingHours is the daily [Open, Close) window in which checkout is allowed.
// Close before Open wraps past midnight; equal values mean always open.
type WorkingHours struct {
	Open  int
	Close int
}

func (h WorkingHours) IsOpen(now time.Time) bool {
	hour := now.Hour()
	switch {
	case h.Open == h.Close:
		return true
	case h.Open < h.Close:
		return hour >= h.Open && hour < h.Close
	default:
		return hour >= h.Open || hour < h.Close
	}
}

type service struct {
	cart     cart.Service
	cache    *cart.Cache
	catalog  catalog.Lookup
	wishlist wishlist.Checker
	hours    WorkingHours

	logger *zap.Logger
}

func NewService(
	cartService cart.Service, cache *cart.Cache, lookup catalog.Lookup, favourites wishlist.Checker,
	hours WorkingHours,
	logger *zap.Logger) Service {
	return &service{
		cart:     cartService,
		cache:    cache,
		catalog:  lookup,
		wishlist: favourites,
		hours:    hours,
		logger:   logger,
	}
}

func (s *service) ReadLedger(ctx context.Context) (models.CartLedger, error) {
	return s.cart.Read(ctx)
}

func (s *service) Subscribe(fn cart.Listener) func() {
	return s.cart.Subscribe(fn)
}

func (s *service) ReadLedgerVersion(ctx context.Context) (models.CartLedger, uint64, error) {
	return s.cache.ReadVersion(ctx)
}

func (s *service) Total(ctx context.Context) (decimal.Decimal, error) {
	ledger, err := s.cart.Read(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.Total(ledger), nil
}

func (s *service) Increment(ctx context.Context, id models.ProductID) (models.CartLedger, error) {
	price, err := s.currentUnitPrice(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.cart.Increment(ctx, id, price)
}

// Decrement falls back to the snapshot price when the product has left the
// catalog so it can still be taken out of the cart.
func (s *service) Decrement(ctx context.Context, id models.ProductID) (models.CartLedger, error) {
	price, err := s.currentUnitPrice(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		ledger, readErr := s.cart.Read(ctx)
		if readErr != nil {
			return nil, readErr
		}
		price, err = ledger[id].UnitPrice, nil
	}
	if err != nil {
		return nil, err
	}
	return s.cart.Decrement(ctx, id, price)
}

func (s *service) SetQuantity(ctx context.Context, id models.ProductID, count int64) (models.CartLedger, error) {
	if count <= 0 {
		return s.cart.Remove(ctx, id)
	}
	price, err := s.currentUnitPrice(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.cart.SetQuantity(ctx, id, count, price)
}

func (s *service) RemoveItem(ctx context.Context, id models.ProductID) (models.CartLedger, error) {
	return s.cart.Remove(ctx, id)
}

func (s *service) ClearCart(ctx context.Context) error {
	return s.cart.Clear(ctx)
}

// CartView joins the ledger with the catalog. Products the catalog no longer
// knows are left out of the items but still count towards the total.
func (s *service) CartView(ctx context.Context) (*models.CartView, error) {
	// 1. 讀取購物車與其版本
	ledger, version, err := s.cache.ReadVersion(ctx)
	if err != nil {
		return nil, err
	}

	view := &models.CartView{
		Items:     make([]models.LineItem, 0, ledger.Len()),
		Total:     cart.Total(ledger),
		ItemCount: cart.ItemCount(ledger),
		Version:   version,
	}

	// 2. 依商品編號組合每一行
	for _, id := range ledger.IDs() {
		entry := ledger[id]

		catalogProduct, err := s.catalog.GetProduct(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			s.logger.Warn("Cart product missing from catalog", zap.Int64("product_id", int64(id)))
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get product %d", id)
		}

		view.Items = append(view.Items, models.LineItem{
			Product:    pricing.ToProduct(*catalogProduct, nil),
			Count:      entry.Count,
			UnitPrice:  entry.UnitPrice,
			LineTotal:  cart.LineTotal(entry),
			InWishlist: s.inWishlist(ctx, id),
		})
	}

	return view, nil
}

func (s *service) ProductCard(ctx context.Context, id models.ProductID) (*models.ProductCard, error) {
	catalogProduct, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	ledger, err := s.cart.Read(ctx)
	if err != nil {
		return nil, err
	}

	return &models.ProductCard{
		Product:    pricing.ToProduct(*catalogProduct, nil),
		Count:      ledger.Count(id),
		InWishlist: s.inWishlist(ctx, id),
	}, nil
}

// ToggleWishlist flips membership and returns the new state. It needs a
// wishlist that supports writes.
func (s *service) ToggleWishlist(ctx context.Context, id models.ProductID) (bool, error) {
	toggler, ok := s.wishlist.(wishlist.Toggler)
	if !ok {
		return false, errors.New("wishlist is read-only")
	}

	in, err := toggler.IsInWishlist(ctx, id)
	if err != nil {
		return false, err
	}
	if in {
		return false, toggler.Remove(ctx, id)
	}
	return true, toggler.Add(ctx, id)
}

// CanCheckout allows entering checkout with a non-empty cart during working hours.
func (s *service) CanCheckout(ctx context.Context, now time.Time) (bool, error) {
	ledger, err := s.cart.Read(ctx)
	if err != nil {
		return false, err
	}
	return ledger.Len() > 0 && s.hours.IsOpen(now), nil
}

func (s *service) currentUnitPrice(ctx context.Context, id models.ProductID) (decimal.Decimal, error) {
	catalogProduct, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return pricing.UnitPrice(pricing.Resolve(*catalogProduct, nil)), nil
}

// inWishlist never fails the render: an unreachable wishlist shows as not favourite.
func (s *service) inWishlist(ctx context.Context, id models.ProductID) bool {
	if s.wishlist == nil {
		return false
	}
	in, err := s.wishlist.IsInWishlist(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to check wishlist", zap.Int64("product_id", int64(id)), zap.Error(err))
		return false
	}
	return in
}
