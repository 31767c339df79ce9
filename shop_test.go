package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/models"
	"goflare.io/storefront/wishlist"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc     Service
	repo    cart.Repository
	cache   *cart.Cache
	catalog *catalog.Static
	wish    *wishlist.Static
}

func newFixture(t *testing.T, hours WorkingHours) *fixture {
	t.Helper()
	logger := zap.NewNop()

	repo := cart.NewMemoryRepository(logger)
	cache := cart.NewCache(repo, logger)
	lookup := catalog.NewStatic(
		models.CatalogProduct{ID: 42, Name: "Beans", BasePrice: 10000},
		models.CatalogProduct{ID: 7, Name: "Tea", DescriptionShort: "green, loose, organic, fresh", BasePrice: 10000, DiscountedPrice: ptr[int64](7953)},
	)
	favourites := wishlist.NewStatic(7)

	return &fixture{
		svc:     NewService(cart.NewService(repo, cache, nil, logger), cache, lookup, favourites, hours, logger),
		repo:    repo,
		cache:   cache,
		catalog: lookup,
		wish:    favourites,
	}
}

func TestServiceIncrementUsesCatalogPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})

	_, err := f.svc.Increment(ctx, 42)
	require.NoError(t, err)
	ledger, err := f.svc.Increment(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, "100", ledger[42].UnitPrice.String())
	assert.Equal(t, "79.53", ledger[7].UnitPrice.String())

	total, err := f.svc.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, "179.53", total.String())
}

func TestServiceIncrementUnknownProduct(t *testing.T) {
	f := newFixture(t, WorkingHours{})

	_, err := f.svc.Increment(context.Background(), 999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	ledger, err := f.svc.ReadLedger(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestServiceSetQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})

	ledger, err := f.svc.SetQuantity(ctx, 42, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ledger.Count(42))

	total, err := f.svc.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, "200", total.String())

	ledger, err = f.svc.SetQuantity(ctx, 42, 0)
	require.NoError(t, err)
	assert.False(t, ledger.Has(42))

	total, err = f.svc.Total(ctx)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestServiceDecrementAfterProductLeftCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})

	_, err := f.svc.SetQuantity(ctx, 42, 2)
	require.NoError(t, err)

	// the catalog forgets the product; it must still be removable
	repo := cart.NewMemoryRepository(zap.NewNop())
	require.NoError(t, repo.Save(ctx, mustRead(t, f.svc)))
	cache := cart.NewCache(repo, zap.NewNop())
	svc := NewService(cart.NewService(repo, cache, nil, zap.NewNop()), cache, catalog.NewStatic(), nil, WorkingHours{}, zap.NewNop())

	ledger, err := svc.Decrement(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ledger.Count(42))
	assert.Equal(t, "100", ledger[42].UnitPrice.String())

	ledger, err = svc.RemoveItem(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestServiceCartView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})

	_, err := f.svc.SetQuantity(ctx, 42, 2)
	require.NoError(t, err)
	_, err = f.svc.Increment(ctx, 7)
	require.NoError(t, err)

	view, err := f.svc.CartView(ctx)
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, models.ProductID(7), view.Items[0].Product.ID)
	assert.True(t, view.Items[0].InWishlist)
	assert.True(t, view.Items[0].Product.Discounted())
	assert.Equal(t, "79.53", view.Items[0].LineTotal.String())
	assert.Equal(t, models.ProductID(42), view.Items[1].Product.ID)
	assert.False(t, view.Items[1].InWishlist)
	assert.Equal(t, "200", view.Items[1].LineTotal.String())

	assert.Equal(t, "279.53", view.Total.String())
	assert.Equal(t, int64(3), view.ItemCount)
	assert.Equal(t, f.cache.Version(), view.Version)
}

func TestServiceCartViewSkipsUnknownProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})

	f.catalog.Put(models.CatalogProduct{ID: 5, Name: "Seasonal", BasePrice: 300})
	_, err := f.svc.Increment(ctx, 5)
	require.NoError(t, err)
	_, err = f.svc.Increment(ctx, 42)
	require.NoError(t, err)

	lookup := catalog.NewStatic(models.CatalogProduct{ID: 42, Name: "Beans", BasePrice: 10000})
	svc := NewService(cart.NewService(f.repo, f.cache, nil, zap.NewNop()), f.cache, lookup, nil, WorkingHours{}, zap.NewNop())

	view, err := svc.CartView(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, models.ProductID(42), view.Items[0].Product.ID)
	assert.Equal(t, "103", view.Total.String())
}

func TestServiceProductCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})

	_, err := f.svc.SetQuantity(ctx, 7, 3)
	require.NoError(t, err)

	card, err := f.svc.ProductCard(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), card.Count)
	assert.True(t, card.InWishlist)
	assert.Equal(t, "green, loose, organic...", card.Product.Preview())

	_, err = f.svc.ProductCard(ctx, 999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestServiceToggleWishlist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})

	in, err := f.svc.ToggleWishlist(ctx, 42)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = f.svc.ToggleWishlist(ctx, 42)
	require.NoError(t, err)
	assert.False(t, in)

	readOnly := NewService(nil, f.cache, f.catalog, readOnlyWishlist{}, WorkingHours{}, zap.NewNop())
	_, err = readOnly.ToggleWishlist(ctx, 42)
	assert.Error(t, err)
}

func TestServiceCanCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{Open: 10, Close: 22})
	noon := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	night := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)

	ok, err := f.svc.CanCheckout(ctx, noon)
	require.NoError(t, err)
	assert.False(t, ok, "empty cart")

	_, err = f.svc.Increment(ctx, 42)
	require.NoError(t, err)

	ok, err = f.svc.CanCheckout(ctx, noon)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CanCheckout(ctx, night)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.ClearCart(ctx))
	ok, err = f.svc.CanCheckout(ctx, noon)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkingHours(t *testing.T) {
	at := func(hour int) time.Time { return time.Date(2024, 5, 1, hour, 30, 0, 0, time.UTC) }

	day := WorkingHours{Open: 10, Close: 22}
	assert.False(t, day.IsOpen(at(9)))
	assert.True(t, day.IsOpen(at(10)))
	assert.True(t, day.IsOpen(at(21)))
	assert.False(t, day.IsOpen(at(22)))

	overnight := WorkingHours{Open: 20, Close: 4}
	assert.True(t, overnight.IsOpen(at(23)))
	assert.True(t, overnight.IsOpen(at(3)))
	assert.False(t, overnight.IsOpen(at(12)))

	assert.True(t, WorkingHours{}.IsOpen(at(5)))
}

type readOnlyWishlist struct{}

func (readOnlyWishlist) IsInWishlist(context.Context, models.ProductID) (bool, error) {
	return false, nil
}

func mustRead(t *testing.T, svc Service) models.CartLedger {
	t.Helper()
	ledger, err := svc.ReadLedger(context.Background())
	require.NoError(t, err)
	return ledger
}
