package storefront

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/models"
)

type cartTestContext struct {
	repo    cart.Repository
	catalog *catalog.Static
	svc     Service
}

func (c *cartTestContext) reset(payload []byte) {
	logger := zap.NewNop()
	c.repo = cart.NewMemoryRepositoryFromPayload(payload, logger)
	cache := cart.NewCache(c.repo, logger)
	if c.catalog == nil {
		c.catalog = catalog.NewStatic()
	}
	c.svc = NewService(cart.NewService(c.repo, cache, nil, logger), cache, c.catalog, nil, WorkingHours{}, logger)
}

func (c *cartTestContext) anEmptyCart() error {
	c.catalog = nil
	c.reset(nil)
	return nil
}

func (c *cartTestContext) theStoredCartPayloadIs(payload string) error {
	c.reset([]byte(payload))
	return nil
}

func (c *cartTestContext) productCosts(id int64, price string) error {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.catalog.Put(models.CatalogProduct{
		ID:        models.ProductID(id),
		Name:      fmt.Sprintf("product %d", id),
		BasePrice: amount.Shift(2).IntPart(),
	})
	return nil
}

func (c *cartTestContext) iSetTheQuantityOfProductTo(id, count int64) error {
	_, err := c.svc.SetQuantity(context.Background(), models.ProductID(id), count)
	return err
}

func (c *cartTestContext) iTapPlusOnProduct(id int64) error {
	_, err := c.svc.Increment(context.Background(), models.ProductID(id))
	return err
}

func (c *cartTestContext) iTapMinusOnProduct(id int64) error {
	_, err := c.svc.Decrement(context.Background(), models.ProductID(id))
	return err
}

func (c *cartTestContext) productHasCount(id, count int64) error {
	ledger, err := c.svc.ReadLedger(context.Background())
	if err != nil {
		return err
	}
	if got := ledger.Count(models.ProductID(id)); got != count {
		return fmt.Errorf("expected product %d to have count %d, got %d", id, count, got)
	}
	return nil
}

func (c *cartTestContext) productIsNotInTheCart(id int64) error {
	ledger, err := c.svc.ReadLedger(context.Background())
	if err != nil {
		return err
	}
	if ledger.Has(models.ProductID(id)) {
		return fmt.Errorf("expected product %d to be absent, got %+v", id, ledger[models.ProductID(id)])
	}
	return nil
}

func (c *cartTestContext) theCartTotalIs(want string) error {
	total, err := c.svc.Total(context.Background())
	if err != nil {
		return err
	}
	if total.String() != want {
		return fmt.Errorf("expected total %s, got %s", want, total)
	}
	return nil
}

func (c *cartTestContext) theCartIsEmpty() error {
	ledger, err := c.svc.ReadLedger(context.Background())
	if err != nil {
		return err
	}
	if ledger.Len() != 0 {
		return fmt.Errorf("expected an empty cart, got %v", ledger)
	}
	return nil
}

func InitializeCartScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.catalog = nil
		tc.reset(nil)
		return ctx, nil
	})

	ctx.Step(`^an empty cart$`, tc.anEmptyCart)
	ctx.Step(`^the stored cart payload is "([^"]*)"$`, tc.theStoredCartPayloadIs)
	ctx.Step(`^product (\d+) costs (\d+\.\d+)$`, tc.productCosts)

	ctx.Step(`^I set the quantity of product (\d+) to (\d+)$`, tc.iSetTheQuantityOfProductTo)
	ctx.Step(`^I tap plus on product (\d+)$`, tc.iTapPlusOnProduct)
	ctx.Step(`^I tap minus on product (\d+)$`, tc.iTapMinusOnProduct)

	ctx.Step(`^product (\d+) has count (\d+)$`, tc.productHasCount)
	ctx.Step(`^product (\d+) is not in the cart$`, tc.productIsNotInTheCart)
	ctx.Step(`^the cart total is "([^"]*)"$`, tc.theCartTotalIs)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
}

func TestCartFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
