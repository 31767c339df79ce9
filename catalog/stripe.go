package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/product"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

const (
	metadataProductID     = "product_id"
	metadataWeight        = "weight"
	metadataDiscountPrice = "discount_price"
)

var _ Lookup = (*Stripe)(nil)

// Stripe resolves storefront products from Stripe products tagged with
// metadata product_id. The default price is the base price; a discounted
// price in minor units may be set as metadata discount_price.
type Stripe struct {
	search func(params *stripe.ProductSearchParams) *product.SearchIter
	logger *zap.Logger
}

func NewStripe(api *client.API, logger *zap.Logger) *Stripe {
	return &Stripe{
		search: api.Products.Search,
		logger: logger,
	}
}

// NewStripeFromKey builds the Stripe API client for key.
func NewStripeFromKey(key string, logger *zap.Logger) *Stripe {
	api := &client.API{}
	api.Init(key, nil)
	return NewStripe(api, logger)
}

func (s *Stripe) GetProduct(ctx context.Context, id models.ProductID) (*models.CatalogProduct, error) {
	params := &stripe.ProductSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("active:'true' AND metadata['%s']:'%d'", metadataProductID, id)
	params.AddExpand("data.default_price")

	iter := s.search(params)
	for iter.Next() {
		p, err := fromStripeProduct(id, iter.Product())
		if err != nil {
			s.logger.Warn("Skipping malformed stripe product", zap.Int64("product_id", int64(id)), zap.Error(err))
			continue
		}
		return p, nil
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("Failed to search stripe products", zap.Int64("product_id", int64(id)), zap.Error(err))
		return nil, errors.Wrap(err, "search stripe products")
	}

	return nil, errors.Wrapf(ErrNotFound, "product %d", id)
}

func fromStripeProduct(id models.ProductID, sp *stripe.Product) (*models.CatalogProduct, error) {
	if sp == nil {
		return nil, errors.New("empty product")
	}
	if sp.DefaultPrice == nil {
		return nil, errors.Errorf("stripe product %s has no default price", sp.ID)
	}

	p := &models.CatalogProduct{
		ID:               id,
		Name:             sp.Name,
		DescriptionShort: sp.Description,
		BasePrice:        sp.DefaultPrice.UnitAmount,
	}

	if len(sp.Images) > 0 {
		image := sp.Images[0]
		p.MainImage = &image
	}

	if raw, ok := sp.Metadata[metadataWeight]; ok && raw != "" {
		weight, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "weight of %s", sp.ID)
		}
		p.Weight = weight
	}

	if raw, ok := sp.Metadata[metadataDiscountPrice]; ok && raw != "" {
		discounted, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "discount price of %s", sp.ID)
		}
		p.DiscountedPrice = &discounted
	}

	return p, nil
}
