// Package catalog looks up the product data the cart engine renders and prices.
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/go-faster/errors"

	"goflare.io/storefront/models"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Lookup is the catalog contract consumed by the storefront.
type Lookup interface {
	GetProduct(ctx context.Context, id models.ProductID) (*models.CatalogProduct, error)
}

var _ Lookup = (*Static)(nil)

// Static is an in-memory catalog.
type Static struct {
	mu       sync.RWMutex
	products map[models.ProductID]models.CatalogProduct
}

func NewStatic(products ...models.CatalogProduct) *Static {
	s := &Static{products: make(map[models.ProductID]models.CatalogProduct, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Static) GetProduct(ctx context.Context, id models.ProductID) (*models.CatalogProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "product %d", id)
	}
	return &p, nil
}

func (s *Static) Put(p models.CatalogProduct) {
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
}

// LoadStatic reads a JSON array of catalog products from path.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog seed")
	}
	var products []models.CatalogProduct
	if err = json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "decode catalog seed")
	}
	return NewStatic(products...), nil
}
