package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

var _ Lookup = (*Breaker)(nil)

// Breaker stops calling a failing remote catalog for a while. Missing
// products are a normal answer and never trip it.
type Breaker struct {
	next Lookup
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Lookup, failures uint32, timeout time.Duration, logger *zap.Logger) *Breaker {
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Catalog circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) GetProduct(ctx context.Context, id models.ProductID) (*models.CatalogProduct, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CatalogProduct), nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
