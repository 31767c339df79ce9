package storefront

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/models"
)

const DefaultSubject = "storefront.cart.changed"

// CartChangedEvent is published after every refresh of the cart cache.
type CartChangedEvent struct {
	ID         string          `json:"id"`
	Version    uint64          `json:"version"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int64           `json:"item_count"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type EventHandler func(context.Context, *CartChangedEvent) error

type natsConn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type versioner interface {
	Version() uint64
}

// EventManager bridges cart changes to NATS so other processes on the local
// bus see them.
type EventManager struct {
	conn    natsConn
	subject string
	logger  *zap.Logger

	mu       sync.RWMutex
	handlers []EventHandler
}

func NewEventManager(conn natsConn, subject string, logger *zap.Logger) *EventManager {
	if subject == "" {
		subject = DefaultSubject
	}
	return &EventManager{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

func (em *EventManager) RegisterHandler(handler EventHandler) {
	em.mu.Lock()
	em.handlers = append(em.handlers, handler)
	em.mu.Unlock()
}

// PublishChanges publishes an event for every cache refresh. Publishing runs
// on wp so listeners never wait on the network; when its queue is full the
// event is dropped and later events carry the newer version.
func (em *EventManager) PublishChanges(subscribe func(cart.Listener) func(), versions versioner, wp *WorkerPool) (stop func()) {
	return subscribe(func(ledger models.CartLedger) {
		event := &CartChangedEvent{
			ID:         uuid.NewString(),
			Version:    versions.Version(),
			Total:      cart.Total(ledger),
			ItemCount:  cart.ItemCount(ledger),
			OccurredAt: time.Now().UTC(),
		}
		queued := wp.TrySubmit(func() {
			if err := em.Publish(event); err != nil {
				em.logger.Error("Failed to publish cart change",
					zap.Error(err),
					zap.String("event_id", event.ID),
					zap.Uint64("version", event.Version))
			}
		})
		if !queued {
			em.logger.Warn("Dropping cart change, publish queue is full",
				zap.String("event_id", event.ID),
				zap.Uint64("version", event.Version))
		}
	})
}

func (em *EventManager) Publish(event *CartChangedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal cart change")
	}
	if err = em.conn.Publish(em.subject, data); err != nil {
		return errors.Wrap(err, "publish cart change")
	}
	return nil
}

// SubscribeToEvents dispatches incoming cart change events to the registered
// handlers through wp.
func (em *EventManager) SubscribeToEvents(wp *WorkerPool) (*nats.Subscription, error) {
	sub, err := em.conn.Subscribe(em.subject, func(msg *nats.Msg) {
		var event CartChangedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("Failed to unmarshal event", zap.Error(err))
			return
		}

		wp.Submit(func() {
			em.dispatch(context.Background(), &event)
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe to %s", em.subject)
	}
	return sub, nil
}

func (em *EventManager) dispatch(ctx context.Context, event *CartChangedEvent) {
	em.mu.RLock()
	handlers := append([]EventHandler(nil), em.handlers...)
	em.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			em.logger.Error("Failed to handle cart change",
				zap.Error(err),
				zap.String("event_id", event.ID),
				zap.Uint64("version", event.Version))
		}
	}
}
