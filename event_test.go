package storefront

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/models"
)

type fakeNATS struct {
	mu         sync.Mutex
	published  map[string][][]byte
	handler    nats.MsgHandler
	publishErr error
}

func newFakeNATS() *fakeNATS {
	return &fakeNATS{published: map[string][][]byte{}}
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	f.published[subject] = append(f.published[subject], data)
	f.mu.Unlock()
	return nil
}

func (f *fakeNATS) Subscribe(_ string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.handler = cb
	return &nats.Subscription{}, nil
}

func (f *fakeNATS) messages(subject string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[subject]
}

func TestEventManagerPublishesCartChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WorkingHours{})
	conn := newFakeNATS()
	wp := NewWorkerPool(1, 8, zap.NewNop())

	em := NewEventManager(conn, "", zap.NewNop())
	stop := em.PublishChanges(f.svc.Subscribe, f.cache, wp)

	_, err := f.svc.SetQuantity(ctx, 42, 2)
	require.NoError(t, err)

	stop()
	_, err = f.svc.Increment(ctx, 42)
	require.NoError(t, err)
	wp.Shutdown()

	messages := conn.messages(DefaultSubject)
	require.Len(t, messages, 1)

	var event CartChangedEvent
	require.NoError(t, json.Unmarshal(messages[0], &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "200", event.Total.String())
	assert.Equal(t, int64(2), event.ItemCount)
	assert.Equal(t, f.cache.Version()-1, event.Version)
}

func TestEventManagerPublishFailure(t *testing.T) {
	conn := newFakeNATS()
	conn.publishErr = errors.New("no responders")
	em := NewEventManager(conn, "cart", zap.NewNop())

	err := em.Publish(&CartChangedEvent{ID: "1"})
	assert.ErrorIs(t, err, conn.publishErr)
}

func TestEventManagerDispatchesIncomingEvents(t *testing.T) {
	conn := newFakeNATS()
	em := NewEventManager(conn, "cart", zap.NewNop())
	wp := NewWorkerPool(1, 8, zap.NewNop())

	var mu sync.Mutex
	var got []*CartChangedEvent
	em.RegisterHandler(func(_ context.Context, event *CartChangedEvent) error {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
		return nil
	})
	em.RegisterHandler(func(context.Context, *CartChangedEvent) error {
		return errors.New("handler failed")
	})

	_, err := em.SubscribeToEvents(wp)
	require.NoError(t, err)
	require.NotNil(t, conn.handler)

	data, err := json.Marshal(CartChangedEvent{ID: "evt-1", Version: 3, ItemCount: 2})
	require.NoError(t, err)
	conn.handler(&nats.Msg{Data: data})
	conn.handler(&nats.Msg{Data: []byte("not json")})
	wp.Shutdown()

	require.Len(t, got, 1)
	assert.Equal(t, "evt-1", got[0].ID)
	assert.Equal(t, uint64(3), got[0].Version)
}

func TestPublishChangesUsesListenerLedger(t *testing.T) {
	conn := newFakeNATS()
	em := NewEventManager(conn, "cart", zap.NewNop())
	wp := NewWorkerPool(1, 8, zap.NewNop())

	var listener cart.Listener
	subscribe := func(fn cart.Listener) func() {
		listener = fn
		return func() {}
	}
	em.PublishChanges(subscribe, staticVersion(9), wp)

	listener(models.CartLedger{})
	wp.Shutdown()

	require.Len(t, conn.messages("cart"), 1)
	var event CartChangedEvent
	require.NoError(t, json.Unmarshal(conn.messages("cart")[0], &event))
	assert.Equal(t, uint64(9), event.Version)
	assert.True(t, event.Total.IsZero())
}

type staticVersion uint64

func (v staticVersion) Version() uint64 { return uint64(v) }

func TestPublishChangesDropsWhenQueueIsFull(t *testing.T) {
	conn := newFakeNATS()
	em := NewEventManager(conn, "cart", zap.NewNop())
	wp := NewWorkerPool(1, 1, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	wp.Submit(func() {
		close(started)
		<-release
	})
	<-started

	var listener cart.Listener
	em.PublishChanges(func(fn cart.Listener) func() {
		listener = fn
		return func() {}
	}, staticVersion(1), wp)

	done := make(chan struct{})
	go func() {
		listener(models.CartLedger{})
		listener(models.CartLedger{})
		listener(models.CartLedger{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener blocked on a full publish queue")
	}

	close(release)
	wp.Shutdown()
	assert.Len(t, conn.messages("cart"), 1)
}
