package imagepurge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/ariefcatur/boutique-orders/internal/images"
	kafkax "github.com/ariefcatur/boutique-orders/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
	traces  []string
}

func (f *fakeStore) Delete(ctx context.Context, u string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traces = append(f.traces, trace.SpanContextFromContext(ctx).TraceID().String())
	if _, ok := images.PublicID(u); !ok {
		return images.ErrNotImageURL
	}
	if f.fail[u] {
		return errors.New("503 from store")
	}
	f.deleted = append(f.deleted, u)
	return nil
}

type memDedup struct {
	seen map[string]bool
}

func (d *memDedup) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}

const (
	imgA = "https://cdn.example.com/shop/image/upload/v1/robe/a.jpg"
	imgB = "https://cdn.example.com/shop/image/upload/v1/robe/b.jpg"
)

func message(t *testing.T, urls ...string) (kafkago.Message, events.Envelope) {
	t.Helper()
	env, err := events.New(events.EventProductDeleted, "order-api", "prod-1",
		events.ProductDeletedPayload{ProductID: "prod-1", Images: urls})
	require.NoError(t, err)
	m, err := kafkax.EncodeEnvelope(events.TopicProductDeleted, env)
	require.NoError(t, err)
	return m, env
}

func TestHandleProductDeleted_PurgesOnce(t *testing.T) {
	store := &fakeStore{}
	svc := &Service{Images: store, Dedup: &memDedup{seen: map[string]bool{}}, Logger: zap.NewNop()}
	m, _ := message(t, imgA, imgB, "https://elsewhere.example.com/c.jpg")

	require.NoError(t, svc.HandleProductDeleted(context.Background(), m))
	require.NoError(t, svc.HandleProductDeleted(context.Background(), m))
	assert.Equal(t, []string{imgA, imgB}, store.deleted)
}

func TestHandleProductDeleted_FailureAllowsRedelivery(t *testing.T) {
	store := &fakeStore{fail: map[string]bool{imgB: true}}
	dedup := &memDedup{seen: map[string]bool{}}
	svc := &Service{Images: store, Dedup: dedup, Logger: zap.NewNop()}
	m, env := message(t, imgA, imgB)

	assert.Error(t, svc.HandleProductDeleted(context.Background(), m))
	assert.False(t, dedup.seen[env.EventID])

	store.fail = nil
	require.NoError(t, svc.HandleProductDeleted(context.Background(), m))
	assert.Equal(t, []string{imgA, imgA, imgB}, store.deleted)
}

func TestHandleProductDeleted_IgnoresOtherEvents(t *testing.T) {
	store := &fakeStore{}
	svc := &Service{Images: store, Logger: zap.NewNop()}

	env, err := events.New(events.EventOrderPlaced, "order-api", "o1", events.OrderPlacedPayload{OrderID: "o1"})
	require.NoError(t, err)
	m, err := kafkax.EncodeEnvelope(events.TopicOrderPlaced, env)
	require.NoError(t, err)

	assert.NoError(t, svc.HandleProductDeleted(context.Background(), m))
	assert.NoError(t, svc.HandleProductDeleted(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.Empty(t, store.deleted)
}

func TestHandleProductDeleted_ContinuesProducerTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	store := &fakeStore{}
	svc := &Service{Images: store, Logger: zap.NewNop()}
	m, _ := message(t, imgA)
	m.Headers = append(m.Headers, kafkago.Header{
		Key:   "traceparent",
		Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"),
	})

	require.NoError(t, svc.HandleProductDeleted(context.Background(), m))
	assert.Equal(t, []string{"4bf92f3577b34da6a3ce929d0e0e4736"}, store.traces)
}
