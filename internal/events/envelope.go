package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventProductDeleted     = "ProductDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // aggregate id: order or product
	Payload       json.RawMessage `json:"payload"`
}

// New wraps payload in a version 1 envelope.
func New(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Decode unmarshals the envelope payload into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}

// Publisher delivers envelopes to the event bus.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Discard is the Publisher used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, Envelope) error { return nil }

// ---- Payloads ----

type OrderLine struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type OrderPlacedPayload struct {
	OrderID string      `json:"order_id"`
	Lines   []OrderLine `json:"lines"`
	Total   string      `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID   string `json:"order_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Restocked bool   `json:"restocked"`
}

type ProductDeletedPayload struct {
	ProductID string   `json:"product_id"`
	Images    []string `json:"images,omitempty"`
}
