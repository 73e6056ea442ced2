package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndDecode(t *testing.T) {
	env, err := New(EventProductDeleted, "order-api", "p-1", ProductDeletedPayload{
		ProductID: "p-1",
		Images:    []string{"https://img.example/upload/v1/shop/a.jpg"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "p-1", env.CorrelationID)

	p, err := Decode[ProductDeletedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ProductID)
	assert.Len(t, p.Images, 1)
}

func TestDecode_BadPayload(t *testing.T) {
	_, err := Decode[OrderPlacedPayload](Envelope{EventType: EventOrderPlaced, Payload: []byte(`[`)})
	assert.ErrorContains(t, err, "decode OrderPlaced payload")
}

func TestTopicFor(t *testing.T) {
	topic, ok := TopicFor(EventOrderStatusChanged)
	assert.True(t, ok)
	assert.Equal(t, TopicOrderStatusChanged, topic)

	_, ok = TopicFor("Unknown")
	assert.False(t, ok)
}
