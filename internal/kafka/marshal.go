package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/segmentio/kafka-go"
)

const (
	headerEventType    = "x-event-type"
	headerEventVersion = "x-event-version"
)

// EncodeEnvelope builds the message for env, keyed by its aggregate id.
func EncodeEnvelope(topic string, env events.Envelope) (kafka.Message, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s envelope: %w", env.EventType, err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   events.PartitionKey(env.CorrelationID),
		Value: b,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(env.EventType)},
			{Key: headerEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}, nil
}

func DecodeEnvelope(m kafka.Message) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope at %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return env, nil
}
