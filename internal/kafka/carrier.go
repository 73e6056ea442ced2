package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier lets the text map propagator read and write message headers.
type headerCarrier struct{ m *kafka.Message }

var _ propagation.TextMapCarrier = headerCarrier{}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.m.Headers {
		if h.Key == key {
			c.m.Headers[i].Value = []byte(value)
			return
		}
	}
	c.m.Headers = append(c.m.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	out := make([]string, 0, len(c.m.Headers))
	for _, h := range c.m.Headers {
		out = append(out, h.Key)
	}
	return out
}

// InjectTrace writes the span context of ctx into m's headers.
func InjectTrace(ctx context.Context, m *kafka.Message) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{m})
}

// ExtractTrace returns ctx carrying the remote span context found in m.
func ExtractTrace(ctx context.Context, m kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{&m})
}
