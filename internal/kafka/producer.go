package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	ErrProducerFull   = errors.New("kafka producer buffer full")
	ErrProducerClosed = errors.New("kafka producer closed")
)

// Producer publishes envelopes from a buffered inbox so request paths
// never wait on the broker. The topic comes from the event type.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logger:  logger,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer func() { _ = p.w.Close() }()
		for {
			select {
			case <-ctx.Done():
				// flush what is already queued
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							return
						}
						p.write(m)
					default:
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.logger.Error("kafka write failed",
			zap.String("topic", m.Topic),
			zap.ByteString("key", m.Key),
			zap.Error(err))
	}
}

// Publish implements events.Publisher. It only enqueues; delivery errors
// are logged by the writer loop.
func (p *Producer) Publish(ctx context.Context, env events.Envelope) error {
	topic, ok := events.TopicFor(env.EventType)
	if !ok {
		return errors.New("no topic for event type " + env.EventType)
	}
	m, err := EncodeEnvelope(topic, env)
	if err != nil {
		return err
	}
	InjectTrace(ctx, &m)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrProducerFull
	}
}

// Close stops accepting messages; the loop flushes the rest and exits.
// Publish calls racing with or following Close get ErrProducerClosed.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the loop has flushed and closed the writer.
func (p *Producer) WaitClosed() { <-p.closeCh }
