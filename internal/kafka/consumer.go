package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is done with and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// messageReader is the part of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	logger  *zap.Logger
	backoff func(attempt int) time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return newConsumer(r, workers, logger.With(zap.String("topic", topic)))
}

func newConsumer(r messageReader, workers int, logger *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, logger: logger, backoff: retryBackoff}
}

func retryBackoff(attempt int) time.Duration {
	d := 200 * time.Millisecond << min(attempt-1, 8)
	return min(d, 30*time.Second)
}

// Start fetches until ctx is cancelled. Each partition is handled by one
// worker, in offset order. A failing message is retried with backoff and
// holds back the rest of its partition: committing a later offset would
// commit past it. On shutdown it stays uncommitted and is fetched again
// by the next group member.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			c.work(ctx, jobs, h)
		}(lanes[i])
	}
	stop := func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case lanes[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) work(ctx context.Context, jobs <-chan kafka.Message, h Handler) {
	for m := range jobs {
		// once stopping, queued messages are left for redelivery
		if ctx.Err() != nil || !c.handle(ctx, m, h) {
			continue
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.logger.Warn("commit failed",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

// handle runs h until it succeeds. It reports false when ctx ends first.
func (c *Consumer) handle(ctx context.Context, m kafka.Message, h Handler) bool {
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		wait := c.backoff(attempt)
		c.logger.Warn("handler failed, retrying",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return false
		}
	}
}
