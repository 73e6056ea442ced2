// Package imagepurge removes the pictures of deleted products from the
// image store. It runs in the worker, fed by catalog.product.deleted.
package imagepurge

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/ariefcatur/boutique-orders/internal/images"
	kafkax "github.com/ariefcatur/boutique-orders/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/boutique-orders/internal/imagepurge")

// Deduper records which events were already handled.
type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Images images.Store
	Dedup  Deduper // nil disables de-duplication
	Logger *zap.Logger
}

// HandleProductDeleted is installed as the consumer handler. Returning an
// error keeps the offset uncommitted; the consumer retries the event.
func (s *Service) HandleProductDeleted(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// poison message: log and commit, a retry cannot fix it
		s.Logger.Error("drop undecodable message", zap.Error(err))
		return nil
	}
	if env.EventType != events.EventProductDeleted {
		return nil
	}

	// continue the trace of the request that deleted the product
	ctx, span := tracer.Start(kafkax.ExtractTrace(ctx, m), "imagepurge.Purge",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", m.Topic),
			attribute.String("event.id", env.EventID),
		))
	defer span.End()

	if err := s.Purge(ctx, env); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Purge deletes every image named in the envelope, once per event id.
func (s *Service) Purge(ctx context.Context, env events.Envelope) error {
	log := s.Logger.With(zap.String("event_id", env.EventID), zap.String("trace_id", env.TraceID))

	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			// without the dedup store, purging twice is harmless
			log.Warn("dedup unavailable", zap.Error(err))
		} else if !first {
			log.Debug("event already handled")
			return nil
		}
	}

	p, err := events.Decode[events.ProductDeletedPayload](env)
	if err != nil {
		log.Error("drop undecodable payload", zap.Error(err))
		return nil
	}

	var errs []error
	deleted := 0
	for _, img := range p.Images {
		err := s.Images.Delete(ctx, img)
		switch {
		case errors.Is(err, images.ErrNotImageURL):
			log.Warn("skip foreign image url", zap.String("url", img))
		case err != nil:
			errs = append(errs, fmt.Errorf("delete %s: %w", img, err))
		default:
			deleted++
		}
	}

	if len(errs) > 0 {
		if s.Dedup != nil {
			if ferr := s.Dedup.Forget(context.WithoutCancel(ctx), env.EventID); ferr != nil {
				log.Warn("could not clear dedup mark", zap.Error(ferr))
			}
		}
		return errors.Join(errs...)
	}
	log.Info("product images purged", zap.String("product_id", p.ProductID), zap.Int("deleted", deleted))
	return nil
}
