package orders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/catalog"
	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/ariefcatur/boutique-orders/internal/orders"

	// attempts at the status compare-and-set before giving up with CONFLICT
	maxStatusAttempts  = 3
	defaultEnrichLimit = 8
)

// Service keeps orders and catalog stock consistent: stock is taken when an
// order is placed and given back once when the order is cancelled.
type Service struct {
	catalog     catalog.Store
	ledger      Ledger
	events      events.Publisher
	producer    string
	logger      *zap.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
	enrichLimit int
}

type Option func(*Service)

func WithEvents(p events.Publisher, producer string) Option {
	return func(s *Service) {
		s.events = p
		s.producer = producer
	}
}

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithEnrichLimit bounds concurrent catalog lookups while building views.
func WithEnrichLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.enrichLimit = n
		}
	}
}

func NewService(cat catalog.Store, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		catalog:     cat,
		ledger:      ledger,
		events:      events.Discard{},
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		newID:       uuid.NewString,
		enrichLimit: defaultEnrichLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// PlaceOrder checks every line against stock, takes the stock, and records
// the order as pending. Either all of it happens or none of it does.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.lines", len(in.Lines))))
	defer span.End()

	o, err := s.placeOrder(ctx, in)
	if err != nil {
		s.metrics.rejectedWith(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Info("order rejected", zap.String("code", string(apperr.CodeOf(err))), zap.Error(err))
		return Order{}, err
	}

	s.metrics.placed.Inc()
	span.SetAttributes(attribute.String("order.id", o.ID))
	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Total.String()))

	lines := make([]events.OrderLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, events.OrderLine{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity})
	}
	s.publish(ctx, events.EventOrderPlaced, o.ID, events.OrderPlacedPayload{
		OrderID: o.ID,
		Lines:   lines,
		Total:   o.Total.String(),
	})
	return o, nil
}

func (s *Service) placeOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	if err := validatePlaceOrder(in); err != nil {
		return Order{}, err
	}
	if err := s.checkAvailability(ctx, in.Lines); err != nil {
		return Order{}, err
	}

	// Phase 2. The availability check above is only advisory under
	// concurrency; the guarded delta is what actually prevents oversell.
	applied := make([]Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		if err := s.catalog.ApplyStockDelta(ctx, l.ProductID, l.Size, -l.Quantity); err != nil {
			cause := decrementErr(l, err)
			return Order{}, errors.Join(cause, s.rollback(ctx, applied, 1, "place order"))
		}
		applied = append(applied, l)
	}

	now := s.now().UTC()
	created, err := s.ledger.CreateOrder(ctx, Order{
		ID:           s.newID(),
		CustomerInfo: in.CustomerInfo,
		Lines:        append([]Line(nil), in.Lines...),
		Total:        *in.Total,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		cause := apperr.Wrap(apperr.CodeStoreUnavailable, "could not record order", err)
		return Order{}, errors.Join(cause, s.rollback(ctx, applied, 1, "place order"))
	}
	return created, nil
}

func validatePlaceOrder(in PlaceOrderInput) error {
	info := bytes.TrimSpace(in.CustomerInfo)
	if len(info) == 0 || bytes.Equal(info, []byte("null")) || len(in.Lines) == 0 || in.Total == nil {
		return apperr.New(apperr.CodeIncompleteData, "incomplete order data: customer info, items and total are required")
	}
	if in.Total.IsNegative() {
		return apperr.New(apperr.CodeIncompleteData, "incomplete order data: total must be >= 0")
	}
	if !catalog.ValidAmount(*in.Total) {
		return apperr.New(apperr.CodeIncompleteData, "incomplete order data: total must have at most 2 decimal places")
	}
	for i, l := range in.Lines {
		if l.ProductID == "" || l.Size == "" || l.Quantity < 1 {
			return apperr.Newf(apperr.CodeIncompleteData,
				"incomplete order data: item %d needs a product, a size and a quantity >= 1", i+1)
		}
	}
	return nil
}

type stockKey struct{ productID, size string }

// checkAvailability is phase 1: nothing is mutated here.
func (s *Service) checkAvailability(ctx context.Context, lines []Line) error {
	products := make(map[string]catalog.Product, len(lines))
	demand := make(map[stockKey]int, len(lines))

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			var err error
			p, err = s.catalog.GetProduct(ctx, l.ProductID)
			if apperr.IsCode(err, apperr.CodeNotFound) {
				return apperr.Wrap(apperr.CodeNotFound, "product not found: "+lineLabel(l), err)
			}
			if err != nil {
				return storeErr(err, "could not read catalog")
			}
			products[l.ProductID] = p
		}

		k := stockKey{l.ProductID, l.Size}
		demand[k] += l.Quantity
		sz, ok := p.Size(l.Size)
		if !ok || sz.Stock < demand[k] {
			return insufficient(l)
		}
	}
	return nil
}

// UpdateOrderStatus moves an order to status. Entering the cancelled state
// gives every line's quantity back to stock, exactly once; a cancelled
// order cannot leave that state.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status string) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.UpdateOrderStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.status", status)))
	defer span.End()

	o, err := s.updateOrderStatus(ctx, id, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}
	return o, nil
}

func (s *Service) updateOrderStatus(ctx context.Context, id, status string) (Order, error) {
	to, ok := ParseStatus(status)
	if !ok {
		return Order{}, apperr.Newf(apperr.CodeInvalidStatus, "invalid status %q", status)
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		cur, err := s.ledger.GetOrder(ctx, id)
		if err != nil {
			return Order{}, storeErr(err, "could not read order")
		}
		if Reopens(cur.Status, to) {
			return Order{}, apperr.Newf(apperr.CodeInvalidStatus, "order %s is cancelled and cannot be reopened", id)
		}

		// The compare-and-set decides which concurrent request owns the
		// transition, and with it the restock.
		updated, err := s.ledger.UpdateOrderStatus(ctx, id, cur.Status, to)
		if apperr.IsCode(err, apperr.CodeConflict) {
			s.logger.Debug("order status changed underneath, retrying",
				zap.String("order_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return Order{}, storeErr(err, "could not update order status")
		}

		restocked := Restocks(cur.Status, to)
		if restocked {
			if err := s.restock(ctx, updated); err != nil {
				return Order{}, errors.Join(err, s.revertStatus(ctx, id, to, cur.Status))
			}
		}

		s.metrics.statusChanges.WithLabelValues(string(to)).Inc()
		s.logger.Info("order status updated",
			zap.String("order_id", id),
			zap.String("from", string(cur.Status)),
			zap.String("to", string(to)),
			zap.Bool("restocked", restocked))
		s.publish(ctx, events.EventOrderStatusChanged, id, events.OrderStatusChangedPayload{
			OrderID:   id,
			From:      string(cur.Status),
			To:        string(to),
			Restocked: restocked,
		})
		return updated, nil
	}
	return Order{}, apperr.New(apperr.CodeConflict, "order status is being changed concurrently, retry")
}

func (s *Service) restock(ctx context.Context, o Order) error {
	applied := make([]Line, 0, len(o.Lines))
	units := 0
	for _, l := range o.Lines {
		err := s.catalog.ApplyStockDelta(ctx, l.ProductID, l.Size, l.Quantity)
		if apperr.IsCode(err, apperr.CodeNotFound) {
			s.logger.Warn("restock skipped: product or size no longer in catalog",
				zap.String("order_id", o.ID),
				zap.String("product_id", l.ProductID),
				zap.String("size", l.Size))
			continue
		}
		if err != nil {
			cause := storeErr(err, fmt.Sprintf("could not restock %s in size %s", lineLabel(l), l.Size))
			return errors.Join(cause, s.rollback(ctx, applied, -1, "restock"))
		}
		applied = append(applied, l)
		units += l.Quantity
	}
	s.metrics.restocked.Add(float64(units))
	return nil
}

func (s *Service) revertStatus(ctx context.Context, id string, from, to Status) error {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.ledger.UpdateOrderStatus(ctx, id, from, to); err != nil {
		s.logger.Error("could not revert order status after failed restock",
			zap.String("order_id", id),
			zap.String("status", string(from)),
			zap.String("want", string(to)),
			zap.Error(err))
		return fmt.Errorf("revert status of order %s: %w", id, err)
	}
	return nil
}

// rollback re-applies quantity*sign for each line, newest first. It runs
// detached from ctx's cancellation: a caller that gave up must not leave
// stock half-adjusted.
func (s *Service) rollback(ctx context.Context, lines []Line, sign int, op string) error {
	if len(lines) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if err := s.catalog.ApplyStockDelta(ctx, l.ProductID, l.Size, sign*l.Quantity); err != nil {
			s.logger.Error("stock rollback failed",
				zap.String("op", op),
				zap.String("product_id", l.ProductID),
				zap.String("size", l.Size),
				zap.Int("delta", sign*l.Quantity),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("rollback %s/%s: %w", l.ProductID, l.Size, err))
		}
	}
	if len(errs) > 0 {
		s.metrics.rollbacks.WithLabelValues("failed").Inc()
		return errors.Join(errs...)
	}
	s.metrics.rollbacks.WithLabelValues("ok").Inc()
	return nil
}

func (s *Service) publish(ctx context.Context, eventType, id string, payload any) {
	env, err := events.New(eventType, s.producer, id, payload)
	if err == nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			env.TraceID = sc.TraceID().String()
		}
		err = s.events.Publish(ctx, env)
	}
	if err != nil {
		s.logger.Warn("publish event", zap.String("event_type", eventType), zap.String("id", id), zap.Error(err))
	}
}

func decrementErr(l Line, err error) error {
	switch apperr.CodeOf(err) {
	case apperr.CodeConstraintViolation:
		return insufficientWrap(l, err)
	case apperr.CodeNotFound:
		return apperr.Wrap(apperr.CodeNotFound, "product not found: "+lineLabel(l), err)
	}
	return storeErr(err, "could not reserve stock for "+lineLabel(l))
}

func insufficient(l Line) *apperr.Error {
	return apperr.Newf(apperr.CodeInsufficientStock, "insufficient stock for %s in size %s", lineLabel(l), l.Size)
}

func insufficientWrap(l Line, err error) error {
	e := insufficient(l)
	e.Err = err
	return e
}

// storeErr keeps coded errors as they are and marks anything else as a
// persistence failure.
func storeErr(err error, msg string) error {
	if apperr.CodeOf(err) != "" {
		return err
	}
	return apperr.Wrap(apperr.CodeStoreUnavailable, msg, err)
}

func lineLabel(l Line) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ProductID
}
