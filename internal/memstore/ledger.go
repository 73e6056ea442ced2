package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/orders"
)

type Ledger struct {
	mu     sync.Mutex
	orders map[string]orders.Order
	now    func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{orders: make(map[string]orders.Order), now: time.Now}
}

func (l *Ledger) CreateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return orders.Order{}, apperr.Wrap(apperr.CodeStoreUnavailable, "ledger unavailable", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.orders[o.ID]; exists {
		return orders.Order{}, apperr.Newf(apperr.CodeConflict, "order %s already exists", o.ID)
	}
	l.orders[o.ID] = cloneOrder(o)
	return cloneOrder(o), nil
}

func (l *Ledger) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return orders.Order{}, apperr.Wrap(apperr.CodeStoreUnavailable, "ledger unavailable", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return orders.Order{}, apperr.New(apperr.CodeNotFound, "order not found")
	}
	return cloneOrder(o), nil
}

func (l *Ledger) ListOrders(ctx context.Context) ([]orders.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]orders.Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (l *Ledger) UpdateOrderStatus(ctx context.Context, id string, from, to orders.Status) (orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return orders.Order{}, apperr.Wrap(apperr.CodeStoreUnavailable, "ledger unavailable", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return orders.Order{}, apperr.New(apperr.CodeNotFound, "order not found")
	}
	if o.Status != from {
		return orders.Order{}, apperr.Newf(apperr.CodeConflict, "order %s is %q, not %q", id, o.Status, from)
	}
	o.Status = to
	o.UpdatedAt = l.now().UTC()
	l.orders[id] = o
	return cloneOrder(o), nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.Lines = append([]orders.Line(nil), o.Lines...)
	o.CustomerInfo = append([]byte(nil), o.CustomerInfo...)
	return o
}
