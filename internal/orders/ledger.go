package orders

import "context"

// Ledger persists orders and their embedded lines.
type Ledger interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	// ListOrders returns every order, newest first.
	ListOrders(ctx context.Context) ([]Order, error)
	// UpdateOrderStatus sets the status to `to` only if it is currently
	// `from`, failing with CONFLICT otherwise.
	UpdateOrderStatus(ctx context.Context, id string, from, to Status) (Order, error)
}
