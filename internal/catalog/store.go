package catalog

import "context"

// Store is what the order path needs from the catalog.
type Store interface {
	GetProduct(ctx context.Context, id string) (Product, error)

	// ApplyStockDelta adds delta to the stock of (productID, size) atomically.
	// It fails with CONSTRAINT_VIOLATION rather than letting stock go below
	// zero, and with NOT_FOUND when the product or the size is missing.
	ApplyStockDelta(ctx context.Context, productID, size string, delta int) error
}

// Repository adds catalog administration on top of Store.
type Repository interface {
	Store
	ListProducts(ctx context.Context, f Filter) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	// UpdateProduct replaces every field except ID and CreatedAt. Sizes
	// already on the product keep their current stock counter; only sizes
	// new to the product take the given stock. Sizes absent from p are
	// dropped.
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	// DeleteProduct returns the record as it was before removal.
	DeleteProduct(ctx context.Context, id string) (Product, error)
}
