// Package memstore holds mutex-guarded in-memory stores with the same
// semantics as the Postgres ones. Used by tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/catalog"
)

type Catalog struct {
	mu       sync.Mutex
	products map[string]catalog.Product
}

func NewCatalog() *Catalog {
	return &Catalog{products: make(map[string]catalog.Product)}
}

// Seed stores p as is, bypassing validation. For tests and bootstrap.
func (c *Catalog) Seed(p catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = cloneProduct(p)
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Product{}, apperr.Wrap(apperr.CodeStoreUnavailable, "catalog unavailable", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, apperr.New(apperr.CodeNotFound, "product not found")
	}
	return cloneProduct(p), nil
}

func (c *Catalog) ApplyStockDelta(ctx context.Context, productID, size string, delta int) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.CodeStoreUnavailable, "catalog unavailable", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[productID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "product not found")
	}
	for i := range p.Sizes {
		if p.Sizes[i].Size != size {
			continue
		}
		if p.Sizes[i].Stock+delta < 0 {
			return apperr.Newf(apperr.CodeConstraintViolation,
				"stock of %s/%s would drop below zero", productID, size)
		}
		p.Sizes[i].Stock += delta
		return nil
	}
	return apperr.Newf(apperr.CodeNotFound, "size %s not found", size)
}

func (c *Catalog) ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]catalog.Product, 0, len(c.products))
	for _, p := range c.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (c *Catalog) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.products[p.ID]; exists {
		return catalog.Product{}, apperr.Newf(apperr.CodeConflict, "product %s already exists", p.ID)
	}
	c.products[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

func (c *Catalog) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.products[p.ID]
	if !ok {
		return catalog.Product{}, apperr.New(apperr.CodeNotFound, "product not found")
	}
	p.CreatedAt = cur.CreatedAt
	p = cloneProduct(p)
	for i, sz := range p.Sizes {
		for _, old := range cur.Sizes {
			if old.Size == sz.Size {
				p.Sizes[i].Stock = old.Stock
			}
		}
	}
	c.products[p.ID] = p
	return cloneProduct(p), nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id string) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, apperr.New(apperr.CodeNotFound, "product not found")
	}
	delete(c.products, id)
	return p, nil
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Images = append([]string{}, p.Images...)
	p.Sizes = append([]catalog.SizeStock{}, p.Sizes...)
	p.Tags = append([]catalog.Tag{}, p.Tags...)
	return p
}

func newerFirst(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA > idB
}
