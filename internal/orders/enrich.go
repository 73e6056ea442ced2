package orders

import (
	"context"
	"sync"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"golang.org/x/sync/errgroup"
)

func (s *Service) ListOrders(ctx context.Context) ([]OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "orders.ListOrders")
	defer span.End()

	list, err := s.ledger.ListOrders(ctx)
	if err != nil {
		return nil, storeErr(err, "could not list orders")
	}
	products, err := s.summaries(ctx, list...)
	if err != nil {
		return nil, err
	}

	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, toView(o, products))
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "orders.GetOrder")
	defer span.End()

	o, err := s.ledger.GetOrder(ctx, id)
	if err != nil {
		return OrderView{}, storeErr(err, "could not read order")
	}
	products, err := s.summaries(ctx, o)
	if err != nil {
		return OrderView{}, err
	}
	return toView(o, products), nil
}

// View joins an order that is already in hand with the catalog. On a
// catalog error the returned view is still usable, with no product_info.
func (s *Service) View(ctx context.Context, o Order) (OrderView, error) {
	products, err := s.summaries(ctx, o)
	return toView(o, products), err
}

// summaries resolves every distinct product referenced by the orders.
// Products that have been deleted are simply absent from the result.
func (s *Service) summaries(ctx context.Context, list ...Order) (map[string]*ProductSummary, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, o := range list {
		for _, l := range o.Lines {
			if !seen[l.ProductID] {
				seen[l.ProductID] = true
				ids = append(ids, l.ProductID)
			}
		}
	}

	out := make(map[string]*ProductSummary, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.enrichLimit)
	for _, id := range ids {
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, id)
			if apperr.IsCode(err, apperr.CodeNotFound) {
				return nil
			}
			if err != nil {
				return storeErr(err, "could not read catalog")
			}
			images := p.Images
			if images == nil {
				images = []string{}
			}
			mu.Lock()
			out[id] = &ProductSummary{ID: p.ID, Name: p.Name, Brand: p.Brand, Images: images}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func toView(o Order, products map[string]*ProductSummary) OrderView {
	items := make([]LineView, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, LineView{Line: l, Product: products[l.ProductID]})
	}
	return OrderView{
		ID:           o.ID,
		CustomerInfo: o.CustomerInfo,
		Items:        items,
		Total:        o.Total,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}
