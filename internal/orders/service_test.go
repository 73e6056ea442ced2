package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/catalog"
	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/ariefcatur/boutique-orders/internal/memstore"
	"github.com/ariefcatur/boutique-orders/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []events.Envelope
}

func (r *recorder) Publish(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, env)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.EventType)
	}
	return out
}

// flakyCatalog fails stock deltas of the given sign on one product.
type flakyCatalog struct {
	*memstore.Catalog
	failProduct string
	failSign    int
}

func (f *flakyCatalog) ApplyStockDelta(ctx context.Context, productID, size string, delta int) error {
	if productID == f.failProduct && delta*f.failSign > 0 {
		return errors.New("connection reset by peer")
	}
	return f.Catalog.ApplyStockDelta(ctx, productID, size, delta)
}

type brokenLedger struct{ *memstore.Ledger }

func (brokenLedger) CreateOrder(context.Context, orders.Order) (orders.Order, error) {
	return orders.Order{}, errors.New("disk full")
}

type fixture struct {
	cat    *memstore.Catalog
	ledger *memstore.Ledger
	events *recorder
	svc    *orders.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{cat: memstore.NewCatalog(), ledger: memstore.NewLedger(), events: &recorder{}}
	f.cat.Seed(catalog.Product{
		ID: "P", Name: "Robe lin", Brand: "Maison", Category: catalog.CategoryWomen,
		Images: []string{"https://img.example/upload/v1/robe.jpg"},
		Sizes:  []catalog.SizeStock{{Size: "M", Stock: 2}, {Size: "L", Stock: 5}},
	})
	f.cat.Seed(catalog.Product{
		ID: "Q", Name: "Body coton", Brand: "Petit", Category: catalog.CategoryBaby,
		Sizes: []catalog.SizeStock{{Size: "L", Stock: 0}, {Size: "S", Stock: 3}},
	})
	f.svc = orders.NewService(f.cat, f.ledger, orders.WithEvents(f.events, "order-api-test"))
	return f
}

func (f *fixture) stock(t *testing.T, id, size string) int {
	t.Helper()
	p, err := f.cat.GetProduct(context.Background(), id)
	require.NoError(t, err)
	s, ok := p.Size(size)
	require.True(t, ok)
	return s.Stock
}

func input(lines ...orders.Line) orders.PlaceOrderInput {
	total := decimal.RequireFromString("59.90")
	return orders.PlaceOrderInput{
		CustomerInfo: json.RawMessage(`{"name":"Claire","city":"Lyon"}`),
		Lines:        lines,
		Total:        &total,
	}
}

func line(product, size string, qty int) orders.Line {
	return orders.Line{ProductID: product, Size: size, Quantity: qty, Name: "item " + product}
}

func TestPlaceOrder_TakesStockThenRefuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 2)))
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 0, f.stock(t, "P", "M"))

	_, err = f.svc.PlaceOrder(ctx, input(line("P", "M", 1)))
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))
	assert.Contains(t, err.Error(), "in size M")
	assert.Equal(t, []string{events.EventOrderPlaced}, f.events.types())
}

func TestUpdateOrderStatus_CancelRestocksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 2)))
	require.NoError(t, err)

	got, err := f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, 2, f.stock(t, "P", "M"))

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, "P", "M"))
}

func TestPlaceOrder_AtomicRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1), line("Q", "L", 1)))
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))
	assert.Equal(t, 2, f.stock(t, "P", "M"))
	assert.Equal(t, 0, f.stock(t, "Q", "L"))

	list, _ := f.ledger.ListOrders(ctx)
	assert.Empty(t, list)
}

func TestUpdateOrderStatus_Unknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1)))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "inconnu")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidStatus))

	stored, _ := f.ledger.GetOrder(ctx, o.ID)
	assert.Equal(t, orders.StatusPending, stored.Status)
}

func TestUpdateOrderStatus_MissingOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateOrderStatus(context.Background(), "nope", "confirmé")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestUpdateOrderStatus_NonCancelTransitionsKeepStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "L", 3)))
	require.NoError(t, err)

	for _, st := range []string{"confirmé", "en livraison", "livré", "retour", "en attente"} {
		_, err := f.svc.UpdateOrderStatus(ctx, o.ID, st)
		require.NoError(t, err, st)
		assert.Equal(t, 2, f.stock(t, "P", "L"), st)
	}
}

func TestUpdateOrderStatus_CancelledIsFinal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1)))
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t, "P", "M"))

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, "P", "M"))

	for _, st := range []string{"confirmé", "en attente", "livré"} {
		_, err = f.svc.UpdateOrderStatus(ctx, o.ID, st)
		assert.True(t, apperr.IsCode(err, apperr.CodeInvalidStatus), st)
		_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
		require.NoError(t, err)
	}

	got, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, 2, f.stock(t, "P", "M"))
}

func TestPlaceOrder_SumsDemandPerSize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1), line("P", "M", 2)))
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))
	assert.Equal(t, 2, f.stock(t, "P", "M"))
}

func TestPlaceOrder_IncompleteData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	negative := decimal.NewFromInt(-1)
	subCent := decimal.RequireFromString("10.005")

	cases := map[string]orders.PlaceOrderInput{
		"no customer": {Lines: []orders.Line{line("P", "M", 1)}, Total: input().Total},
		"null customer": {
			CustomerInfo: json.RawMessage("null"),
			Lines:        []orders.Line{line("P", "M", 1)},
			Total:        input().Total,
		},
		"no lines":       input(),
		"no total":       {CustomerInfo: json.RawMessage(`{}`), Lines: []orders.Line{line("P", "M", 1)}},
		"negative total": {CustomerInfo: json.RawMessage(`{}`), Lines: []orders.Line{line("P", "M", 1)}, Total: &negative},
		"sub-cent total": {CustomerInfo: json.RawMessage(`{}`), Lines: []orders.Line{line("P", "M", 1)}, Total: &subCent},
		"zero quantity":  input(line("P", "M", 0)),
		"no size":        input(line("P", "", 1)),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(ctx, in)
			assert.True(t, apperr.IsCode(err, apperr.CodeIncompleteData), "got %v", err)
		})
	}
	assert.Equal(t, 2, f.stock(t, "P", "M"))
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), input(orders.Line{ProductID: "ghost", Size: "M", Quantity: 1, Name: "Pull"}))
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
	assert.Contains(t, err.Error(), "Pull")
}

func TestPlaceOrder_UnknownSizeIsInsufficient(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), input(line("P", "XXL", 1)))
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))
}

func TestPlaceOrder_RollsBackWhenDecrementFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	flaky := &flakyCatalog{Catalog: f.cat, failProduct: "Q", failSign: -1}
	svc := orders.NewService(flaky, f.ledger)

	_, err := svc.PlaceOrder(ctx, input(line("P", "M", 2), line("Q", "S", 1)))
	assert.True(t, apperr.IsCode(err, apperr.CodeStoreUnavailable))
	assert.Equal(t, 2, f.stock(t, "P", "M"))
	assert.Equal(t, 3, f.stock(t, "Q", "S"))
}

func TestPlaceOrder_RollsBackWhenLedgerFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := orders.NewService(f.cat, brokenLedger{f.ledger})

	_, err := svc.PlaceOrder(ctx, input(line("P", "M", 1), line("Q", "S", 2)))
	assert.True(t, apperr.IsCode(err, apperr.CodeStoreUnavailable))
	assert.Equal(t, 2, f.stock(t, "P", "M"))
	assert.Equal(t, 3, f.stock(t, "Q", "S"))
}

func TestUpdateOrderStatus_RestockFailureRevertsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1), line("Q", "S", 1)))
	require.NoError(t, err)

	flaky := &flakyCatalog{Catalog: f.cat, failProduct: "Q", failSign: 1}
	svc := orders.NewService(flaky, f.ledger)

	_, err = svc.UpdateOrderStatus(ctx, o.ID, "annulé")
	assert.True(t, apperr.IsCode(err, apperr.CodeStoreUnavailable))
	assert.Equal(t, 1, f.stock(t, "P", "M"))
	assert.Equal(t, 2, f.stock(t, "Q", "S"))

	stored, _ := f.ledger.GetOrder(ctx, o.ID)
	assert.Equal(t, orders.StatusPending, stored.Status)
}

func TestUpdateOrderStatus_CancelSkipsDeletedProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1), line("Q", "S", 1)))
	require.NoError(t, err)
	_, err = f.cat.DeleteProduct(ctx, "Q")
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, "P", "M"))
}

func TestPlaceOrder_NoOversellUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var placed, refused atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(ctx, input(line("P", "L", 1)))
			switch {
			case err == nil:
				placed.Add(1)
			case apperr.IsCode(err, apperr.CodeInsufficientStock):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, placed.Load())
	assert.EqualValues(t, 35, refused.Load())
	assert.Equal(t, 0, f.stock(t, "P", "L"))
}

func TestUpdateOrderStatus_ConcurrentCancelRestocksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "L", 4)))
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t, "P", "L"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, f.stock(t, "P", "L"))
}

func TestGetOrder_EnrichesAndToleratesDeletedProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1), line("Q", "S", 1)))
	require.NoError(t, err)
	_, err = f.cat.DeleteProduct(ctx, "Q")
	require.NoError(t, err)

	view, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	require.NotNil(t, view.Items[0].Product)
	assert.Equal(t, "Robe lin", view.Items[0].Product.Name)
	assert.Equal(t, []string{"https://img.example/upload/v1/robe.jpg"}, view.Items[0].Product.Images)

	assert.Nil(t, view.Items[1].Product)
	assert.Equal(t, "item Q", view.Items[1].Name)
}

func TestListOrders_NewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1)))
	require.NoError(t, err)
	second, err := f.svc.PlaceOrder(ctx, input(line("P", "L", 1)))
	require.NoError(t, err)

	list, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.False(t, list[0].CreatedAt.Before(list[1].CreatedAt))
}

func TestUpdateOrderStatus_PublishesChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1)))
	require.NoError(t, err)
	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
	require.NoError(t, err)

	require.Equal(t, []string{events.EventOrderPlaced, events.EventOrderStatusChanged}, f.events.types())
	payload, err := events.Decode[events.OrderStatusChangedPayload](f.events.got[1])
	require.NoError(t, err)
	assert.Equal(t, "en attente", payload.From)
	assert.Equal(t, "annulé", payload.To)
	assert.True(t, payload.Restocked)
}

func TestUpdateOrderStatus_AdminEditDoesNotResetStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := catalog.NewService(f.cat, nil, nil, "order-api-test")

	loaded, err := admin.Get(ctx, "P")
	require.NoError(t, err)

	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 2)))
	require.NoError(t, err)
	require.Equal(t, 0, f.stock(t, "P", "M"))

	// edit made from the form loaded before the order
	loaded.Description = "Lin lavé, coupe droite"
	_, err = admin.Update(ctx, "P", loaded)
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, "P", "M"))

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, "annulé")
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, "P", "M"))
	assert.Equal(t, 5, f.stock(t, "P", "L"))
}

func TestView_MatchesGetOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.PlaceOrder(ctx, input(line("P", "M", 1), line("Q", "S", 1)))
	require.NoError(t, err)

	view, err := f.svc.View(ctx, o)
	require.NoError(t, err)
	stored, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, view)
	assert.Equal(t, "Maison", view.Items[0].Product.Brand)
}
