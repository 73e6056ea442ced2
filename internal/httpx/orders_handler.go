package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/orders"
	"github.com/ariefcatur/boutique-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderCache is the read-through cache behind GET /api/orders/{id}.
type OrderCache interface {
	Get(ctx context.Context, id string) (orders.OrderView, bool, error)
	// Set must not replace a view with a later UpdatedAt.
	Set(ctx context.Context, v orders.OrderView) error
	Invalidate(ctx context.Context, id string) error
}

// Idempotency guards POST /api/orders behind the Idempotency-Key header.
type Idempotency interface {
	Claim(ctx context.Context, key string) (redisx.ClaimState, string, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type OrdersHandler struct {
	Service *orders.Service
	Cache   OrderCache  // optional
	Idem    Idempotency // optional
	Logger  *zap.Logger
}

type placeOrderReq struct {
	CustomerInfo json.RawMessage  `json:"customer_info"`
	Items        []orders.Line    `json:"items"`
	Total        *decimal.Decimal `json:"total"`
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Post("/orders", h.placeOrder)
	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}", h.updateStatus)
	})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := r.Header.Get("Idempotency-Key")
	claimed := false
	if key != "" && h.Idem != nil {
		state, orderID, err := h.Idem.Claim(ctx, key)
		switch {
		case err != nil:
			// Redis is an optimisation here; carry on without it
			h.Logger.Warn("idempotency claim failed", zap.String("key", key), zap.Error(err))
		case state == redisx.InFlight:
			writeError(w, r, h.Logger, apperr.New(apperr.CodeConflict, "a request with this Idempotency-Key is in progress"))
			return
		case state == redisx.Done:
			view, err := h.Service.GetOrder(ctx, orderID)
			if err != nil {
				writeError(w, r, h.Logger, err)
				return
			}
			writeJSON(w, http.StatusOK, view)
			return
		default:
			claimed = true
		}
	}

	o, err := h.Service.PlaceOrder(ctx, orders.PlaceOrderInput{
		CustomerInfo: req.CustomerInfo,
		Lines:        req.Items,
		Total:        req.Total,
	})
	if claimed {
		bg := context.WithoutCancel(ctx)
		var ierr error
		if err != nil {
			ierr = h.Idem.Release(bg, key)
		} else {
			ierr = h.Idem.Complete(bg, key, o.ID)
		}
		if ierr != nil {
			h.Logger.Warn("idempotency bookkeeping failed", zap.String("key", key), zap.Error(ierr))
		}
	}
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	// same shape as the replay and GET responses
	view, err := h.Service.View(ctx, o)
	if err != nil {
		h.Logger.Warn("order view without catalog data", zap.String("order_id", o.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if v, ok, err := h.Cache.Get(ctx, id); err != nil {
			h.Logger.Warn("order cache read", zap.String("order_id", id), zap.Error(err))
		} else if ok {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, v)
			return
		}
	}

	view, err := h.Service.GetOrder(ctx, id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, view); err != nil {
			h.Logger.Warn("order cache write", zap.String("order_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateOrderStatus(ctx, id, req.Status)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	view, verr := h.Service.View(ctx, o)
	if h.Cache != nil {
		h.refreshCache(context.WithoutCancel(ctx), view, verr)
	}
	writeJSON(w, http.StatusOK, view)
}

// refreshCache writes the new view through. The cache keeps the newest
// version, so a concurrent read-through of the old state cannot win.
// Without a complete view the entry is dropped instead.
func (h *OrdersHandler) refreshCache(ctx context.Context, view orders.OrderView, viewErr error) {
	if viewErr == nil {
		err := h.Cache.Set(ctx, view)
		if err == nil {
			return
		}
		h.Logger.Warn("order cache write", zap.String("order_id", view.ID), zap.Error(err))
	}
	if err := h.Cache.Invalidate(ctx, view.ID); err != nil {
		h.Logger.Warn("order cache invalidate", zap.String("order_id", view.ID), zap.Error(err))
	}
}
