package orders

import (
	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	placed        prometheus.Counter
	rejected      *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	restocked     prometheus.Counter
	rollbacks     *prometheus.CounterVec
}

// NewMetrics registers the order counters on reg. A nil reg gives
// unregistered counters, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		placed: f.NewCounter(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders accepted and persisted.",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Orders refused, by error code.",
		}, []string{"code"}),
		statusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_status_changes_total",
			Help: "Order status updates, by target status.",
		}, []string{"status"}),
		restocked: f.NewCounter(prometheus.CounterOpts{
			Name: "stock_restocked_units_total",
			Help: "Units given back to stock by cancellations.",
		}),
		rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_rollbacks_total",
			Help: "Compensations run after a partial failure, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) rejectedWith(err error) {
	code := string(apperr.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	m.rejected.WithLabelValues(code).Inc()
}
