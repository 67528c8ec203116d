package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 注文フローのメトリクス
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated  prometheus.Counter
	OrderFailures  *prometheus.CounterVec // kind=validation|persistence|timeout
	Compensations  *prometheus.CounterVec // result=ok|failed
	StepDuration   *prometheus.HistogramVec
	CartOperations *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_created_total",
			Help:      "Orders persisted with all of their items.",
		}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "order_failures_total",
			Help:      "Order creation failures by kind.",
		}, []string{"kind"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "order_compensations_total",
			Help:      "Compensating actions run after a failed order step.",
		}, []string{"result"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "order_step_duration_seconds",
			Help:      "Duration of each order persistence step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		CartOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cart_operations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		m.OrdersCreated,
		m.OrderFailures,
		m.Compensations,
		m.StepDuration,
		m.CartOperations,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
