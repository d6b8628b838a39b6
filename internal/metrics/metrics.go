// Package metrics exposes observational Prometheus instruments fed by
// the boundary. Nothing in internal/engine, internal/book, or
// internal/accounts reads these back; they exist purely for operators.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every instrument fenrir exports. Callers register
// it once against a prometheus.Registerer (or the default registry)
// and feed it from the boundary after each request.
type Collectors struct {
	OrdersTotal      *prometheus.CounterVec
	TradesTotal      prometheus.Counter
	RejectionsTotal  *prometheus.CounterVec
	CancelsTotal     prometheus.Counter
	OrderbookDepth   *prometheus.GaugeVec
	SettlementErrors prometheus.Counter
}

// New constructs the collector set without registering it.
func New() *Collectors {
	c := &Collectors{}

	c.OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fenrir",
			Subsystem: "orders",
			Name:      "total",
			Help:      "Total number of orders submitted, by side and kind.",
		},
		[]string{"side", "kind"},
	)

	c.TradesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fenrir",
			Subsystem: "matching",
			Name:      "trades_total",
			Help:      "Total number of fills produced by the matching engine.",
		},
	)

	c.RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fenrir",
			Subsystem: "orders",
			Name:      "rejections_total",
			Help:      "Total number of orders rejected, by error kind.",
		},
		[]string{"kind"},
	)

	c.CancelsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fenrir",
			Subsystem: "orders",
			Name:      "cancels_total",
			Help:      "Total number of resting orders cancelled.",
		},
	)

	c.OrderbookDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fenrir",
			Subsystem: "orderbook",
			Name:      "depth",
			Help:      "Number of resting price levels, by side.",
		},
		[]string{"side"},
	)

	c.SettlementErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fenrir",
			Subsystem: "accounts",
			Name:      "settlement_errors_total",
			Help:      "Total number of settlement calls that returned a refund-underflow error.",
		},
	)

	return c
}

// MustRegister registers every instrument against reg, panicking on a
// duplicate-registration error (a programmer error, not a runtime one).
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.OrdersTotal,
		c.TradesTotal,
		c.RejectionsTotal,
		c.CancelsTotal,
		c.OrderbookDepth,
		c.SettlementErrors,
	)
}
