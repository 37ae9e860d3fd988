package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type saleMetrics struct {
	requests      *prometheus.CounterVec
	errors        *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	contributions *prometheus.CounterVec
	tokensSold    prometheus.Counter
	bonusIssued   prometheus.Counter
}

var (
	saleMetricsOnce sync.Once
	saleRegistry    *saleMetrics
)

// SaleMetrics returns the lazily-initialised metrics registry used to record
// RPC and ledger activity.
func SaleMetrics() *saleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &saleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "saleledger",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "saleledger",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "saleledger",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "saleledger",
				Subsystem: "sale",
				Name:      "contributions_total",
				Help:      "Accepted contributions segmented by asset.",
			}, []string{"asset"}),
			tokensSold: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "saleledger",
				Subsystem: "sale",
				Name:      "tokens_sold_total",
				Help:      "Sale tokens issued (base allocations plus bonuses), in whole tokens.",
			}),
			bonusIssued: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "saleledger",
				Subsystem: "sale",
				Name:      "bonus_issued_total",
				Help:      "Bonus tokens escrowed for vesting, in whole tokens.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.requests,
			saleRegistry.errors,
			saleRegistry.latency,
			saleRegistry.contributions,
			saleRegistry.tokensSold,
			saleRegistry.bonusIssued,
		)
	})
	return saleRegistry
}

// ObserveRequest records one handled RPC request.
func (m *saleMetrics) ObserveRequest(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(seconds)
}

// ObserveError records one failed RPC request by error code.
func (m *saleMetrics) ObserveError(method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, code).Inc()
}

// ObserveContribution records an accepted contribution and the whole-token
// amounts it issued.
func (m *saleMetrics) ObserveContribution(asset string, tokensSold, bonus float64) {
	if m == nil {
		return
	}
	m.contributions.WithLabelValues(asset).Inc()
	if tokensSold > 0 {
		m.tokensSold.Add(tokensSold)
	}
	if bonus > 0 {
		m.bonusIssued.Add(bonus)
	}
}
