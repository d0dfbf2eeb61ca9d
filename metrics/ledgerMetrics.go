package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fund_ledger"

// LedgerMetrics is a ledger.Notifier that counts events and fund movements,
// plus the HTTP request metrics of the REST surface.
type LedgerMetrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	amounts         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rejectedActions *prometheus.CounterVec
}

func New() *LedgerMetrics {
	m := &LedgerMetrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Ledger notifications by kind.",
		}, []string{"kind"}),
		amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moved_amount_total",
			Help:      "Fund amounts allocated, released and recovered, in minor units.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rejectedActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_operations_total",
			Help:      "Ledger operations refused, by error kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.events,
		m.amounts,
		m.httpRequests,
		m.httpDuration,
		m.rejectedActions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *LedgerMetrics) Notify(ev models.LedgerEvent) {
	m.events.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case models.EventFundsAllocated, models.EventFundsReleased, models.EventEmergencyWithdrawal:
		m.amounts.WithLabelValues(string(ev.Kind)).Add(float64(ev.Amount))
	}
}

// ObserveRequest records one served HTTP request.
func (m *LedgerMetrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRejection counts a refused ledger operation by its error kind.
func (m *LedgerMetrics) ObserveRejection(kind string) {
	m.rejectedActions.WithLabelValues(kind).Inc()
}

// RegisterLedgerGauges exposes the ledger aggregates, read at scrape time.
func (m *LedgerMetrics) RegisterLedgerGauges(l *ledger.Ledger) {
	gauge := func(name, help string, read func(models.LedgerCounters) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, func() float64 {
			return read(l.Counters())
		})
	}
	m.registry.MustRegister(
		gauge("allocated_funds", "Funds currently allocated, in minor units.", func(c models.LedgerCounters) float64 { return float64(c.AllocatedFunds) }),
		gauge("released_funds", "Funds released to vendors, in minor units.", func(c models.LedgerCounters) float64 { return float64(c.ReleasedFunds) }),
		gauge("transactions", "Length of the transaction log.", func(c models.LedgerCounters) float64 { return float64(c.LastTransactionID) }),
	)
}

func (m *LedgerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *LedgerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
