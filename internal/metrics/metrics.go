// Package metrics содержит метрики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит счётчики покупок, пополнений, HTTP-запросов и сверки журнала.
// Нулевой *Metrics допустим и ничего не записывает.
type Metrics struct {
	registry         *prometheus.Registry
	purchases        *prometheus.CounterVec
	topUps           *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	ledgerMismatches prometheus.Gauge
}

// New создаёт реестр с коллекторами процесса, рантайма Go и сервиса.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_purchases_total",
			Help: "Course purchase attempts by outcome.",
		}, []string{"result"}),
		topUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_topups_total",
			Help: "Wallet top-up workflow events by action.",
		}, []string{"action"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ledgerMismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_balance_mismatches",
			Help: "Accounts whose balance differs from the sum of completed transactions at the last audit.",
		}),
	}
	reg.MustRegister(m.purchases, m.topUps, m.httpDuration, m.ledgerMismatches)
	return m
}

// Handler отдаёт метрики реестра в текстовом формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncPurchase увеличивает счётчик покупок с указанным исходом.
func (m *Metrics) IncPurchase(result string) {
	if m == nil || m.purchases == nil {
		return
	}
	m.purchases.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncTopUp увеличивает счётчик событий пополнения.
func (m *Metrics) IncTopUp(action string) {
	if m == nil || m.topUps == nil {
		return
	}
	m.topUps.WithLabelValues(normalizeLabel(action)).Inc()
}

// ObserveHTTP записывает длительность обработки запроса.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// SetLedgerMismatches сохраняет число счетов с расхождением по итогам сверки.
func (m *Metrics) SetLedgerMismatches(n int) {
	if m == nil || m.ledgerMismatches == nil {
		return
	}
	m.ledgerMismatches.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
