// Package metrics exposes the application's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is what the services and HTTP layer report to.
type Recorder interface {
	SnapshotLoaded(d time.Duration, err error)
	OverviewBuilt(expenses, revenues, quarantined int)
	Mutation(kind, op string, err error)
	MirrorRun(d time.Duration, err error)
	HTTPRequest(method, route string, status int, d time.Duration)
}

type PrometheusMetrics struct {
	snapshotLoads    *prometheus.CounterVec
	snapshotDuration prometheus.Histogram
	overviewBuilds   prometheus.Counter
	transactions     *prometheus.GaugeVec
	quarantined      prometheus.Gauge
	mutations        *prometheus.CounterVec
	mirrorRuns       *prometheus.CounterVec
	mirrorDuration   prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the collectors on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		snapshotLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerly_snapshot_loads_total",
				Help: "Backend snapshot loads by result",
			},
			[]string{"result"},
		),
		snapshotDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledgerly_snapshot_load_duration_seconds",
				Help:    "Time to fetch expenses, revenues and accounts",
				Buckets: prometheus.DefBuckets,
			},
		),
		overviewBuilds: f.NewCounter(
			prometheus.CounterOpts{
				Name: "ledgerly_overview_builds_total",
				Help: "Month overviews computed (cache misses)",
			},
		),
		transactions: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledgerly_transactions",
				Help: "Transactions in the last built overview",
			},
			[]string{"type"},
		),
		quarantined: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledgerly_quarantined_records",
				Help: "Records left out of the last overview because of an unreadable timestamp",
			},
		),
		mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerly_mutations_total",
				Help: "Transaction writes by type, operation and result",
			},
			[]string{"type", "op", "result"},
		),
		mirrorRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerly_mirror_runs_total",
				Help: "Mirror runs by result",
			},
			[]string{"result"},
		),
		mirrorDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledgerly_mirror_duration_seconds",
				Help:    "Duration of mirror runs",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerly_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgerly_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *PrometheusMetrics) SnapshotLoaded(d time.Duration, err error) {
	m.snapshotLoads.WithLabelValues(result(err)).Inc()
	m.snapshotDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) OverviewBuilt(expenses, revenues, quarantined int) {
	m.overviewBuilds.Inc()
	m.transactions.WithLabelValues("expense").Set(float64(expenses))
	m.transactions.WithLabelValues("revenue").Set(float64(revenues))
	m.quarantined.Set(float64(quarantined))
}

func (m *PrometheusMetrics) Mutation(kind, op string, err error) {
	m.mutations.WithLabelValues(kind, op, result(err)).Inc()
}

func (m *PrometheusMetrics) MirrorRun(d time.Duration, err error) {
	m.mirrorRuns.WithLabelValues(result(err)).Inc()
	m.mirrorDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) HTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Noop discards everything.
type Noop struct{}

func (Noop) SnapshotLoaded(time.Duration, error) {}
func (Noop) OverviewBuilt(int, int, int) {}
func (Noop) Mutation(string, string, error) {}
func (Noop) MirrorRun(time.Duration, error) {}
func (Noop) HTTPRequest(string, string, int, time.Duration) {}

var (
	_ Recorder = (*PrometheusMetrics)(nil)
	_ Recorder = Noop{}
)
