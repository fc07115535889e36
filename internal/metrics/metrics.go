// Package metrics holds the Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Registry owns these metrics and backs the /metrics endpoint.
	Registry *prometheus.Registry

	requestDuration       *prometheus.HistogramVec
	schedulingConflicts   prometheus.Counter
	automaticTransactions *prometheus.CounterVec
	calendarSync          *prometheus.CounterVec
	cacheLookups          *prometheus.CounterVec
}

// Snapshot is a JSON view of the domain counters.
type Snapshot struct {
	SchedulingConflicts   float64            `json:"scheduling_conflicts"`
	AutomaticTransactions map[string]float64 `json:"automatic_transactions"`
	CalendarSync          map[string]float64 `json:"calendar_sync"`
	CacheHitRate          float64            `json:"cache_hit_rate"`
}

// New creates a private registry and registers all collectors in it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tattootrack_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		schedulingConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tattootrack_scheduling_conflicts_total",
				Help: "Appointment writes rejected for overlapping an existing booking.",
			},
		),
		automaticTransactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tattootrack_automatic_transactions_total",
				Help: "Income entries generated by appointment rules.",
			},
			[]string{"rule"},
		),
		calendarSync: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tattootrack_calendar_sync_total",
				Help: "Google Calendar sync attempts by operation and result.",
			},
			[]string{"operation", "result"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tattootrack_cache_lookups_total",
				Help: "Month calendar cache lookups by result.",
			},
			[]string{"result"},
		),
	}
}

// ObserveRequest records the duration of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncrConflict counts a rejected booking.
func (m *Metrics) IncrConflict() {
	if m == nil {
		return
	}
	m.schedulingConflicts.Inc()
}

// IncrAutomaticTransaction counts an entry produced by the named rule.
func (m *Metrics) IncrAutomaticTransaction(rule string) {
	if m == nil {
		return
	}
	m.automaticTransactions.WithLabelValues(rule).Inc()
}

// IncrCalendarSync counts a calendar push or removal.
func (m *Metrics) IncrCalendarSync(operation, result string) {
	if m == nil {
		return
	}
	m.calendarSync.WithLabelValues(operation, result).Inc()
}

// IncrCacheHit counts a month cache hit.
func (m *Metrics) IncrCacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// IncrCacheMiss counts a month cache miss.
func (m *Metrics) IncrCacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		SchedulingConflicts:   counterValue(m.schedulingConflicts),
		AutomaticTransactions: map[string]float64{},
		CalendarSync:          map[string]float64{},
	}
	for _, rule := range []string{"deposit", "completion"} {
		snap.AutomaticTransactions[rule] = counterValue(m.automaticTransactions.WithLabelValues(rule))
	}
	for _, op := range []string{"upsert", "delete"} {
		for _, result := range []string{"success", "error"} {
			snap.CalendarSync[op+"_"+result] = counterValue(m.calendarSync.WithLabelValues(op, result))
		}
	}
	hits := counterValue(m.cacheLookups.WithLabelValues("hit"))
	misses := counterValue(m.cacheLookups.WithLabelValues("miss"))
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	return snap
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
