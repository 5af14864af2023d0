package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ehr/slotcal/internal/domain/availability"
)

// AvailabilityMetrics exposes month cache and build counters. It implements
// availability.Observer and is nil-safe.
type AvailabilityMetrics struct {
	cacheLookups  *prometheus.CounterVec
	buildDuration prometheus.Histogram
	slotsTotal    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

var _ availability.Observer = (*AvailabilityMetrics)(nil)

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotcal",
			Subsystem: "month_cache",
			Name:      "lookups_total",
			Help:      "Month cache lookups by result",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slotcal",
			Subsystem: "month_cache",
			Name:      "build_duration_seconds",
			Help:      "Time spent building one month index",
			Buckets:   prometheus.DefBuckets,
		}),
		slotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotcal",
			Subsystem: "builder",
			Name:      "slots_total",
			Help:      "Slots seen by month builds, by outcome",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotcal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slotcal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.cacheLookups, m.buildDuration, m.slotsTotal, m.httpRequests, m.httpLatency)
	return m
}

func (m *AvailabilityMetrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *AvailabilityMetrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *AvailabilityMetrics) CacheCollision() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("collision").Inc()
}

func (m *AvailabilityMetrics) MonthBuilt(elapsed time.Duration, stats availability.BuildStats) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(elapsed.Seconds())
	m.slotsTotal.WithLabelValues("indexed").Add(float64(stats.Indexed))
	m.slotsTotal.WithLabelValues("not_free").Add(float64(stats.NotFree))
	m.slotsTotal.WithLabelValues("out_of_month").Add(float64(stats.OutOfMonth))
	m.slotsTotal.WithLabelValues("malformed_timestamp").Add(float64(stats.MalformedTimestamp))
	m.slotsTotal.WithLabelValues("unresolved_schedule").Add(float64(stats.UnresolvedSchedule))
	m.slotsTotal.WithLabelValues("degraded").Add(float64(stats.Degraded))
}

func (m *AvailabilityMetrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}
