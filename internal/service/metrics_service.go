package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation on a private
// registry: HTTP request metrics, database query timing, and duty workflow
// counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	picksTotal      prometheus.Counter
	releasesTotal   prometheus.Counter
	confirmations   prometheus.Counter
	autoAssigned    prometheus.Counter
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	picksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duty_picks_total",
		Help: "Total successful duty picks",
	})
	releasesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duty_releases_total",
		Help: "Total successful duty releases",
	})
	confirmations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duty_confirmations_total",
		Help: "Total duty selection confirmations",
	})
	autoAssigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duty_auto_assigned_slots_total",
		Help: "Total slots filled by auto-assignment passes",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, picksTotal, releasesTotal, confirmations, autoAssigned, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		dbQueryDuration: dbQueryDuration,
		picksTotal:      picksTotal,
		releasesTotal:   releasesTotal,
		confirmations:   confirmations,
		autoAssigned:    autoAssigned,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordPick counts a successful duty pick.
func (m *MetricsService) RecordPick() {
	if m != nil {
		m.picksTotal.Inc()
	}
}

// RecordRelease counts a successful duty release.
func (m *MetricsService) RecordRelease() {
	if m != nil {
		m.releasesTotal.Inc()
	}
}

// RecordConfirmation counts a duty selection confirmation.
func (m *MetricsService) RecordConfirmation() {
	if m != nil {
		m.confirmations.Inc()
	}
}

// RecordAutoAssigned counts slots filled by an auto-assignment pass.
func (m *MetricsService) RecordAutoAssigned(count int) {
	if m != nil && count > 0 {
		m.autoAssigned.Add(float64(count))
	}
}
