package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	generationTotal *prometheus.CounterVec
	broadcastTotal  *prometheus.CounterVec
	subscriberGauge prometheus.GaugeFunc
}

// NewMetricsService registers core Prometheus collectors. subscriberCount may
// be nil when the event registry is not wired.
func NewMetricsService(subscriberCount func() int) *MetricsService {
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

	generationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_generation_total",
		Help: "Document generation attempts by stage and outcome",
	}, []string{"stage", "outcome"})

	broadcastTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_broadcast_total",
		Help: "Lifecycle event deliveries by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	subscribers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "event_subscribers",
		Help: "Open event stream subscriptions",
	}, func() float64 {
		if subscriberCount == nil {
			return 0
		}
		return float64(subscriberCount())
	})

	registry.MustRegister(requestDuration, requestTotal, generationTotal, broadcastTotal, goroutines, subscribers)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		generationTotal: generationTotal,
		broadcastTotal:  broadcastTotal,
		subscriberGauge: subscribers,
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

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// ObserveGeneration records one pipeline stage attempt.
func (m *MetricsService) ObserveGeneration(stage string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.generationTotal.With(prometheus.Labels{"stage": stage, "outcome": outcome}).Inc()
}

// ObserveBroadcast records one fan-out's delivery counts.
func (m *MetricsService) ObserveBroadcast(delivered, dropped int) {
	if m == nil {
		return
	}
	m.broadcastTotal.With(prometheus.Labels{"outcome": "delivered"}).Add(float64(delivered))
	if dropped > 0 {
		m.broadcastTotal.With(prometheus.Labels{"outcome": "dropped"}).Add(float64(dropped))
	}
}
