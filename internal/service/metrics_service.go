package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// caching and the report pipeline. All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	reportsSubmitted  *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	evidenceUploads   *prometheus.CounterVec
	subscribers       prometheus.Gauge
	eventsBroadcast   *prometheus.CounterVec
	deliveriesDropped prometheus.Counter
	outboundMessages  *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		reportsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reports_submitted_total",
			Help: "Reports accepted per intake channel",
		}, []string{"channel"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_status_transitions_total",
			Help: "Committed report status transitions",
		}, []string{"from", "to"}),
		evidenceUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_uploads_total",
			Help: "Evidence upload attempts by outcome",
		}, []string{"result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_subscribers",
			Help: "Currently connected push subscribers",
		}),
		eventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_events_total",
			Help: "Events broadcast to push subscribers",
		}, []string{"type"}),
		deliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_deliveries_dropped_total",
			Help: "Push deliveries skipped because the subscriber was closed or saturated",
		}),
		outboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_outbound_messages_total",
			Help: "Outbound messaging channel deliveries by kind and outcome",
		}, []string{"kind", "result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the public endpoint rate limiter",
		}, []string{"scope"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.reportsSubmitted, m.statusTransitions, m.evidenceUploads,
		m.subscribers, m.eventsBroadcast, m.deliveriesDropped,
		m.outboundMessages, m.rateLimited,
		goroutines,
	)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ReportSubmitted counts an accepted report for the intake channel.
func (m *MetricsService) ReportSubmitted(channel string) {
	if m == nil {
		return
	}
	m.reportsSubmitted.WithLabelValues(channel).Inc()
}

// StatusTransition counts a committed status change.
func (m *MetricsService) StatusTransition(from, to models.ReportStatus) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// EvidenceUpload counts an evidence attempt by result label.
func (m *MetricsService) EvidenceUpload(result string) {
	if m == nil {
		return
	}
	m.evidenceUploads.WithLabelValues(result).Inc()
}

// SetSubscribers updates the connected subscriber gauge.
func (m *MetricsService) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// EventBroadcast counts one broadcast of the given event type.
func (m *MetricsService) EventBroadcast(eventType models.EventType) {
	if m == nil {
		return
	}
	m.eventsBroadcast.WithLabelValues(string(eventType)).Inc()
}

// DeliveryDropped counts a skipped push delivery.
func (m *MetricsService) DeliveryDropped() {
	if m == nil {
		return
	}
	m.deliveriesDropped.Inc()
}

// OutboundMessage counts an outbound channel delivery attempt.
func (m *MetricsService) OutboundMessage(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.outboundMessages.WithLabelValues(kind, result).Inc()
}

// RateLimited counts a rejected request for the limiter scope.
func (m *MetricsService) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}
