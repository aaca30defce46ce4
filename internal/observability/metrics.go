package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the notification queue and its HTTP surface.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDuration         *prometheus.HistogramVec
	notificationsShownTotal     *prometheus.CounterVec
	notificationsDedupedTotal   *prometheus.CounterVec
	notificationsEvictedTotal   *prometheus.CounterVec
	notificationsDismissedTotal *prometheus.CounterVec
	notificationsActive         prometheus.Gauge
	audioPlayedTotal            *prometheus.CounterVec
	audioFailuresTotal          *prometheus.CounterVec
	subscriberDropsTotal        prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "toast_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsShownTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "notifications_shown_total",
				Help:      "Total number of new notifications added to the queue.",
			},
			[]string{"type"},
		),
		notificationsDedupedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "notifications_deduped_total",
				Help:      "Total number of show requests collapsed into an existing notification.",
			},
			[]string{"type"},
		),
		notificationsEvictedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "notifications_evicted_total",
				Help:      "Total number of notifications evicted to respect the capacity cap.",
			},
			[]string{"position"},
		),
		notificationsDismissedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "notifications_dismissed_total",
				Help:      "Total number of notifications removed from the queue by reason.",
			},
			[]string{"reason"},
		),
		notificationsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "toast_engine",
				Name:      "notifications_active",
				Help:      "Current number of notifications held by the queue.",
			},
		),
		audioPlayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "audio_played_total",
				Help:      "Total number of sound cues started by notification type.",
			},
			[]string{"type"},
		),
		audioFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "audio_failures_total",
				Help:      "Total number of swallowed audio failures by reason.",
			},
			[]string{"reason"},
		),
		subscriberDropsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "toast_engine",
				Name:      "subscriber_drops_total",
				Help:      "Total number of snapshots replaced before a slow subscriber read them.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationsShownTotal,
		m.notificationsDedupedTotal,
		m.notificationsEvictedTotal,
		m.notificationsDismissedTotal,
		m.notificationsActive,
		m.audioPlayedTotal,
		m.audioFailuresTotal,
		m.subscriberDropsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Long-lived streams and scrapes would skew the latency histogram.
		if path == "/metrics" || path == "/v1/notifications/stream" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncShown(notificationType string) {
	if m == nil {
		return
	}
	m.notificationsShownTotal.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

func (m *Metrics) IncDeduped(notificationType string) {
	if m == nil {
		return
	}
	m.notificationsDedupedTotal.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

func (m *Metrics) IncEvicted(position string) {
	if m == nil {
		return
	}
	m.notificationsEvictedTotal.WithLabelValues(normalizeLabel(position)).Inc()
}

func (m *Metrics) AddDismissed(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notificationsDismissedTotal.WithLabelValues(normalizeLabel(reason)).Add(float64(n))
}

func (m *Metrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.notificationsActive.Set(float64(n))
}

func (m *Metrics) IncAudioPlayed(soundType string) {
	if m == nil {
		return
	}
	m.audioPlayedTotal.WithLabelValues(normalizeLabel(soundType)).Inc()
}

func (m *Metrics) IncAudioFailure(reason string) {
	if m == nil {
		return
	}
	m.audioFailuresTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncSubscriberDrop() {
	if m == nil {
		return
	}
	m.subscriberDropsTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
