package observability

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsQueueCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncShown("ERROR")
	metrics.IncShown("error")
	metrics.IncDeduped("error")
	metrics.IncEvicted("top-right")
	metrics.AddDismissed("expired", 2)
	metrics.AddDismissed("cleared", 0)
	metrics.SetActive(4)
	metrics.IncAudioPlayed("info")
	metrics.IncAudioFailure("")
	metrics.IncSubscriberDrop()

	if got := testutil.ToFloat64(metrics.notificationsShownTotal.WithLabelValues("error")); got != 2 {
		t.Fatalf("notifications_shown_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsDedupedTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("notifications_deduped_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsEvictedTotal.WithLabelValues("top-right")); got != 1 {
		t.Fatalf("notifications_evicted_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsDismissedTotal.WithLabelValues("expired")); got != 2 {
		t.Fatalf("notifications_dismissed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsActive); got != 4 {
		t.Fatalf("notifications_active = %v, want 4", got)
	}
	if got := testutil.ToFloat64(metrics.audioPlayedTotal.WithLabelValues("info")); got != 1 {
		t.Fatalf("audio_played_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.audioFailuresTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("audio_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.subscriberDropsTotal); got != 1 {
		t.Fatalf("subscriber_drops_total = %v, want 1", got)
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncShown("info")
	metrics.IncEvicted("top-left")
	metrics.AddDismissed("manual", 1)
	metrics.SetActive(1)
	metrics.IncAudioFailure("load")
	if metrics.Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
