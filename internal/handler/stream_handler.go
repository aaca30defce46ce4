package handler

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	go_json "github.com/goccy/go-json"
	"github.com/kursadbilgin/toast-engine/internal/audio"
	"github.com/kursadbilgin/toast-engine/internal/domain"
	"go.uber.org/zap"
)

const streamHeartbeatInterval = 25 * time.Second

const (
	eventNotifications = "notifications"
	eventSound         = "sound"
)

// StreamNotifications streams queue snapshots and sound cues as server-sent
// events until the client goes away or the service closes.
func (h *NotificationHandler) StreamNotifications(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	updates, unsubscribe := h.service.Subscribe()
	cues, unsubscribeCues := h.service.SubscribeCues()
	logger := h.logger.With(zap.String("remoteIp", c.IP()))
	interval := h.heartbeat

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		defer unsubscribeCues()

		heartbeat := time.NewTicker(interval)
		defer heartbeat.Stop()

		logger.Debug("notification stream opened")
		if err := streamEvents(w, updates, cues, heartbeat.C); err != nil {
			logger.Debug("notification stream closed", zap.Error(err))
			return
		}
		logger.Debug("notification stream closed")
	})

	return nil
}

// streamEvents writes events until updates closes or a write fails.
func streamEvents(
	w *bufio.Writer,
	updates <-chan []domain.Notification,
	cues <-chan audio.Cue,
	heartbeat <-chan time.Time,
) error {
	if err := writeComment(w, "ok"); err != nil {
		return err
	}

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(w, eventNotifications, toNotificationResponses(snapshot)); err != nil {
				return err
			}
		case cue, ok := <-cues:
			if !ok {
				cues = nil
				continue
			}
			if err := writeEvent(w, eventSound, cue); err != nil {
				return err
			}
		case <-heartbeat:
			if err := writeComment(w, "ping"); err != nil {
				return err
			}
		}
	}
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := go_json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}

func writeComment(w *bufio.Writer, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}
	return w.Flush()
}
