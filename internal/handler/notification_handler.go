package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/toast-engine/internal/audio"
	"github.com/kursadbilgin/toast-engine/internal/domain"
	"github.com/kursadbilgin/toast-engine/internal/queue"
	"github.com/kursadbilgin/toast-engine/internal/service"
	"go.uber.org/zap"
)

type NotificationService interface {
	Show(opts service.ShowOptions) (string, error)
	Get(id string) (domain.Notification, error)
	Snapshot() []domain.Notification
	Grouped() []queue.PositionGroup
	Remove(id string)
	ClearAll()
	Pause(id string) error
	Resume(id string) error
	PauseAll()
	ResumeAll()
	TriggerAction(id string, index int) error
	UpdateSoundConfig(patch audio.ConfigPatch)
	SoundConfig() (audio.Config, bool)
	Subscribe() (<-chan []domain.Notification, func())
	SubscribeCues() (<-chan audio.Cue, func())
}

type NotificationHandler struct {
	service   NotificationService
	logger    *zap.Logger
	heartbeat time.Duration
}

func NewNotificationHandler(service NotificationService, logger *zap.Logger) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{service: service, logger: logger, heartbeat: streamHeartbeatInterval}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService, logger *zap.Logger) error {
	h, err := NewNotificationHandler(service, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications/stream", h.StreamNotifications)
	v1.Post("/notifications/pause-all", h.PauseAll)
	v1.Post("/notifications/resume-all", h.ResumeAll)
	v1.Post("/notifications", h.ShowNotification)
	v1.Get("/notifications", h.ListNotifications)
	v1.Delete("/notifications", h.ClearNotifications)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Delete("/notifications/:id", h.RemoveNotification)
	v1.Post("/notifications/:id/pause", h.PauseNotification)
	v1.Post("/notifications/:id/resume", h.ResumeNotification)
	v1.Post("/notifications/:id/actions/:index", h.TriggerAction)
	v1.Get("/sound", h.GetSoundConfig)
	v1.Patch("/sound", h.UpdateSoundConfig)

	return nil
}

type showNotificationRequest struct {
	Type       string          `json:"type"`
	Message    string          `json:"message"`
	DurationMS *int64          `json:"duration"`
	AutoClose  *bool           `json:"autoClose"`
	Theme      string          `json:"theme"`
	Position   string          `json:"position"`
	Actions    []actionRequest `json:"actions"`
	PlaySound  *bool           `json:"playSound"`
}

type actionRequest struct {
	Label        string `json:"label"`
	Variant      string `json:"variant"`
	Disabled     bool   `json:"disabled"`
	CloseOnClick bool   `json:"closeOnClick"`
}

type soundConfigRequest struct {
	Volume       *float64          `json:"volume"`
	AllowOverlap *bool             `json:"allowOverlap"`
	Sounds       map[string]string `json:"sounds"`
}

type notificationResponse struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Message    string           `json:"message"`
	DurationMS int64            `json:"duration"`
	AutoClose  bool             `json:"autoClose"`
	Theme      string           `json:"theme"`
	Position   string           `json:"position"`
	Actions    []actionResponse `json:"actions,omitempty"`
	Count      int              `json:"count"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type actionResponse struct {
	Label        string `json:"label"`
	Variant      string `json:"variant"`
	Disabled     bool   `json:"disabled"`
	CloseOnClick bool   `json:"closeOnClick"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
}

type groupedNotificationsResponse struct {
	Groups []positionGroupResponse `json:"groups"`
}

type positionGroupResponse struct {
	Position      string                 `json:"position"`
	Notifications []notificationResponse `json:"notifications"`
}

type soundConfigResponse struct {
	Enabled      bool              `json:"enabled"`
	Volume       float64           `json:"volume"`
	AllowOverlap bool              `json:"allowOverlap"`
	Sounds       map[string]string `json:"sounds"`
}

func (h *NotificationHandler) ShowNotification(c *fiber.Ctx) error {
	var req showNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	opts, err := requestToShowOptions(req)
	if err != nil {
		return toHTTPError(err)
	}

	id, err := h.service.Show(opts)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": id,
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	n, err := h.service.Get(strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(n))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	switch groupBy := strings.TrimSpace(c.Query("groupBy")); groupBy {
	case "":
		return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
			Data: toNotificationResponses(h.service.Snapshot()),
		})
	case "position":
		groups := h.service.Grouped()
		resp := groupedNotificationsResponse{Groups: make([]positionGroupResponse, 0, len(groups))}
		for _, g := range groups {
			resp.Groups = append(resp.Groups, positionGroupResponse{
				Position:      g.Position.String(),
				Notifications: toNotificationResponses(g.Notifications),
			})
		}
		return c.Status(fiber.StatusOK).JSON(resp)
	default:
		return toHTTPError(fmt.Errorf("%w: unsupported groupBy %q", domain.ErrValidation, groupBy))
	}
}

func (h *NotificationHandler) RemoveNotification(c *fiber.Ctx) error {
	h.service.Remove(strings.TrimSpace(c.Params("id")))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) ClearNotifications(c *fiber.Ctx) error {
	h.service.ClearAll()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) PauseNotification(c *fiber.Ctx) error {
	if err := h.service.Pause(strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) ResumeNotification(c *fiber.Ctx) error {
	if err := h.service.Resume(strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) PauseAll(c *fiber.Ctx) error {
	h.service.PauseAll()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) ResumeAll(c *fiber.Ctx) error {
	h.service.ResumeAll()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) TriggerAction(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return toHTTPError(fmt.Errorf("%w: action index must be an integer", domain.ErrValidation))
	}

	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.TriggerAction(id, index); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) GetSoundConfig(c *fiber.Ctx) error {
	cfg, ok := h.service.SoundConfig()
	return c.Status(fiber.StatusOK).JSON(toSoundConfigResponse(cfg, ok))
}

func (h *NotificationHandler) UpdateSoundConfig(c *fiber.Ctx) error {
	var req soundConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	patch, err := requestToConfigPatch(req)
	if err != nil {
		return toHTTPError(err)
	}

	h.service.UpdateSoundConfig(patch)
	cfg, ok := h.service.SoundConfig()
	return c.Status(fiber.StatusOK).JSON(toSoundConfigResponse(cfg, ok))
}

func requestToShowOptions(req showNotificationRequest) (service.ShowOptions, error) {
	opts := service.ShowOptions{
		Message:   strings.TrimSpace(req.Message),
		AutoClose: req.AutoClose,
		Theme:     domain.Theme(strings.TrimSpace(req.Theme)),
		PlaySound: req.PlaySound,
	}

	if raw := strings.TrimSpace(req.Type); raw != "" {
		t, err := domain.ParseTypeFromString(raw)
		if err != nil {
			return service.ShowOptions{}, err
		}
		opts.Type = t
	}
	if raw := strings.TrimSpace(req.Position); raw != "" {
		p, err := domain.ParsePositionFromString(raw)
		if err != nil {
			return service.ShowOptions{}, err
		}
		opts.Position = p
	}
	if req.DurationMS != nil {
		d := time.Duration(*req.DurationMS) * time.Millisecond
		opts.Duration = &d
	}

	for _, a := range req.Actions {
		opts.Actions = append(opts.Actions, domain.Action{
			Label:        strings.TrimSpace(a.Label),
			Variant:      strings.TrimSpace(a.Variant),
			Disabled:     a.Disabled,
			CloseOnClick: a.CloseOnClick,
		})
	}

	return opts, nil
}

func requestToConfigPatch(req soundConfigRequest) (audio.ConfigPatch, error) {
	patch := audio.ConfigPatch{
		Volume:       req.Volume,
		AllowOverlap: req.AllowOverlap,
	}
	if len(req.Sounds) == 0 {
		return patch, nil
	}

	patch.Sounds = make(map[domain.Type]string, len(req.Sounds))
	for raw, uri := range req.Sounds {
		t, err := domain.ParseTypeFromString(raw)
		if err != nil {
			return audio.ConfigPatch{}, err
		}
		patch.Sounds[t] = strings.TrimSpace(uri)
	}
	return patch, nil
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

func toNotificationResponse(n domain.Notification) notificationResponse {
	resp := notificationResponse{
		ID:         n.ID,
		Type:       n.Type.String(),
		Message:    n.Message,
		DurationMS: n.Duration.Milliseconds(),
		AutoClose:  n.AutoClose,
		Theme:      string(n.Theme),
		Position:   n.Position.String(),
		Count:      n.Count,
		CreatedAt:  n.CreatedAt,
	}
	for _, a := range n.Actions {
		resp.Actions = append(resp.Actions, actionResponse{
			Label:        a.Label,
			Variant:      a.Variant,
			Disabled:     a.Disabled,
			CloseOnClick: a.CloseOnClick,
		})
	}
	return resp
}

func toSoundConfigResponse(cfg audio.Config, enabled bool) soundConfigResponse {
	resp := soundConfigResponse{
		Enabled:      enabled,
		Volume:       cfg.Volume,
		AllowOverlap: cfg.AllowOverlap,
		Sounds:       make(map[string]string, len(cfg.Sounds)),
	}
	for t, uri := range cfg.Sounds {
		resp.Sounds[t.String()] = uri
	}
	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
