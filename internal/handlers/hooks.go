package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/mailer"
	"github.com/ToffenYT/varsly/internal/notify"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/pkg/models"
)

// Immediater the immediate delivery path
type Immediater interface {
	Immediate(ctx context.Context, a models.Alert) (notify.Delivery, error)
}

// HookHandler receives database insert webhooks
type HookHandler struct {
	router Immediater
}

// NewHookHandler creates a HookHandler
func NewHookHandler(r Immediater) *HookHandler {
	return &HookHandler{router: r}
}

// SetupHookRoutes registers the webhook routes
func SetupHookRoutes(router fiber.Router, h *HookHandler) {
	router.Post("/alert-created", h.AlertCreated)
}

// WebhookPayload insert envelope sent by the database
type WebhookPayload struct {
	Type   string        `json:"type"`
	Table  string        `json:"table"`
	Record *models.Alert `json:"record"`
}

// AlertCreated godoc
// @Summary Immediate delivery for an inserted alert
// @Description Database insert webhook; only active with IMMEDIATE_TRIGGER=webhook
// @Tags hooks
// @Accept json
// @Produce json
// @Param X-API-Key header string true "Internal API Key"
// @Param request body WebhookPayload true "Insert envelope"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /hooks/alert-created [post]
func (h *HookHandler) AlertCreated(c *fiber.Ctx) error {
	var payload WebhookPayload
	if err := c.BodyParser(&payload); err != nil ||
		payload.Type != "INSERT" || payload.Table != "alerts" || payload.Record == nil ||
		payload.Record.OwnerID == "" || payload.Record.NoticeTitle == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "reason": "Invalid webhook payload"})
	}

	d, err := h.router.Immediate(c.UserContext(), *payload.Record)
	switch {
	case err == nil && d.Status == notify.StatusSkipped:
		return c.JSON(fiber.Map{"ok": true, "skipped": d.Reason})
	case err == nil:
		return c.JSON(fiber.Map{"ok": true})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "reason": "Profile not found"})
	case errors.Is(err, notify.ErrNoEmail):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "reason": "No email on profile"})
	case errors.Is(err, mailer.ErrNotConfigured):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "reason": "Email provider not configured"})
	case d.Status == notify.StatusFailed:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"ok": false, "provider_error": d.Reason})
	default:
		logger.GetLogger("hooks").Errorf("alert-created %s: %v", payload.Record.OwnerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
}
