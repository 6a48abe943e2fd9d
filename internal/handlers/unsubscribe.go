package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ToffenYT/varsly/internal/events"
	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/internal/unsubscribe"
)

const unsubscribedMessage = "Du er nå meldt av varsling."

// OptOutStore disables a subscriber's notifications
type OptOutStore interface {
	SetNotificationsEnabled(ctx context.Context, subscriberID string, enabled bool) error
}

// UnsubscribeHandler one-click opt-out without a session
type UnsubscribeHandler struct {
	signer *unsubscribe.Signer
	store  OptOutStore
	events events.Publisher
}

// NewUnsubscribeHandler signer is nil when no secret is configured
func NewUnsubscribeHandler(signer *unsubscribe.Signer, st OptOutStore, pub events.Publisher) *UnsubscribeHandler {
	return &UnsubscribeHandler{signer: signer, store: st, events: pub}
}

// SetupUnsubscribeRoutes GET ?token= and POST {token}
func SetupUnsubscribeRoutes(router fiber.Router, h *UnsubscribeHandler) {
	router.Get("/unsubscribe", h.Unsubscribe)
	router.Post("/unsubscribe", h.Unsubscribe)
}

type unsubscribeRequest struct {
	Token string `json:"token" form:"token"`
}

// Unsubscribe godoc
// @Summary Unsubscribe from email alerts
// @Description Verifies the signed token and turns off notifications for its subject
// @Tags unsubscribe
// @Accept json
// @Produce json
// @Param token query string false "Unsubscribe token (GET)"
// @Param request body unsubscribeRequest false "Unsubscribe token (POST)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /unsubscribe [get]
// @Router /unsubscribe [post]
func (h *UnsubscribeHandler) Unsubscribe(c *fiber.Ctx) error {
	log := logger.GetLogger("unsubscribe")

	token := c.Query("token")
	if c.Method() == fiber.MethodPost {
		var req unsubscribeRequest
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
		token = req.Token
	}
	if token == "" {
		return fail(c, fiber.StatusBadRequest, "Missing token")
	}

	if h.signer == nil {
		log.Error("unsubscribe requested but UNSUBSCRIBE_JWT_SECRET is not set")
		return fail(c, fiber.StatusInternalServerError, "Server misconfigured")
	}

	subscriberID, err := h.signer.Verify(token)
	if err != nil {
		log.Infof("rejected unsubscribe token: %v", err)
		return fail(c, fiber.StatusBadRequest, "Invalid or expired token")
	}

	ctx := c.UserContext()
	err = h.store.SetNotificationsEnabled(ctx, subscriberID, false)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Errorf("disable notifications for %s: %v", subscriberID, err)
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	log.Infof("subscriber %s unsubscribed", subscriberID)
	events.Unsubscribed(ctx, h.events, subscriberID)

	return c.JSON(fiber.Map{
		"ok":      true,
		"message": unsubscribedMessage,
	})
}
