package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ToffenYT/varsly/internal/keywords"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/pkg/models"
)

// PreferenceStore subscriber preference persistence
type PreferenceStore interface {
	GetPreference(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error)
	UpsertPreference(ctx context.Context, p *models.SubscriberPreference) error
}

// SubscriberHandler keyword and preference management, called by the front-end backend
type SubscriberHandler struct {
	keywords *keywords.Service
	prefs    PreferenceStore
}

// NewSubscriberHandler creates a SubscriberHandler
func NewSubscriberHandler(kw *keywords.Service, prefs PreferenceStore) *SubscriberHandler {
	return &SubscriberHandler{keywords: kw, prefs: prefs}
}

// SetupSubscriberRoutes registers routes under /subscribers
func SetupSubscriberRoutes(router fiber.Router, h *SubscriberHandler) {
	router.Get("/:id/keywords", h.ListKeywords)
	router.Post("/:id/keywords", h.CreateKeyword)
	router.Delete("/:id/keywords/:keywordId", h.DeleteKeyword)

	router.Get("/:id/preferences", h.GetPreferences)
	router.Put("/:id/preferences", h.UpdatePreferences)
}

// CreateKeywordRequest body of POST /subscribers/:id/keywords
type CreateKeywordRequest struct {
	Keyword string `json:"keyword"`
}

// CreateKeyword godoc
// @Summary Create keyword
// @Tags subscribers
// @Accept json
// @Produce json
// @Param X-API-Key header string true "Internal API Key"
// @Param id path string true "Subscriber ID"
// @Param request body CreateKeywordRequest true "Keyword"
// @Success 201 {object} models.Keyword
// @Failure 409 {object} ErrorResponse
// @Router /subscribers/{id}/keywords [post]
func (h *SubscriberHandler) CreateKeyword(c *fiber.Ctx) error {
	var req CreateKeywordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	k, err := h.keywords.Add(c.UserContext(), c.Params("id"), req.Keyword)
	switch {
	case errors.Is(err, keywords.ErrEmptyKeyword):
		return fail(c, fiber.StatusBadRequest, "Keyword is required")
	case errors.Is(err, keywords.ErrDuplicateKeyword):
		return fail(c, fiber.StatusConflict, "Keyword already registered")
	case err != nil:
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(k)
}

// ListKeywords godoc
// @Summary List keywords
// @Tags subscribers
// @Produce json
// @Param X-API-Key header string true "Internal API Key"
// @Param id path string true "Subscriber ID"
// @Success 200 {array} models.Keyword
// @Router /subscribers/{id}/keywords [get]
func (h *SubscriberHandler) ListKeywords(c *fiber.Ctx) error {
	list, err := h.keywords.List(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Keyword{}
	}
	return c.JSON(list)
}

// DeleteKeyword godoc
// @Summary Delete keyword
// @Tags subscribers
// @Param X-API-Key header string true "Internal API Key"
// @Param id path string true "Subscriber ID"
// @Param keywordId path string true "Keyword ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /subscribers/{id}/keywords/{keywordId} [delete]
func (h *SubscriberHandler) DeleteKeyword(c *fiber.Ctx) error {
	err := h.keywords.Remove(c.UserContext(), c.Params("id"), c.Params("keywordId"))
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "Keyword not found")
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPreferences godoc
// @Summary Get delivery preferences
// @Tags subscribers
// @Produce json
// @Param X-API-Key header string true "Internal API Key"
// @Param id path string true "Subscriber ID"
// @Success 200 {object} models.SubscriberPreference
// @Failure 404 {object} ErrorResponse
// @Router /subscribers/{id}/preferences [get]
func (h *SubscriberHandler) GetPreferences(c *fiber.Ctx) error {
	p, err := h.prefs.GetPreference(c.UserContext(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "Profile not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// UpdatePreferencesRequest body of PUT /subscribers/:id/preferences
type UpdatePreferencesRequest struct {
	Email                 string `json:"email"`
	EmailNotifications    *bool  `json:"email_notifications"`
	NotificationFrequency string `json:"notification_frequency"`
}

// UpdatePreferences godoc
// @Summary Update delivery preferences
// @Description Omitted fields keep their stored value; a new profile defaults to enabled instant delivery
// @Tags subscribers
// @Accept json
// @Produce json
// @Param X-API-Key header string true "Internal API Key"
// @Param id path string true "Subscriber ID"
// @Param request body UpdatePreferencesRequest true "Preferences"
// @Success 200 {object} models.SubscriberPreference
// @Failure 400 {object} ErrorResponse
// @Router /subscribers/{id}/preferences [put]
func (h *SubscriberHandler) UpdatePreferences(c *fiber.Ctx) error {
	var req UpdatePreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx := c.UserContext()
	id := c.Params("id")

	p, err := h.prefs.GetPreference(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = &models.SubscriberPreference{
			SubscriberID:         id,
			NotificationsEnabled: true,
			DeliveryMode:         models.DeliveryImmediate,
		}
	case err != nil:
		return err
	}

	if email := strings.TrimSpace(req.Email); email != "" {
		p.Email = email
	}
	if req.EmailNotifications != nil {
		p.NotificationsEnabled = *req.EmailNotifications
	}
	if req.NotificationFrequency != "" {
		mode, ok := models.ParseDeliveryMode(req.NotificationFrequency)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "notification_frequency must be instant or daily_digest")
		}
		p.DeliveryMode = mode
	}

	if err := h.prefs.UpsertPreference(ctx, p); err != nil {
		return err
	}
	return c.JSON(p)
}
