package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ToffenYT/varsly/internal/ingest"
	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/mailer"
	"github.com/ToffenYT/varsly/internal/middleware"
	"github.com/ToffenYT/varsly/internal/notify"
)

// Ingester one ingestion pass
type Ingester interface {
	Run(ctx context.Context) (ingest.Summary, error)
}

// Digester one digest pass
type Digester interface {
	Digest(ctx context.Context) (notify.DigestSummary, error)
}

// InternalHandler manual triggers for the batch stages
type InternalHandler struct {
	ingester Ingester
	digester Digester
}

// NewInternalHandler creates an InternalHandler
func NewInternalHandler(i Ingester, d Digester) *InternalHandler {
	return &InternalHandler{ingester: i, digester: d}
}

// SetupInternalRoutes registers the triggers; the group must carry the API key guard
func SetupInternalRoutes(router fiber.Router, h *InternalHandler) {
	router.Post("/ingest", h.Ingest)
	router.Post("/digest", h.Digest)
}

// Ingest godoc
// @Summary Run one ingestion pass
// @Tags internal
// @Produce json
// @Param X-API-Key header string true "Internal API Key"
// @Success 200 {object} ingest.Summary
// @Router /internal/ingest [post]
func (h *InternalHandler) Ingest(c *fiber.Ctx) error {
	log := logger.GetLogger("internal")

	sum, err := h.ingester.Run(c.UserContext())
	if err != nil && !sum.Cancelled {
		middleware.RunsTotal.WithLabelValues("ingest", "error").Inc()
		log.Errorf("ingest run failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	middleware.RunsTotal.WithLabelValues("ingest", "ok").Inc()
	return c.JSON(sum)
}

type digestResponse struct {
	OK bool `json:"ok"`
	notify.DigestSummary
	Reason string `json:"reason,omitempty"`
}

// Digest godoc
// @Summary Send the daily digest
// @Tags internal
// @Produce json
// @Param X-API-Key header string true "Internal API Key"
// @Success 200 {object} digestResponse
// @Router /internal/digest [post]
func (h *InternalHandler) Digest(c *fiber.Ctx) error {
	log := logger.GetLogger("internal")

	sum, err := h.digester.Digest(c.UserContext())
	if err != nil {
		middleware.RunsTotal.WithLabelValues("digest", "error").Inc()
		reason := err.Error()
		if errors.Is(err, mailer.ErrNotConfigured) {
			reason = "Email provider not configured"
		}
		log.Errorf("digest run failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "reason": reason})
	}

	middleware.RunsTotal.WithLabelValues("digest", "ok").Inc()
	resp := digestResponse{OK: true, DigestSummary: sum}
	if sum.UsersChecked == 0 {
		resp.Reason = "No daily_digest users"
	}
	return c.JSON(resp)
}
