package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/metrics"
	"github.com/sentinel-ng/backend/internal/sanitize"
	"github.com/sentinel-ng/backend/internal/storage/sqlite"
	"github.com/sentinel-ng/backend/pkg/logger"
)

// ReviewHandler applies reviewer confirm/reject decisions. A decision is
// the sole trigger for reporter trust recomputation and the first decision
// for an incident is final; replays answer with the recorded state and
// leave the counters alone.
type ReviewHandler struct {
	store *sqlite.Client
}

func NewReviewHandler(store *sqlite.Client) *ReviewHandler {
	return &ReviewHandler{store: store}
}

func (h *ReviewHandler) VerifyIncident(c *fiber.Ctx) error {
	return h.applyDecision(c, true)
}

func (h *ReviewHandler) RejectIncident(c *fiber.Ctx) error {
	return h.applyDecision(c, false)
}

func (h *ReviewHandler) applyDecision(c *fiber.Ctx, verified bool) error {
	var req struct {
		Notes string `json:"notes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if err := sanitize.ValidateNoNullBytes(req.Notes); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid review notes",
		})
	}

	incidentID := c.Params("id")

	incident, err := h.store.GetIncident(c.Context(), incidentID)
	if errors.Is(err, sqlite.ErrIncidentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Incident not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load incident for review", zap.Error(err))
		return internalError(c, "Failed to load incident")
	}

	// The first review decision is final: replays, double-clicks and
	// decision flips must not touch the incident or the reporter's
	// counters again. Verifying an incident that is already verified
	// (including auto-verified ones) likewise changes nothing.
	if incident.Reviewed || (verified && incident.Verified) {
		return c.JSON(fiber.Map{
			"id":       incidentID,
			"verified": incident.Verified,
			"message":  "Incident already reviewed",
		})
	}

	err = h.store.SetIncidentReview(c.Context(), incidentID, verified, req.Notes)
	if errors.Is(err, sqlite.ErrAlreadyReviewed) {
		// Lost a race with a concurrent decision; report the state that won.
		incident, err = h.store.GetIncident(c.Context(), incidentID)
		if err != nil {
			logger.Error("Failed to reload reviewed incident", zap.Error(err))
			return internalError(c, "Failed to load incident")
		}
		return c.JSON(fiber.Map{
			"id":       incidentID,
			"verified": incident.Verified,
			"message":  "Incident already reviewed",
		})
	}
	if err != nil {
		logger.Error("Failed to update incident review", zap.Error(err))
		return internalError(c, "Failed to update incident")
	}

	outcome := "rejected"
	if verified {
		outcome = "verified"
	}
	metrics.ReviewDecisions.WithLabelValues(outcome).Inc()

	// Anonymous reports have no reporter to credit or penalize.
	if incident.ReporterID != "" {
		if err := h.store.ApplyReviewOutcome(c.Context(), incident.ReporterID, verified); err != nil {
			logger.Error("Failed to update reporter trust", zap.Error(err))
			return internalError(c, "Failed to update reporter trust")
		}
		metrics.TrustUpdates.Inc()
	}

	logger.Info("Incident reviewed",
		zap.String("id", incidentID),
		zap.String("outcome", outcome),
		zap.String("reporter_id", incident.ReporterID),
	)

	return c.JSON(fiber.Map{
		"id":       incidentID,
		"verified": verified,
	})
}
