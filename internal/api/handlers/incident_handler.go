package handlers

import (
	"errors"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/cache/redis"
	"github.com/sentinel-ng/backend/internal/geocoding"
	"github.com/sentinel-ng/backend/internal/metrics"
	"github.com/sentinel-ng/backend/internal/sanitize"
	"github.com/sentinel-ng/backend/internal/storage/models"
	"github.com/sentinel-ng/backend/internal/storage/sqlite"
	"github.com/sentinel-ng/backend/internal/trust"
	"github.com/sentinel-ng/backend/internal/verification"
	"github.com/sentinel-ng/backend/pkg/config"
	"github.com/sentinel-ng/backend/pkg/logger"
)

type IncidentHandler struct {
	store    *sqlite.Client
	scorer   *verification.Scorer
	geocoder *geocoding.Client // nil when geocoding is disabled
	cache    *redis.Client     // nil when redis is disabled
	hub      *Hub
	cfg      *config.Config
}

func NewIncidentHandler(store *sqlite.Client, scorer *verification.Scorer, geocoder *geocoding.Client, cache *redis.Client, hub *Hub, cfg *config.Config) *IncidentHandler {
	return &IncidentHandler{
		store:    store,
		scorer:   scorer,
		geocoder: geocoder,
		cache:    cache,
		hub:      hub,
		cfg:      cfg,
	}
}

type createIncidentRequest struct {
	IncidentType string  `json:"incident_type"`
	Severity     string  `json:"severity"`
	Description  string  `json:"description"`
	Longitude    float64 `json:"longitude"`
	Latitude     float64 `json:"latitude"`
	OccurredAt   string  `json:"occurred_at"`
	ReporterID   string  `json:"reporter_id"`
	Anonymous    bool    `json:"anonymous"`
	Casualties   struct {
		Killed  int `json:"killed"`
		Injured int `json:"injured"`
		Missing int `json:"missing"`
	} `json:"casualties"`
}

// CreateIncident validates and sanitizes a submission, resolves the
// reporter's trust score, runs verification scoring and persists the
// incident. Out-of-bounds coordinates are rejected here with a 400; the
// spatial evaluator's 0.0 score is a signal for in-bounds aggregation,
// not the rejection mechanism.
func (h *IncidentHandler) CreateIncident(c *fiber.Ctx) error {
	var req createIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "Invalid request body")
	}

	incidentType := models.IncidentType(req.IncidentType)
	if !incidentType.Valid() {
		return badRequest(c, "invalid_type", "Unknown incident type")
	}

	severity := models.Severity(req.Severity)
	if !severity.Valid() {
		return badRequest(c, "invalid_severity", "Unknown severity level")
	}

	if math.IsNaN(req.Longitude) || math.IsInf(req.Longitude, 0) ||
		math.IsNaN(req.Latitude) || math.IsInf(req.Latitude, 0) {
		return badRequest(c, "invalid_coordinates", "Coordinates must be finite numbers")
	}
	if !h.withinBounds(req.Longitude, req.Latitude) {
		return badRequest(c, "out_of_bounds", "Coordinates fall outside the coverage area")
	}

	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		return badRequest(c, "invalid_timestamp", "occurred_at must be an RFC 3339 timestamp")
	}

	description, err := sanitize.Description(req.Description)
	if err != nil {
		return badRequest(c, "invalid_description", "Description is empty or contains invalid content")
	}

	reporterID := ""
	trustScore := trust.Neutral
	if !req.Anonymous && req.ReporterID != "" {
		if err := sanitize.ValidateNoNullBytes(req.ReporterID); err != nil {
			return badRequest(c, "invalid_reporter", "Invalid reporter identifier")
		}
		reporterID = req.ReporterID

		reporter, err := h.store.GetReporter(c.Context(), reporterID)
		if err != nil {
			logger.Error("Failed to load reporter", zap.Error(err))
			return internalError(c, "Failed to process report")
		}
		if reporter != nil {
			trustScore = reporter.TrustScore
		}
		// The submission counter moves with the insert itself, so a
		// scoring or storage failure leaves the counters untouched.
	}

	start := time.Now()
	result, err := h.scorer.Score(c.Context(), verification.Report{
		IncidentType:       incidentType,
		Longitude:          req.Longitude,
		Latitude:           req.Latitude,
		OccurredAt:         occurredAt,
		Description:        description,
		ReporterTrustScore: trustScore,
	}, time.Now().UTC())
	if err != nil {
		// Scoring fails as a whole or not at all; a partial score is
		// never persisted.
		logger.Error("Verification scoring failed", zap.Error(err))
		return internalError(c, "Failed to score report")
	}
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	metrics.VerificationScore.Observe(result.Score)

	incident := &models.Incident{
		ID:                uuid.NewString(),
		IncidentType:      incidentType,
		Severity:          severity,
		Description:       description,
		Longitude:         req.Longitude,
		Latitude:          req.Latitude,
		OccurredAt:        occurredAt.UTC(),
		Verified:          result.AutoVerified,
		VerificationScore: result.Score,
		ReporterID:        reporterID,
		Anonymous:         req.Anonymous || reporterID == "",
		Killed:            req.Casualties.Killed,
		Injured:           req.Casualties.Injured,
		Missing:           req.Casualties.Missing,
	}

	if h.geocoder != nil {
		if loc, ok := h.geocoder.Reverse(c.Context(), req.Longitude, req.Latitude); ok {
			incident.LocationName = loc.Name
			incident.State = loc.State
		} else {
			metrics.GeocodeFailures.Inc()
		}
	}

	if err := h.store.InsertIncident(c.Context(), incident); err != nil {
		logger.Error("Failed to persist incident", zap.Error(err))
		return internalError(c, "Failed to store report")
	}

	if h.cache != nil {
		if err := h.cache.InvalidateStats(c.Context()); err != nil {
			logger.Warn("Failed to invalidate stats cache", zap.Error(err))
		}
	}

	h.hub.Broadcast(incident)

	metrics.IncidentsIngested.WithLabelValues(string(incidentType), boolLabel(result.AutoVerified)).Inc()

	logger.Info("Incident ingested",
		zap.String("id", incident.ID),
		zap.String("incident_type", string(incidentType)),
		zap.Float64("verification_score", result.Score),
		zap.Bool("auto_verified", result.AutoVerified),
		zap.Bool("anonymous", incident.Anonymous),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                 incident.ID,
		"verification_score": result.Score,
		"auto_verified":      result.AutoVerified,
		"location_name":      incident.LocationName,
		"state":              incident.State,
	})
}

func (h *IncidentHandler) GetIncident(c *fiber.Ctx) error {
	incident, err := h.store.GetIncident(c.Context(), c.Params("id"))
	if errors.Is(err, sqlite.ErrIncidentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Incident not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load incident", zap.Error(err))
		return internalError(c, "Failed to load incident")
	}

	return c.JSON(incident.GeoJSONFeature())
}

func (h *IncidentHandler) RecentIncidents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}

	incidents, err := h.store.RecentIncidents(c.Context(), limit)
	if err != nil {
		logger.Error("Failed to list recent incidents", zap.Error(err))
		return internalError(c, "Failed to list incidents")
	}

	return c.JSON(fiber.Map{
		"count":     len(incidents),
		"incidents": incidents,
	})
}

// IncidentsGeoJSON serves the mapping feed as a GeoJSON FeatureCollection.
func (h *IncidentHandler) IncidentsGeoJSON(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 1000)
	if limit < 1 || limit > 5000 {
		limit = 1000
	}

	incidents, err := h.store.RecentIncidents(c.Context(), limit)
	if err != nil {
		logger.Error("Failed to build GeoJSON feed", zap.Error(err))
		return internalError(c, "Failed to build GeoJSON feed")
	}

	features := make([]map[string]interface{}, 0, len(incidents))
	for _, incident := range incidents {
		features = append(features, incident.GeoJSONFeature())
	}

	return c.JSON(fiber.Map{
		"type":     "FeatureCollection",
		"features": features,
	})
}

// Stats serves aggregate counts over a trailing window, cached in redis
// when available. The cache is a convenience; on any cache error the
// request falls through to the store.
func (h *IncidentHandler) Stats(c *fiber.Ctx) error {
	if h.cache != nil {
		stats, hit, err := h.cache.GetStats(c.Context())
		if err != nil {
			logger.Warn("Stats cache read failed", zap.Error(err))
		} else if hit {
			metrics.StatsCacheHits.WithLabelValues("hit").Inc()
			return c.JSON(stats)
		}
		metrics.StatsCacheHits.WithLabelValues("miss").Inc()
	}

	stats, err := h.store.Stats(c.Context(), 7*24*time.Hour)
	if err != nil {
		logger.Error("Failed to compute incident stats", zap.Error(err))
		return internalError(c, "Failed to compute statistics")
	}

	if h.cache != nil {
		ttl := time.Duration(h.cfg.Redis.StatsTTLSec) * time.Second
		if err := h.cache.SetStats(c.Context(), stats, ttl); err != nil {
			logger.Warn("Stats cache write failed", zap.Error(err))
		}
	}

	return c.JSON(stats)
}

func (h *IncidentHandler) withinBounds(lon, lat float64) bool {
	b := h.cfg.Verification.Bounds
	return b.MinLon <= lon && lon <= b.MaxLon && b.MinLat <= lat && lat <= b.MaxLat
}

func badRequest(c *fiber.Ctx, reason, msg string) error {
	metrics.IncidentsRejected.WithLabelValues(reason).Inc()
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func internalError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
