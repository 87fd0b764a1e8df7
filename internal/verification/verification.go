// Package verification implements the multi-factor credibility scoring
// pipeline for incoming incident reports. Five components contribute to a
// weighted aggregate: spatial plausibility, temporal plausibility, reporter
// trust, cross-corroboration and description quality. All component
// evaluators are deterministic; the only I/O is the corroboration count
// query against the incident store.
package verification

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/storage/models"
	"github.com/sentinel-ng/backend/internal/trust"
	"github.com/sentinel-ng/backend/pkg/config"
	"github.com/sentinel-ng/backend/pkg/logger"
)

// CorroborationStore is the one query shape scoring needs from the
// incident store: a count of same-type incidents within a radius of a
// point and a time window around the occurrence.
type CorroborationStore interface {
	CountNearby(ctx context.Context, incidentType models.IncidentType, lon, lat float64, occurredAt time.Time, radiusKm float64, window time.Duration) (int, error)
}

// Report is the immutable input to scoring. The ingestion boundary is
// responsible for sanitizing the description and resolving the reporter
// trust score (0.5 for anonymous or unknown reporters) before scoring.
type Report struct {
	IncidentType       models.IncidentType
	Longitude          float64
	Latitude           float64
	OccurredAt         time.Time
	Description        string
	ReporterTrustScore float64
}

type Scorer struct {
	cfg   *config.VerificationConfig
	store CorroborationStore
}

func NewScorer(cfg *config.VerificationConfig, store CorroborationStore) *Scorer {
	return &Scorer{
		cfg:   cfg,
		store: store,
	}
}

// Score aggregates the five weighted components into a bounded
// verification result. It fails rather than substituting defaults: a
// malformed input or an unreachable store yields an error and no score,
// never a partially computed one.
func (s *Scorer) Score(ctx context.Context, report Report, now time.Time) (models.VerificationResult, error) {
	if err := validateReport(report); err != nil {
		return models.VerificationResult{}, err
	}

	spatial := s.SpatialPlausibility(report.Longitude, report.Latitude, report.IncidentType)
	temporal := TemporalPlausibility(report.OccurredAt, now)
	description := s.DescriptionQuality(report.Description)

	corroboration, err := s.CrossVerification(ctx, report.IncidentType, report.Longitude, report.Latitude, report.OccurredAt)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("corroboration query failed: %w", err)
	}

	score := 0.0
	weightSum := 0.0

	for _, c := range []struct {
		value  float64
		weight float64
	}{
		{spatial, s.cfg.SpatialWeight},
		{temporal, s.cfg.TemporalWeight},
		{report.ReporterTrustScore, s.cfg.ReporterWeight},
		{corroboration, s.cfg.CorroborationWeight},
		{description, s.cfg.DescriptionWeight},
	} {
		score += clamp01(c.value) * c.weight
		weightSum += c.weight
	}

	final := trust.Neutral
	if weightSum > 0 {
		final = clamp01(score / weightSum)
	}

	result := models.VerificationResult{
		Score:        final,
		AutoVerified: final >= s.cfg.AutoVerifyThreshold,
	}

	logger.Debug("Report scored",
		zap.String("incident_type", string(report.IncidentType)),
		zap.Float64("spatial", spatial),
		zap.Float64("temporal", temporal),
		zap.Float64("reporter_trust", report.ReporterTrustScore),
		zap.Float64("corroboration", corroboration),
		zap.Float64("description", description),
		zap.Float64("score", final),
		zap.Bool("auto_verified", result.AutoVerified),
	)

	return result, nil
}

func validateReport(report Report) error {
	if !finite(report.Longitude) || !finite(report.Latitude) {
		return fmt.Errorf("coordinates are not finite: lon=%v lat=%v", report.Longitude, report.Latitude)
	}
	if !finite(report.ReporterTrustScore) {
		return fmt.Errorf("reporter trust score is not finite: %v", report.ReporterTrustScore)
	}
	if !report.IncidentType.Valid() {
		return fmt.Errorf("unknown incident type %q", report.IncidentType)
	}
	if report.OccurredAt.IsZero() {
		return fmt.Errorf("occurrence time is not set")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
