package verification

import (
	"context"
	"time"

	"github.com/sentinel-ng/backend/internal/storage/models"
)

// CrossVerification counts independent same-type reports near the incident
// in space and time and maps the count to a confidence score.
//
// Absence of corroboration is neutral (0.5), not evidence of falsity: most
// real incidents have no independent report. The store query is the one
// blocking step in the pipeline; it runs under the configured timeout and
// a failure propagates rather than degrading to a default, since a stale
// or guessed count would silently bias the aggregate score.
func (s *Scorer) CrossVerification(ctx context.Context, incidentType models.IncidentType, lon, lat float64, occurredAt time.Time) (float64, error) {
	timeout := time.Duration(s.cfg.StoreTimeoutSec) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	window := time.Duration(s.cfg.CorroborationWindowHours) * time.Hour

	count, err := s.store.CountNearby(ctx, incidentType, lon, lat, occurredAt, s.cfg.CorroborationRadiusKm, window)
	if err != nil {
		return 0, err
	}

	return corroborationScore(count), nil
}

func corroborationScore(count int) float64 {
	switch {
	case count >= 3:
		return 1.0
	case count == 2:
		return 0.9
	case count == 1:
		return 0.7
	default:
		return 0.5
	}
}
