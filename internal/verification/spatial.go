package verification

import (
	"github.com/sentinel-ng/backend/internal/geo"
	"github.com/sentinel-ng/backend/internal/storage/models"
	"github.com/sentinel-ng/backend/pkg/config"
)

// SpatialPlausibility scores how plausible the location is for the given
// incident type.
//
// Coordinates outside the national bounding box score 0.0; rejecting such
// submissions outright is the ingestion boundary's job, not this
// evaluator's. Inside the country the score starts at a moderate 0.7 and
// rises to the zone's inside score when the type is historically
// concentrated in a configured conflict-zone rectangle, or drops to the
// zone's outside score when it is not. The rectangles are a coarse
// heuristic prior, not ground truth, and must never be the sole basis for
// rejecting a report.
func (s *Scorer) SpatialPlausibility(lon, lat float64, incidentType models.IncidentType) float64 {
	if !boxContains(s.cfg.Bounds, lon, lat) {
		return 0.0
	}

	for _, zone := range s.cfg.ConflictZones {
		if !zoneCovers(zone, incidentType) {
			continue
		}
		if boxContains(zone.Bounds, lon, lat) {
			return zone.InsideScore
		}
		return zone.OutsideScore
	}

	return 0.7
}

func boxContains(b config.BoundingBox, lon, lat float64) bool {
	return geo.Bounds{
		MinLat: b.MinLat, MaxLat: b.MaxLat,
		MinLon: b.MinLon, MaxLon: b.MaxLon,
	}.Contains(lon, lat)
}

func zoneCovers(zone config.ConflictZone, incidentType models.IncidentType) bool {
	for _, t := range zone.Types {
		if t == string(incidentType) {
			return true
		}
	}
	return false
}
