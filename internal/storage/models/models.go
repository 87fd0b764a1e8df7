package models

import "time"

type IncidentType string

const (
	ArmedAttack       IncidentType = "armed_attack"
	Kidnapping        IncidentType = "kidnapping"
	Banditry          IncidentType = "banditry"
	InsurgentAttack   IncidentType = "insurgent_attack"
	FarmerHerderClash IncidentType = "farmer_herder_clash"
	Robbery           IncidentType = "robbery"
	CommunalClash     IncidentType = "communal_clash"
	CattleRustling    IncidentType = "cattle_rustling"
	BombBlast         IncidentType = "bomb_blast"
	Shooting          IncidentType = "shooting"
	OtherIncident     IncidentType = "other"
)

var incidentTypes = map[IncidentType]struct{}{
	ArmedAttack: {}, Kidnapping: {}, Banditry: {}, InsurgentAttack: {},
	FarmerHerderClash: {}, Robbery: {}, CommunalClash: {}, CattleRustling: {},
	BombBlast: {}, Shooting: {}, OtherIncident: {},
}

func (t IncidentType) Valid() bool {
	_, ok := incidentTypes[t]
	return ok
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SeverityScore maps severity to a numeric value for analytics.
func SeverityScore(s Severity) int {
	switch s {
	case SeverityLow:
		return 25
	case SeverityModerate:
		return 50
	case SeverityHigh:
		return 75
	case SeverityCritical:
		return 100
	default:
		return 0
	}
}

type Incident struct {
	ID                string
	IncidentType      IncidentType
	Severity          Severity
	Description       string
	Longitude         float64
	Latitude          float64
	LocationName      string
	State             string
	OccurredAt        time.Time
	Verified          bool
	Reviewed          bool // set by the first human review decision, which is final
	VerificationScore float64
	VerificationNotes string
	ReporterID        string // empty for anonymous reports
	Anonymous         bool
	Killed            int
	Injured           int
	Missing           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Reporter struct {
	ID               string
	TrustScore       float64
	ReportsSubmitted int
	ReportsVerified  int
	ReportsRejected  int
	CreatedAt        time.Time
}

// IncidentStats aggregates counts over a trailing window for the
// statistics endpoint.
type IncidentStats struct {
	Total       int            `json:"total"`
	Verified    int            `json:"verified"`
	ByType      map[string]int `json:"by_type"`
	BySeverity  map[string]int `json:"by_severity"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// VerificationResult is the outcome of scoring one incident report.
type VerificationResult struct {
	Score        float64
	AutoVerified bool
}

// GeoJSONFeature renders the incident as a GeoJSON Feature for mapping.
func (i *Incident) GeoJSONFeature() map[string]interface{} {
	return map[string]interface{}{
		"type": "Feature",
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{i.Longitude, i.Latitude},
		},
		"properties": map[string]interface{}{
			"id":                 i.ID,
			"incident_type":      string(i.IncidentType),
			"severity":           string(i.Severity),
			"severity_score":     SeverityScore(i.Severity),
			"description":        i.Description,
			"location_name":      i.LocationName,
			"state":              i.State,
			"verified":           i.Verified,
			"verification_score": i.VerificationScore,
			"occurred_at":        i.OccurredAt.UTC().Format(time.RFC3339),
			"created_at":         i.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}
