package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/geo"
	"github.com/sentinel-ng/backend/internal/metrics"
	"github.com/sentinel-ng/backend/internal/storage/models"
	"github.com/sentinel-ng/backend/internal/trust"
	"github.com/sentinel-ng/backend/pkg/logger"
)

var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrAlreadyReviewed  = errors.New("incident already reviewed")
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	// _txlock=immediate makes write transactions take the write lock up
	// front, so two review decisions for the same reporter serialize
	// instead of deadlocking on lock upgrade.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reporters (
		id TEXT PRIMARY KEY,
		trust_score REAL NOT NULL DEFAULT 0.5,
		reports_submitted INTEGER NOT NULL DEFAULT 0,
		reports_verified INTEGER NOT NULL DEFAULT 0,
		reports_rejected INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		incident_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL,
		longitude REAL NOT NULL,
		latitude REAL NOT NULL,
		location_name TEXT,
		state TEXT,
		occurred_at INTEGER NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0,
		reviewed INTEGER NOT NULL DEFAULT 0,
		verification_score REAL NOT NULL DEFAULT 0,
		verification_notes TEXT,
		reporter_id TEXT,
		anonymous INTEGER NOT NULL DEFAULT 0,
		killed INTEGER NOT NULL DEFAULT 0,
		injured INTEGER NOT NULL DEFAULT 0,
		missing INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (reporter_id) REFERENCES reporters(id)
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_type ON incidents(incident_type);
	CREATE INDEX IF NOT EXISTS idx_incidents_occurred ON incidents(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_incidents_state ON incidents(state);
	CREATE INDEX IF NOT EXISTS idx_incidents_verified ON incidents(verified);
	CREATE INDEX IF NOT EXISTS idx_incidents_coords ON incidents(latitude, longitude);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

// InsertIncident stores the incident and, for attributed reports, bumps
// the reporter's submission counter in the same transaction. A failed
// insert never leaves a phantom submission behind, so verified rates stay
// consistent with what is actually stored.
func (c *Client) InsertIncident(ctx context.Context, incident *models.Incident) error {
	now := time.Now().UTC()
	incident.CreatedAt = now
	incident.UpdatedAt = now

	var reporterID interface{}
	if incident.ReporterID != "" {
		reporterID = incident.ReporterID
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if incident.ReporterID != "" {
		if err := recordSubmission(ctx, tx, incident.ReporterID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO incidents (
			id, incident_type, severity, description, longitude, latitude,
			location_name, state, occurred_at, verified, reviewed,
			verification_score, verification_notes, reporter_id, anonymous,
			killed, injured, missing, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.ID, string(incident.IncidentType), string(incident.Severity),
		incident.Description, incident.Longitude, incident.Latitude,
		incident.LocationName, incident.State, incident.OccurredAt.Unix(),
		incident.Verified, incident.Reviewed, incident.VerificationScore,
		incident.VerificationNotes, reporterID, incident.Anonymous,
		incident.Killed, incident.Injured, incident.Missing,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit incident insert: %w", err)
	}
	return nil
}

const incidentColumns = `
	id, incident_type, severity, description, longitude, latitude,
	COALESCE(location_name, ''), COALESCE(state, ''), occurred_at, verified,
	reviewed, verification_score, COALESCE(verification_notes, ''),
	COALESCE(reporter_id, ''), anonymous, killed, injured, missing,
	created_at, updated_at`

func scanIncident(row interface{ Scan(...interface{}) error }) (*models.Incident, error) {
	var incident models.Incident
	var incidentType, severity string
	var occurredAt, createdAt, updatedAt int64

	err := row.Scan(
		&incident.ID, &incidentType, &severity, &incident.Description,
		&incident.Longitude, &incident.Latitude, &incident.LocationName,
		&incident.State, &occurredAt, &incident.Verified, &incident.Reviewed,
		&incident.VerificationScore, &incident.VerificationNotes,
		&incident.ReporterID, &incident.Anonymous, &incident.Killed,
		&incident.Injured, &incident.Missing, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	incident.IncidentType = models.IncidentType(incidentType)
	incident.Severity = models.Severity(severity)
	incident.OccurredAt = time.Unix(occurredAt, 0).UTC()
	incident.CreatedAt = time.Unix(createdAt, 0).UTC()
	incident.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &incident, nil
}

func (c *Client) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)

	incident, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

func (c *Client) RecentIncidents(ctx context.Context, limit int) ([]*models.Incident, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents ORDER BY occurred_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}

	return incidents, nil
}

// CountNearby counts stored incidents of the same type within radiusKm of
// the point and within the time window around occurredAt.
//
// The SQL pass prefilters with a bounding box derived from the proper
// km-to-degree conversion (latitude window direct, longitude window widened
// by 1/cos(lat)); candidates are then refined with the exact haversine
// distance so the radius is honored at any latitude.
func (c *Client) CountNearby(ctx context.Context, incidentType models.IncidentType, lon, lat float64, occurredAt time.Time, radiusKm float64, window time.Duration) (int, error) {
	latDelta := geo.KmToDegrees(radiusKm)
	lonDelta := lonWindow(latDelta, lat)

	rows, err := c.db.QueryContext(ctx, `
		SELECT longitude, latitude FROM incidents
		WHERE incident_type = ?
		AND occurred_at BETWEEN ? AND ?
		AND latitude BETWEEN ? AND ?
		AND longitude BETWEEN ? AND ?`,
		string(incidentType),
		occurredAt.Add(-window).Unix(), occurredAt.Add(window).Unix(),
		lat-latDelta, lat+latDelta,
		lon-lonDelta, lon+lonDelta,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to query nearby incidents: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var candLon, candLat float64
		if err := rows.Scan(&candLon, &candLat); err != nil {
			return 0, fmt.Errorf("failed to scan nearby incident: %w", err)
		}
		if geo.HaversineKm(lon, lat, candLon, candLat) <= radiusKm {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate nearby incidents: %w", err)
	}

	metrics.CorroborationCount.Observe(float64(count))
	return count, nil
}

// SetIncidentReview records the first review decision for an incident.
// The reviewed guard lives in the UPDATE itself, so two concurrent
// decisions cannot both apply: the loser gets ErrAlreadyReviewed.
func (c *Client) SetIncidentReview(ctx context.Context, id string, verified bool, notes string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE incidents SET verified = ?, verification_notes = ?, reviewed = 1, updated_at = ?
		WHERE id = ? AND reviewed = 0`,
		verified, notes, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update incident review: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var one int
		err := c.db.QueryRowContext(ctx, `SELECT 1 FROM incidents WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrIncidentNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check incident: %w", err)
		}
		return ErrAlreadyReviewed
	}
	return nil
}

func (c *Client) GetReporter(ctx context.Context, id string) (*models.Reporter, error) {
	var reporter models.Reporter
	var createdAt int64

	err := c.db.QueryRowContext(ctx, `
		SELECT id, trust_score, reports_submitted, reports_verified, reports_rejected, created_at
		FROM reporters WHERE id = ?`, id).Scan(
		&reporter.ID, &reporter.TrustScore, &reporter.ReportsSubmitted,
		&reporter.ReportsVerified, &reporter.ReportsRejected, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reporter: %w", err)
	}

	reporter.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &reporter, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// RecordSubmission bumps the reporter's submission counter, creating the
// reporter with a neutral trust score on first contact.
func (c *Client) RecordSubmission(ctx context.Context, reporterID string) error {
	return recordSubmission(ctx, c.db, reporterID)
}

func recordSubmission(ctx context.Context, db execer, reporterID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reporters (id, trust_score, reports_submitted, created_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET reports_submitted = reports_submitted + 1`,
		reporterID, trust.Neutral, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// ApplyReviewOutcome increments the verified or rejected counter and
// recomputes the reporter's trust score inside one write transaction, so
// concurrent review decisions for the same reporter serialize here. A
// missing reporter is a warning, not an error: a deleted account must not
// block the review workflow.
func (c *Client) ApplyReviewOutcome(ctx context.Context, reporterID string, verified bool) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var submitted, verifiedCount, rejectedCount int
	err = tx.QueryRowContext(ctx, `
		SELECT reports_submitted, reports_verified, reports_rejected
		FROM reporters WHERE id = ?`, reporterID).Scan(&submitted, &verifiedCount, &rejectedCount)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Warn("Review outcome for unknown reporter, skipping trust update",
			zap.String("reporter_id", reporterID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read reporter counters: %w", err)
	}

	if verified {
		verifiedCount++
	} else {
		rejectedCount++
	}

	newTrust := trust.Recompute(submitted, verifiedCount, rejectedCount)

	_, err = tx.ExecContext(ctx, `
		UPDATE reporters SET reports_verified = ?, reports_rejected = ?, trust_score = ?
		WHERE id = ?`,
		verifiedCount, rejectedCount, newTrust, reporterID)
	if err != nil {
		return fmt.Errorf("failed to update reporter trust: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trust update: %w", err)
	}

	logger.Info("Reporter trust updated",
		zap.String("reporter_id", reporterID),
		zap.Bool("verified", verified),
		zap.Float64("trust_score", newTrust),
	)

	return nil
}

// Stats aggregates incident counts over the trailing window for the
// statistics endpoint.
func (c *Client) Stats(ctx context.Context, window time.Duration) (*models.IncidentStats, error) {
	since := time.Now().UTC().Add(-window).Unix()

	stats := &models.IncidentStats{
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT incident_type, severity, verified, COUNT(*)
		FROM incidents WHERE occurred_at >= ?
		GROUP BY incident_type, severity, verified`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var incidentType, severity string
		var verified bool
		var count int
		if err := rows.Scan(&incidentType, &severity, &verified, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.Total += count
		stats.ByType[incidentType] += count
		stats.BySeverity[severity] += count
		if verified {
			stats.Verified += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats rows: %w", err)
	}

	stats.GeneratedAt = time.Now().UTC()
	return stats, nil
}

func lonWindow(latDelta, lat float64) float64 {
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	return latDelta / cosLat
}
