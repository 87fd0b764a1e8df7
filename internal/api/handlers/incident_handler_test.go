package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-ng/backend/internal/storage/sqlite"
	"github.com/sentinel-ng/backend/internal/verification"
	"github.com/sentinel-ng/backend/pkg/config"
	"github.com/sentinel-ng/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stdout"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Verification: config.VerificationConfig{
			AutoVerifyThreshold:   0.8,
			ManualReviewThreshold: 0.5,

			SpatialWeight:       0.20,
			TemporalWeight:      0.15,
			ReporterWeight:      0.30,
			CorroborationWeight: 0.25,
			DescriptionWeight:   0.10,

			CorroborationRadiusKm:    10.0,
			CorroborationWindowHours: 6,
			StoreTimeoutSec:          5,

			Bounds: config.BoundingBox{MinLat: 4.0, MaxLat: 14.0, MinLon: 2.5, MaxLon: 15.0},
			ConflictZones: []config.ConflictZone{
				{
					Name:         "northeast_insurgency",
					Bounds:       config.BoundingBox{MinLat: 10.5, MaxLat: 13.9, MinLon: 11.0, MaxLon: 14.5},
					Types:        []string{"insurgent_attack", "bomb_blast"},
					InsideScore:  0.9,
					OutsideScore: 0.6,
				},
			},
			DetailKeywords: []string{
				"armed", "men", "attacked", "village", "town", "killed", "injured",
				"gunmen", "soldiers", "police", "morning", "evening", "night",
				"road", "market", "church", "mosque", "school", "fled", "casualties",
			},
		},
	}
}

func newTestApp(t *testing.T) (*fiber.App, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema())

	cfg := testConfig()
	scorer := verification.NewScorer(&cfg.Verification, store)
	incidents := NewIncidentHandler(store, scorer, nil, nil, NewHub(), cfg)
	reviews := NewReviewHandler(store)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/incidents", incidents.CreateIncident)
	api.Get("/incidents/recent", incidents.RecentIncidents)
	api.Get("/incidents/geojson", incidents.IncidentsGeoJSON)
	api.Get("/incidents/stats", incidents.Stats)
	api.Get("/incidents/:id", incidents.GetIncident)
	api.Post("/incidents/:id/verify", reviews.VerifyIncident)
	api.Post("/incidents/:id/reject", reviews.RejectIncident)

	return app, store
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func getJSON(t *testing.T, app *fiber.App, path string) (*http.Response, map[string]interface{}) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil), 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp, decoded
}

func validSubmission() map[string]interface{} {
	return map[string]interface{}{
		"incident_type": "insurgent_attack",
		"severity":      "high",
		"description":   "Armed gunmen attacked the village market this morning, killed three people and injured several others before soldiers arrived and residents fled",
		"longitude":     13.15,
		"latitude":      11.83,
		"occurred_at":   time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339),
		"anonymous":     true,
	}
}

func TestCreateIncident(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/incidents", validSubmission())
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	assert.NotEmpty(t, body["id"])
	// 0.9*0.20 + 1.0*0.15 + 0.5*0.30 + 0.5*0.25 + 1.0*0.10
	assert.InDelta(t, 0.705, body["verification_score"].(float64), 1e-9)
	assert.Equal(t, false, body["auto_verified"])
}

func TestCreateIncidentValidation(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"unknown type", func(m map[string]interface{}) { m["incident_type"] = "alien_invasion" }},
		{"unknown severity", func(m map[string]interface{}) { m["severity"] = "apocalyptic" }},
		{"out of bounds", func(m map[string]interface{}) { m["longitude"] = -0.1278; m["latitude"] = 51.5074 }},
		{"bad timestamp", func(m map[string]interface{}) { m["occurred_at"] = "yesterday" }},
		{"empty description", func(m map[string]interface{}) { m["description"] = "   " }},
		{"markup-only description", func(m map[string]interface{}) { m["description"] = "<script>alert('x')</script>" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submission := validSubmission()
			tt.mutate(submission)

			resp, body := postJSON(t, app, "/api/v1/incidents", submission)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateIncidentSanitizesDescription(t *testing.T) {
	app, store := newTestApp(t)

	submission := validSubmission()
	submission["description"] = "<b>Armed men</b> attacked the   village"

	resp, body := postJSON(t, app, "/api/v1/incidents", submission)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	incident, err := store.GetIncident(context.Background(), body["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Armed men attacked the village", incident.Description)
}

func TestCreateIncidentKnownReporterTrust(t *testing.T) {
	app, store := newTestApp(t)
	ctx := context.Background()

	// Build a reporter with a track record of 10 submissions, 8 verified
	// and 2 rejected, which recomputes to trust 0.64.
	for i := 0; i < 10; i++ {
		require.NoError(t, store.RecordSubmission(ctx, "rep-1"))
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, store.ApplyReviewOutcome(ctx, "rep-1", true))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, store.ApplyReviewOutcome(ctx, "rep-1", false))
	}

	submission := validSubmission()
	submission["anonymous"] = false
	submission["reporter_id"] = "rep-1"

	resp, body := postJSON(t, app, "/api/v1/incidents", submission)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// 0.9*0.20 + 1.0*0.15 + 0.64*0.30 + 0.5*0.25 + 1.0*0.10
	assert.InDelta(t, 0.747, body["verification_score"].(float64), 1e-9)

	reporter, err := store.GetReporter(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 11, reporter.ReportsSubmitted)
}

func TestGetIncidentRoundtrip(t *testing.T) {
	app, _ := newTestApp(t)

	_, created := postJSON(t, app, "/api/v1/incidents", validSubmission())
	id := created["id"].(string)

	resp, feature := getJSON(t, app, "/api/v1/incidents/"+id)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "Feature", feature["type"])
	geometry := feature["geometry"].(map[string]interface{})
	assert.Equal(t, "Point", geometry["type"])
	coords := geometry["coordinates"].([]interface{})
	assert.InDelta(t, 13.15, coords[0].(float64), 1e-9)
	assert.InDelta(t, 11.83, coords[1].(float64), 1e-9)
}

func TestGetIncidentNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := getJSON(t, app, "/api/v1/incidents/does-not-exist")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRecentIncidentsAndGeoJSON(t *testing.T) {
	app, _ := newTestApp(t)

	for i := 0; i < 3; i++ {
		submission := validSubmission()
		submission["occurred_at"] = time.Now().UTC().Add(-time.Duration(i+1) * time.Hour).Format(time.RFC3339)
		resp, _ := postJSON(t, app, "/api/v1/incidents", submission)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, body := getJSON(t, app, "/api/v1/incidents/recent?limit=2")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["count"])

	resp, body = getJSON(t, app, "/api/v1/incidents/geojson")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"].([]interface{}), 3)
}

func TestStats(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/incidents", validSubmission())
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := getJSON(t, app, "/api/v1/incidents/stats")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])
	byType := body["by_type"].(map[string]interface{})
	assert.EqualValues(t, 1, byType["insurgent_attack"])
}

func TestReviewWorkflow(t *testing.T) {
	app, store := newTestApp(t)

	submission := validSubmission()
	submission["anonymous"] = false
	submission["reporter_id"] = "rep-1"
	_, created := postJSON(t, app, "/api/v1/incidents", submission)
	id := created["id"].(string)

	resp, body := postJSON(t, app, "/api/v1/incidents/"+id+"/verify",
		map[string]interface{}{"notes": "confirmed by field team"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])

	incident, err := store.GetIncident(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, incident.Verified)
	assert.Equal(t, "confirmed by field team", incident.VerificationNotes)

	reporter, err := store.GetReporter(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 1, reporter.ReportsVerified)
	assert.Greater(t, reporter.TrustScore, 0.0)
}

func TestRejectUpdatesReporter(t *testing.T) {
	app, store := newTestApp(t)

	submission := validSubmission()
	submission["anonymous"] = false
	submission["reporter_id"] = "rep-2"
	_, created := postJSON(t, app, "/api/v1/incidents", submission)
	id := created["id"].(string)

	resp, body := postJSON(t, app, "/api/v1/incidents/"+id+"/reject", map[string]interface{}{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["verified"])

	reporter, err := store.GetReporter(context.Background(), "rep-2")
	require.NoError(t, err)
	assert.Equal(t, 1, reporter.ReportsRejected)
}

func TestRepeatedVerifyUpdatesTrustOnce(t *testing.T) {
	app, store := newTestApp(t)

	submission := validSubmission()
	submission["anonymous"] = false
	submission["reporter_id"] = "rep-1"
	_, created := postJSON(t, app, "/api/v1/incidents", submission)
	id := created["id"].(string)

	for i := 0; i < 3; i++ {
		resp, body := postJSON(t, app, "/api/v1/incidents/"+id+"/verify", map[string]interface{}{})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "attempt %d", i)
		assert.Equal(t, true, body["verified"])
	}

	reporter, err := store.GetReporter(context.Background(), "rep-1")
	require.NoError(t, err)
	require.NotNil(t, reporter)
	assert.Equal(t, 1, reporter.ReportsSubmitted)
	assert.Equal(t, 1, reporter.ReportsVerified)
	assert.Equal(t, 0, reporter.ReportsRejected)
	assert.InDelta(t, 0.525, reporter.TrustScore, 1e-9)
}

func TestRejectAfterVerifyIsIgnored(t *testing.T) {
	app, store := newTestApp(t)

	submission := validSubmission()
	submission["anonymous"] = false
	submission["reporter_id"] = "rep-1"
	_, created := postJSON(t, app, "/api/v1/incidents", submission)
	id := created["id"].(string)

	resp, _ := postJSON(t, app, "/api/v1/incidents/"+id+"/verify", map[string]interface{}{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The first decision is final; the flip answers with the recorded state.
	resp, body := postJSON(t, app, "/api/v1/incidents/"+id+"/reject", map[string]interface{}{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])

	incident, err := store.GetIncident(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, incident.Verified)

	reporter, err := store.GetReporter(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 1, reporter.ReportsVerified)
	assert.Equal(t, 0, reporter.ReportsRejected)
}

func TestReviewOfAutoVerifiedIncident(t *testing.T) {
	app, store := newTestApp(t)

	// Three anonymous reports saturate corroboration so the fourth,
	// attributed one auto-verifies at 0.83.
	for i := 0; i < 3; i++ {
		resp, _ := postJSON(t, app, "/api/v1/incidents", validSubmission())
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	submission := validSubmission()
	submission["anonymous"] = false
	submission["reporter_id"] = "rep-1"
	_, created := postJSON(t, app, "/api/v1/incidents", submission)
	require.Equal(t, true, created["auto_verified"])
	id := created["id"].(string)

	// Confirming an auto-verified incident changes nothing and credits
	// nobody.
	resp, body := postJSON(t, app, "/api/v1/incidents/"+id+"/verify", map[string]interface{}{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])

	reporter, err := store.GetReporter(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 0, reporter.ReportsVerified)

	// A human rejection overrides the automatic decision.
	resp, body = postJSON(t, app, "/api/v1/incidents/"+id+"/reject", map[string]interface{}{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["verified"])

	reporter, err = store.GetReporter(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 1, reporter.ReportsRejected)
}

func TestRejectedSubmissionLeavesNoReporter(t *testing.T) {
	app, store := newTestApp(t)

	submission := validSubmission()
	submission["anonymous"] = false
	submission["reporter_id"] = "rep-new"
	submission["occurred_at"] = "not a timestamp"

	resp, _ := postJSON(t, app, "/api/v1/incidents", submission)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	reporter, err := store.GetReporter(context.Background(), "rep-new")
	require.NoError(t, err)
	assert.Nil(t, reporter)
}

func TestReviewNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/incidents/missing/verify", map[string]interface{}{})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCorroborationRaisesScore(t *testing.T) {
	app, _ := newTestApp(t)

	var lastScore float64
	for i := 0; i < 4; i++ {
		resp, body := postJSON(t, app, "/api/v1/incidents", validSubmission())
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		score := body["verification_score"].(float64)
		if i > 0 {
			assert.Greater(t, score, lastScore, fmt.Sprintf("submission %d", i))
		}
		lastScore = score
	}

	// With three prior matching reports the corroboration component is
	// saturated at 1.0.
	// 0.9*0.20 + 1.0*0.15 + 0.5*0.30 + 1.0*0.25 + 1.0*0.10
	assert.InDelta(t, 0.83, lastScore, 1e-9)
}
