// Package geocoding resolves incident coordinates to human-readable place
// names through the Nominatim reverse-geocoding API, with an offline
// bounding-box fallback. Geocoding is best-effort: it decorates incidents
// and never participates in verification scoring.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/geo"
	"github.com/sentinel-ng/backend/pkg/circuitbreaker"
	"github.com/sentinel-ng/backend/pkg/logger"
	"github.com/sentinel-ng/backend/pkg/retry"
)

// Location is the resolved place information for a coordinate pair.
type Location struct {
	Name  string
	State string
	LGA   string
	City  string
}

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	retryCfg   retry.Config
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 2
	retryCfg.Logger = logger.Log

	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: circuitbreaker.New("nominatim", circuitbreaker.Config{
			FailureThreshold: 5,
			Cooldown:         2 * time.Minute,
			Logger:           logger.Log,
		}),
		retryCfg: retryCfg,
	}
}

// Reverse resolves coordinates to a location. On any failure it falls back
// to the approximate state lookup; the second return value reports whether
// anything could be resolved at all.
func (c *Client) Reverse(ctx context.Context, lon, lat float64) (Location, bool) {
	var loc Location

	err := c.breaker.Execute(func() error {
		return retry.Do(ctx, c.retryCfg, func() error {
			resolved, err := c.lookup(ctx, lon, lat)
			if err != nil {
				return err
			}
			loc = resolved
			return nil
		})
	})
	if err == nil {
		return loc, true
	}

	logger.Warn("Reverse geocoding failed, using state fallback",
		zap.Float64("lon", lon),
		zap.Float64("lat", lat),
		zap.Error(err),
	)

	if state, ok := geo.StateAt(lon, lat); ok {
		return Location{Name: state, State: state}, true
	}
	return Location{}, false
}

type nominatimResponse struct {
	Error       string            `json:"error"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

func (c *Client) lookup(ctx context.Context, lon, lat float64) (Location, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("zoom", "18")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to build geocode request: %w", err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geocode request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Location{}, fmt.Errorf("failed to read geocode response: %w", err)
	}

	var parsed nominatimResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Location{}, fmt.Errorf("failed to parse geocode response: %w", err)
	}
	if parsed.Error != "" {
		return Location{}, fmt.Errorf("geocoder error: %s", parsed.Error)
	}

	return buildLocation(parsed), nil
}

func buildLocation(resp nominatimResponse) Location {
	addr := resp.Address

	state := firstOf(addr, "state", "region", "province")
	state = normalizeState(state)

	lga := firstOf(addr, "county", "municipality", "local_government_area")
	city := firstOf(addr, "city", "town", "village", "hamlet")

	var parts []string
	if city != "" {
		parts = append(parts, city)
	}
	if lga != "" && lga != city {
		parts = append(parts, lga)
	}
	if state != "" {
		parts = append(parts, state)
	}

	name := strings.Join(parts, ", ")
	if name == "" {
		name = resp.DisplayName
	}

	return Location{Name: name, State: state, LGA: lga, City: city}
}

func firstOf(addr map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := addr[k]; v != "" {
			return v
		}
	}
	return ""
}

// normalizeState maps geocoder state strings like "Borno State" onto the
// canonical state names.
func normalizeState(state string) string {
	if state == "" || geo.KnownState(state) {
		return state
	}

	lower := strings.ToLower(state)
	for _, known := range geo.States {
		knownLower := strings.ToLower(known)
		if strings.Contains(lower, knownLower) || strings.Contains(knownLower, lower) {
			return known
		}
	}
	return state
}
