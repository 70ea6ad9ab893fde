// Package mapbox implements the geocode resolver against the Mapbox
// Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sperola37/smoke-watching/internal/domain"
	"github.com/sperola37/smoke-watching/internal/observability"
)

// Client implements domain.Resolver using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

var _ domain.Resolver = (*Client)(nil)

// NewClient creates a Mapbox resolver. The HTTP client timeout bounds
// every lookup so a slow upstream cannot stall the event pipeline.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve converts a free-text address to the first/best match
// coordinates. Zero matches, transport failures, and timeouts all return a
// *domain.ResolutionError so callers can treat them uniformly as
// recoverable.
func (c *Client) Resolve(ctx context.Context, address string) (domain.Coordinates, error) {
	if address == "" {
		return domain.Coordinates{}, &domain.ResolutionError{Address: address, Err: fmt.Errorf("empty address")}
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(address))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	start := time.Now()
	coords, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, &domain.ResolutionError{Address: address, Err: err}
	}
	if coords == nil {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return domain.Coordinates{}, &domain.ResolutionError{Address: address}
	}

	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return *coords, nil
}

// doRequest performs the API call. A nil result with nil error means the
// API answered with zero features.
func (c *Client) doRequest(ctx context.Context, fullURL string) (*domain.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return nil, nil
	}

	f := mapboxResp.Features[0]
	if len(f.Center) != 2 {
		return nil, fmt.Errorf("malformed feature center: %v", f.Center)
	}
	// Mapbox uses lon,lat order.
	return &domain.Coordinates{Latitude: f.Center[1], Longitude: f.Center[0]}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Relevance float64   `json:"relevance"`
}
