// Package brasilapi implements the external CEP fallback against the
// BrasilAPI CEP v2 service.
package brasilapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/observability"
)

// Client implements domain.CEPFallback using BrasilAPI CEP v2.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a BrasilAPI client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Lookup queries /api/cep/v2/{cep}. A 404 means the CEP is unknown and
// returns (nil, nil); other non-200 responses and malformed payloads are
// errors. Missing or unparseable coordinates yield an address that reports
// HasCoordinates() == false.
func (c *Client) Lookup(ctx context.Context, cep string) (*domain.FallbackAddress, error) {
	u := fmt.Sprintf("%s/api/cep/v2/%s", c.baseURL, cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FallbackAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FallbackRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cep lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.metrics.FallbackRequests.WithLabelValues("empty").Inc()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.metrics.FallbackRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("brasilapi error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.FallbackRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	addr := &domain.FallbackAddress{
		Neighborhood: payload.Neighborhood,
		City:         payload.City,
		State:        payload.State,
		Lat:          parseCoordinate(payload.Location.Coordinates.Latitude),
		Lon:          parseCoordinate(payload.Location.Coordinates.Longitude),
	}
	if addr.HasCoordinates() {
		c.metrics.FallbackRequests.WithLabelValues("success").Inc()
	} else {
		c.metrics.FallbackRequests.WithLabelValues("empty").Inc()
	}
	return addr, nil
}

// parseCoordinate handles BrasilAPI's string-encoded coordinates; absent or
// malformed values become 0, the service's "no data" sentinel.
func parseCoordinate(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// BrasilAPI CEP v2 response types. Coordinates arrive as strings.

type response struct {
	CEP          string   `json:"cep"`
	State        string   `json:"state"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Street       string   `json:"street"`
	Location     location `json:"location"`
}

type location struct {
	Type        string      `json:"type"`
	Coordinates coordinates `json:"coordinates"`
}

type coordinates struct {
	Longitude string `json:"longitude"`
	Latitude  string `json:"latitude"`
}
