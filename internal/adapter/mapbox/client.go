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

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
	"github.com/couchcryptid/ufo-sightings-etl/internal/observability"
)

const (
	providerName   = "mapbox"
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	maxCandidates  = 5
)

// Client implements domain.Provider using the Mapbox forward Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client limited to qps requests per second.
func NewClient(token string, timeout time.Duration, qps float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(qps), 1),
		metrics: metrics,
		logger:  logger,
	}
}

// Name implements domain.Provider.
func (c *Client) Name() string { return providerName }

// Geocode implements domain.Provider. Features come back in relevance order.
func (c *Client) Geocode(ctx context.Context, query string) (matches []domain.Match, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(domain.FailureKindOf(err))
		}
		c.metrics.ObserveGeocode(providerName, outcome, time.Since(start))
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "mapbox: rate limit wait"))
		}
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {fmt.Sprint(maxCandidates)},
		"autocomplete": {"false"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return nil, c.fail(domain.FailureMalformed, eris.Wrap(err, "mapbox: create request"))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "mapbox: forward geocode request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(statusKind(resp.StatusCode), eris.Errorf("mapbox: API error: status %d: %s", resp.StatusCode, body))
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, c.fail(domain.FailureMalformed, eris.Wrap(err, "mapbox: decode response"))
	}

	for _, f := range mapboxResp.Features {
		if len(f.Center) != 2 {
			continue
		}
		// Mapbox uses lon,lat order.
		matches = append(matches, domain.Match{
			Label: f.PlaceName,
			Lat:   f.Center[1],
			Lng:   f.Center[0],
		})
	}
	if len(matches) == 0 {
		return nil, c.fail(domain.FailureNoMatch, nil)
	}
	c.logger.Debug("mapbox geocode", "query", query, "candidates", len(matches), "top_relevance", mapboxResp.Features[0].Relevance)
	return matches, nil
}

func (c *Client) fail(kind domain.FailureKind, err error) error {
	return domain.NewProviderError(providerName, kind, err)
}

func statusKind(status int) domain.FailureKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.FailureAuth
	case http.StatusTooManyRequests:
		return domain.FailureRateLimited
	default:
		return domain.FailureUpstream
	}
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
