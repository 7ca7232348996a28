// Package google geocodes free-text locations with the Google Geocoding API.
package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
	"github.com/couchcryptid/ufo-sightings-etl/internal/observability"
)

const (
	providerName   = "google"
	defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
)

// Google API status values.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusOverDailyLimit = "OVER_DAILY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusInvalidRequest = "INVALID_REQUEST"
)

// Client implements domain.Provider.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
}

// NewClient creates a Google geocoding client limited to qps requests per second.
func NewClient(apiKey string, timeout time.Duration, qps float64, metrics *observability.Metrics) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(qps), 1),
		metrics:    metrics,
	}
}

// Name implements domain.Provider.
func (c *Client) Name() string { return providerName }

// Geocode implements domain.Provider.
func (c *Client) Geocode(ctx context.Context, query string) (matches []domain.Match, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(domain.FailureKindOf(err))
		}
		c.metrics.ObserveGeocode(providerName, outcome, time.Since(start))
	}()

	if c.apiKey == "" {
		return nil, c.fail(domain.FailureAuth, eris.New("google: api key not configured"))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "google: rate limit wait"))
		}
	}

	params := url.Values{
		"address": {query},
		"key":     {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, c.fail(domain.FailureMalformed, eris.Wrap(err, "google: build request"))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "google: request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(httpStatusKind(resp.StatusCode), eris.Errorf("google: returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "google: read body"))
	}

	var googleResp geocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, c.fail(domain.FailureMalformed, eris.Wrap(err, "google: parse response"))
	}

	switch googleResp.Status {
	case statusOK:
	case statusZeroResults:
		return nil, c.fail(domain.FailureNoMatch, nil)
	default:
		return nil, c.fail(apiStatusKind(googleResp.Status),
			eris.Errorf("google: api status %s: %s", googleResp.Status, googleResp.ErrorMessage))
	}

	for _, r := range googleResp.Results {
		matches = append(matches, domain.Match{
			Label: r.FormattedAddress,
			Lat:   r.Geometry.Location.Lat,
			Lng:   r.Geometry.Location.Lng,
		})
	}
	if len(matches) == 0 {
		return nil, c.fail(domain.FailureNoMatch, nil)
	}
	return matches, nil
}

func (c *Client) fail(kind domain.FailureKind, err error) error {
	return domain.NewProviderError(providerName, kind, err)
}

func httpStatusKind(status int) domain.FailureKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.FailureAuth
	case http.StatusTooManyRequests:
		return domain.FailureRateLimited
	default:
		return domain.FailureUpstream
	}
}

func apiStatusKind(status string) domain.FailureKind {
	switch status {
	case statusOverQueryLimit, statusOverDailyLimit:
		return domain.FailureRateLimited
	case statusRequestDenied:
		return domain.FailureAuth
	case statusInvalidRequest:
		return domain.FailureMalformed
	default:
		return domain.FailureUpstream
	}
}

type geocodeResponse struct {
	Results      []result `json:"results"`
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

type result struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}
