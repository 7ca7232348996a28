// Package census geocodes locations with the US Census Bureau one-line
// address geocoder. It needs no credentials but only matches street
// addresses inside the United States.
package census

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
	providerName   = "census"
	defaultBaseURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	benchmark      = "Public_AR_Current"
)

// Client implements domain.Provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
}

func NewClient(timeout time.Duration, qps float64, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(qps), 1),
		metrics:    metrics,
	}
}

func (c *Client) Name() string { return providerName }

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
			return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "census: rate limit wait"))
		}
	}

	params := url.Values{
		"address":   {query},
		"benchmark": {benchmark},
		"format":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, c.fail(domain.FailureMalformed, eris.Wrap(err, "census: build request"))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "census: request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.fail(domain.FailureRateLimited, eris.Errorf("census: returned status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusBadRequest:
		// The geocoder answers unparseable addresses with 400.
		return nil, c.fail(domain.FailureNoMatch, eris.Errorf("census: returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, c.fail(domain.FailureUpstream, eris.Errorf("census: returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(domain.FailureTransport, eris.Wrap(err, "census: read body"))
	}

	var censusResp oneLineResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, c.fail(domain.FailureMalformed, eris.Wrap(err, "census: parse response"))
	}

	for _, m := range censusResp.Result.AddressMatches {
		matches = append(matches, domain.Match{
			Label: m.MatchedAddress,
			Lat:   m.Coordinates.Y,
			Lng:   m.Coordinates.X,
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

type oneLineResponse struct {
	Result struct {
		AddressMatches []addressMatch `json:"addressMatches"`
	} `json:"result"`
}

type addressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}
