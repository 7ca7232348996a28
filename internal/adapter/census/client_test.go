package census

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
	}
}

func TestClient_Geocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "4600 Silver Hill Rd, Washington, DC 20233", q.Get("address"))
		assert.Equal(t, "Public_AR_Current", q.Get("benchmark"))
		assert.Equal(t, "json", q.Get("format"))
		_, _ = w.Write([]byte(`{"result": {"addressMatches": [
			{"matchedAddress": "4600 SILVER HILL RD, WASHINGTON, DC, 20233", "coordinates": {"x": -76.92744, "y": 38.845985}}
		]}}`))
	}))
	defer srv.Close()

	matches, err := testClient(srv.URL).Geocode(context.Background(), "4600 Silver Hill Rd, Washington, DC 20233")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 38.845985, matches[0].Lat)
	assert.Equal(t, -76.92744, matches[0].Lng)
	assert.Equal(t, "4600 SILVER HILL RD, WASHINGTON, DC, 20233", matches[0].Label)
}

func TestClient_Geocode_NoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"addressMatches": []}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Geocode(context.Background(), "Roswell, NM")
	require.Error(t, err)
	assert.Equal(t, domain.FailureNoMatch, domain.FailureKindOf(err))
}

func TestClient_Geocode_Status(t *testing.T) {
	tests := []struct {
		status int
		kind   domain.FailureKind
	}{
		{http.StatusBadRequest, domain.FailureNoMatch},
		{http.StatusTooManyRequests, domain.FailureRateLimited},
		{http.StatusServiceUnavailable, domain.FailureUpstream},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Geocode(context.Background(), "Roswell, NM")
			assert.Equal(t, tt.kind, domain.FailureKindOf(err))
		})
	}
}

func TestClient_Geocode_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": `))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Geocode(context.Background(), "Roswell, NM")
	assert.Equal(t, domain.FailureMalformed, domain.FailureKindOf(err))
}

func TestNewClient(t *testing.T) {
	c := NewClient(time.Second, 2, nil)
	assert.Equal(t, "census", c.Name())
	assert.Equal(t, defaultBaseURL, c.baseURL)
}
