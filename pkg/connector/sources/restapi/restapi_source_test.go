package restapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/errors"
)

func newTestSource(t *testing.T, handler http.Handler) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	conn, err := New(&config.ConnectorConfig{
		Name:           "testprovider",
		Type:           "restapi",
		Enabled:        true,
		BaseURL:        server.URL,
		APIKey:         "test-key",
		RequestTimeout: 2 * time.Second,
		RetryDelay:     time.Millisecond,
	})
	require.NoError(t, err)
	return conn.(*Source)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(&config.ConnectorConfig{Name: "x", Type: "restapi"})
	assert.Error(t, err)
}

func TestSearchProperties(t *testing.T) {
	var gotPath, gotLocation, gotLimit string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLocation = r.URL.Query().Get("location")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"properties":[{"id":"p1","price":750000,"address":{"street":"123 Main St","city":"San Francisco","state":"CA","zip":"94105"}}]}`))
	})

	s := newTestSource(t, handler)
	raws, err := s.SearchProperties(context.Background(), "San Francisco, CA", &core.SearchOptions{Limit: 25})
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "/properties/search", gotPath)
	assert.Equal(t, "San Francisco, CA", gotLocation)
	assert.Equal(t, "25", gotLimit)
	assert.Equal(t, "p1", raws[0]["id"])
}

func TestGetPropertyDetails(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties/p42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p42","status":"active"}`))
	})

	s := newTestSource(t, handler)
	raw, err := s.GetPropertyDetails(context.Background(), "p42")
	require.NoError(t, err)
	assert.Equal(t, "p42", raw["id"])
}

func TestRateLimitResponseClassified(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	s := newTestSource(t, handler)
	_, err := s.SearchProperties(context.Background(), "Oakland, CA", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
}

func TestAuthFailureClassified(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	s := newTestSource(t, handler)
	_, err := s.GetPropertyDetails(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestServerErrorDoesNotRetry(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	})

	s := newRetryingSource(t, handler, 3)
	_, err := s.SearchProperties(context.Background(), "Oakland, CA", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
	assert.Equal(t, 1, attempts, "upstream 5xx is not retryable")
}

func TestRateLimitRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"properties":[]}`))
	})

	s := newRetryingSource(t, handler, 3)
	raws, err := s.SearchProperties(context.Background(), "Oakland, CA", nil)
	require.NoError(t, err)
	assert.Empty(t, raws)
	assert.Equal(t, 3, attempts)
}

func newRetryingSource(t *testing.T, handler http.Handler, retries int) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	conn, err := New(&config.ConnectorConfig{
		Name:           "testprovider",
		Type:           "restapi",
		Enabled:        true,
		BaseURL:        server.URL,
		RequestTimeout: time.Second,
		RetryAttempts:  retries,
		RetryDelay:     time.Millisecond,
	})
	require.NoError(t, err)
	return conn.(*Source)
}

func TestStandardizeProperty(t *testing.T) {
	s := newTestSource(t, http.NotFoundHandler())

	rec, err := s.StandardizeProperty(map[string]interface{}{
		"id":          "p1",
		"price":       750000.0,
		"bedrooms":    3.0,
		"bathrooms":   2.5,
		"square_feet": 1500.0,
		"status":      "active",
		"address": map[string]interface{}{
			"street": "123 Main St",
			"city":   "San Francisco",
			"state":  "CA",
			"zip":    "94105",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ExternalID)
	assert.Equal(t, "testprovider", rec.Source)
	assert.Equal(t, "123 Main St", rec.Address.Street)
	assert.Equal(t, 750000.0, rec.Price)
	assert.Equal(t, 3, rec.Bedrooms)
	assert.Equal(t, 2.5, rec.Bathrooms)
	assert.Equal(t, 1500, rec.SquareFeet)
	assert.NotNil(t, rec.Metadata)
}

func TestStandardizePropertyRequiresID(t *testing.T) {
	s := newTestSource(t, http.NotFoundHandler())
	_, err := s.StandardizeProperty(map[string]interface{}{"price": 1.0})
	assert.Error(t, err)
}
