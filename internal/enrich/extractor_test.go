package enrich

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL, apiKey string) *Client {
	return New(Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtract_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Headline string   `json:"headline"`
			Snippets []string `json:"snippets"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Multi-vehicle crash shuts down I-25 in Denver", req.Headline)
		assert.Len(t, req.Snippets, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"facts":{"vehicles":3},"seo_title":"I-25 Denver Crash"}`))
	}))
	defer ts.Close()

	facts, err := testClient(ts.URL, "test-key").Extract(
		context.Background(),
		"Multi-vehicle crash shuts down I-25 in Denver",
		[]string{"A collision closed the interstate for hours."},
	)

	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, "I-25 Denver Crash", facts.SEOTitle)
	assert.JSONEq(t, `{"vehicles":3}`, string(facts.Facts))
}

func TestExtract_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	facts, err := testClient(ts.URL, "").Extract(context.Background(), "headline", nil)

	require.NoError(t, err)
	assert.Nil(t, facts)
}

func TestExtract_EmptyPayloadTreatedAsNoFacts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	facts, err := testClient(ts.URL, "").Extract(context.Background(), "headline", nil)

	require.NoError(t, err)
	assert.Nil(t, facts)
}

func TestExtract_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL, "").Extract(context.Background(), "headline", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status: 500")
}
