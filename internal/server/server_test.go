package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crashfeed/internal/domain"
)

type fakeRunner struct {
	summary   *domain.RunSummary
	err       error
	lastLimit int
	calls     int
}

func (f *fakeRunner) Run(_ context.Context, limit int) (*domain.RunSummary, error) {
	f.calls++
	f.lastLimit = limit
	return f.summary, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(context.Context) error {
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(cfg Config, runner *fakeRunner, pinger Pinger) *httptest.Server {
	return httptest.NewServer(New(cfg, runner, pinger, testLogger()).Handler())
}

func doRun(t *testing.T, ts *httptest.Server, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHandleRun_ValidToken(t *testing.T) {
	runner := &fakeRunner{summary: &domain.RunSummary{
		Queries:      2,
		NewIncidents: 1,
		Duration:     1500 * time.Millisecond,
	}}
	ts := newTestServer(Config{Environment: "production", CronSecret: "s3cret"}, runner, nil)
	defer ts.Close()

	resp := doRun(t, ts, "/api/ingest/run", "s3cret")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		OK           bool  `json:"ok"`
		DurationMS   int64 `json:"duration_ms"`
		NewIncidents int   `json:"new_incidents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.OK)
	assert.Equal(t, int64(1500), body.DurationMS)
	assert.Equal(t, 1, body.NewIncidents)
	assert.Equal(t, 1, runner.calls)
}

func TestHandleRun_MissingToken(t *testing.T) {
	runner := &fakeRunner{summary: &domain.RunSummary{}}
	ts := newTestServer(Config{Environment: "production", CronSecret: "s3cret"}, runner, nil)
	defer ts.Close()

	resp := doRun(t, ts, "/api/ingest/run", "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, `Bearer realm="ingest"`, resp.Header.Get("WWW-Authenticate"))
	assert.Equal(t, 0, runner.calls)
}

func TestHandleRun_WrongToken(t *testing.T) {
	runner := &fakeRunner{summary: &domain.RunSummary{}}
	ts := newTestServer(Config{Environment: "production", CronSecret: "s3cret"}, runner, nil)
	defer ts.Close()

	resp := doRun(t, ts, "/api/ingest/run", "not-it")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, runner.calls)
}

func TestHandleRun_MissingSecretInProduction(t *testing.T) {
	runner := &fakeRunner{summary: &domain.RunSummary{}}
	ts := newTestServer(Config{Environment: "production"}, runner, nil)
	defer ts.Close()

	resp := doRun(t, ts, "/api/ingest/run", "anything")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 0, runner.calls)
}

func TestHandleRun_NoSecretOutsideProduction(t *testing.T) {
	runner := &fakeRunner{summary: &domain.RunSummary{}}
	ts := newTestServer(Config{Environment: "development"}, runner, nil)
	defer ts.Close()

	resp := doRun(t, ts, "/api/ingest/run", "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, runner.calls)
}

func TestHandleRun_LimitParam(t *testing.T) {
	runner := &fakeRunner{summary: &domain.RunSummary{}}
	ts := newTestServer(Config{Environment: "development"}, runner, nil)
	defer ts.Close()

	resp := doRun(t, ts, "/api/ingest/run?limit=3", "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, runner.lastLimit)

	resp = doRun(t, ts, "/api/ingest/run?limit=nope", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRun(t, ts, "/api/ingest/run?limit=-1", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRun_RunError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("normalization stage broken")}
	ts := newTestServer(Config{Environment: "development"}, runner, nil)
	defer ts.Close()

	resp := doRun(t, ts, "/api/ingest/run", "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.OK)
	assert.Contains(t, body.Error, "normalization stage broken")
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(Config{Environment: "development"}, &fakeRunner{}, &fakePinger{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleHealth_DatabaseDown(t *testing.T) {
	ts := newTestServer(Config{Environment: "development"}, &fakeRunner{}, &fakePinger{err: errors.New("connection refused")})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
