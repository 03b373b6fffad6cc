package rest

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathval/internal/infra/metrics"
	"pathval/internal/infra/netutil"
)

func buildServer(t *testing.T, cidrs ...string) *Server {
	t.Helper()
	if len(cidrs) == 0 {
		cidrs = []string{"127.0.0.0/8", "::1/128"}
	}
	allowed, err := netutil.ParseCIDRs(cidrs)
	require.NoError(t, err)
	logger := zerolog.Nop()
	return New(Options{Logger: logger, Registry: metrics.Init(logger), AdminCIDRs: allowed})
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHealthzEndpoint(t *testing.T) {
	srv := httptest.NewServer(buildServer(t).Handler())
	t.Cleanup(srv.Close)

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestReadyzFollowsState(t *testing.T) {
	s := buildServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, _ := get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.SetReady(true)
	resp, body := get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body)
}

func TestVersionEndpoint(t *testing.T) {
	srv := httptest.NewServer(buildServer(t).Handler())
	t.Cleanup(srv.Close)

	resp, body := get(t, srv.URL+"/version")
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	var info buildInfo
	require.NoError(t, json.Unmarshal([]byte(body), &info))
	assert.Equal(t, Version, info.Version)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.PathsEvaluatedTotal.WithLabelValues("uncapped").Add(0)
	srv := httptest.NewServer(buildServer(t).Handler())
	t.Cleanup(srv.Close)

	resp, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, "hops_evaluated_total"), "metrics output did not contain expected metrics")
}

func TestMetricsGatedByCIDR(t *testing.T) {
	s := buildServer(t, "10.0.0.0/8")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = net.JoinHostPort("127.0.0.1", "4000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
