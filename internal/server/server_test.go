package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscope/poolscope/internal/agentcard"
	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/health"
	"github.com/poolscope/poolscope/internal/orchestrator"
)

const validPool = "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"

func testConfig() *config.Config {
	return &config.Config{
		Port:      "0",
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "text",
	}
}

func testCard() agentcard.Card {
	return agentcard.Card{Name: "Pool Risk Analyzer", Version: "1.0.0"}
}

func echoAnalyze(ctx context.Context, req orchestrator.Request) orchestrator.Response {
	return orchestrator.Response{
		Answer:    "analyzed " + req.PoolAddress,
		Metadata:  map[string]any{"trace_id": req.TraceID, "question": req.Question, "risk_level": "MEDIUM"},
		RiskScore: 42,
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return New(testConfig(), testCard(), echoAnalyze, opts...)
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/analyze", map[string]any{
		"user_question": "Is this pool safe?",
		"pool_address":  validPool,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "analyzed "+validPool, resp.Answer)
	assert.Equal(t, 42.0, resp.RiskScore)
	assert.NotEmpty(t, resp.Metadata["trace_id"], "trace id assigned when absent")
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestAnalyzeNormalizesPoolAddress(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/analyze", map[string]any{
		"user_question": "check it",
		"pool_address":  "0x88E6A0C2DDD26FEEB64F039A2C41296FCB3F5640",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "analyzed "+validPool, resp.Answer)
}

func TestAnalyzeValidation(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing question", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/v1/analyze", map[string]any{"pool_address": validPool})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid pool address", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/v1/analyze", map[string]any{
			"user_question": "check",
			"pool_address":  "not-an-address",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalyzePropagatesTraceHeader(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(map[string]any{"user_question": "check", "pool_address": validPool})
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", &buf)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))
	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "trace-123", resp.Metadata["trace_id"])
}

func TestAgentCardEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, agentcard.WellKnownPath, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var card agentcard.Card
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "Pool Risk Analyzer", card.Name)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, WithHealthCheck("subgraph", func(ctx context.Context) health.Status {
		return health.Status{Name: "subgraph", Healthy: true}
	}))

	rec := doRequest(s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready before Run")

	s.ready.Store(true)
	rec = doRequest(s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzFailingCheck(t *testing.T) {
	s := newTestServer(t, WithHealthCheck("oracle", func(ctx context.Context) health.Status {
		return health.Status{Name: "oracle", Healthy: false, Detail: "connection refused"}
	}))
	s.ready.Store(true)

	rec := doRequest(s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "poolscope_")
}

func TestExtraRoute(t *testing.T) {
	s := newTestServer(t, WithRoute(http.MethodGet, "/v1/report/:pool", func(c *gin.Context) {
		c.String(http.StatusOK, "# Report for %s", c.Param("pool"))
	}))

	rec := doRequest(s, http.MethodGet, "/v1/report/"+validPool, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Report for "+validPool)
}
