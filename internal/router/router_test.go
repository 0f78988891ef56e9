package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscope/poolscope/internal/agentcard"
	"github.com/poolscope/poolscope/internal/oracle"
	"github.com/poolscope/poolscope/internal/orchestrator"
)

type stubOracle struct {
	route        string
	completeText string
	completeErr  error
}

func (s *stubOracle) Complete(ctx context.Context, prompt string) (string, error) {
	return s.completeText, s.completeErr
}

func (s *stubOracle) PlanAnalysis(ctx context.Context, question, pool string, tools []oracle.ToolDescription) (oracle.Plan, error) {
	return oracle.Plan{}, nil
}

func (s *stubOracle) Route(ctx context.Context, question string) oracle.RouteDecision {
	return oracle.RouteDecision{Route: s.route, Reasoning: "stub"}
}

type fakeAgent struct {
	srv   *httptest.Server
	calls atomic.Int64
}

// newFakeAgent serves an agent card plus an analyze endpoint returning a
// fixed answer and score.
func newFakeAgent(name, answer string, score float64) *fakeAgent {
	a := &fakeAgent{}
	mux := http.NewServeMux()
	mux.HandleFunc(agentcard.WellKnownPath, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(agentcard.Card{Name: name, Version: "1.0.0"})
	})
	mux.HandleFunc("/v1/analyze", func(w http.ResponseWriter, r *http.Request) {
		a.calls.Add(1)
		var req orchestrator.Request
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(orchestrator.Response{
			Answer:    answer,
			Metadata:  map[string]any{"pool": req.PoolAddress},
			RiskScore: score,
		})
	})
	a.srv = httptest.NewServer(mux)
	return a
}

func newTestRouter(o oracle.Oracle, addresses map[string]string) *Router {
	return New(o, addresses, 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRequest() orchestrator.Request {
	return orchestrator.Request{
		Question:    "Is this pool safe?",
		PoolAddress: "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
	}
}

func TestHandleBothAgents(t *testing.T) {
	pool := newFakeAgent("Pool Risk Analyzer", "pool analysis", 60)
	token := newFakeAgent("Token Intelligence", "token analysis", 20)
	defer pool.srv.Close()
	defer token.srv.Close()

	r := newTestRouter(&stubOracle{route: oracle.RouteBoth, completeText: "combined verdict"}, map[string]string{
		AgentPoolRisk:   pool.srv.URL,
		AgentTokenIntel: token.srv.URL,
	})
	r.Discover(context.Background())
	require.Len(t, r.AgentsInfo(), 2)

	resp := r.Handle(context.Background(), testRequest())

	assert.Equal(t, "combined verdict", resp.Answer)
	assert.InDelta(t, 40.0, resp.RiskScore, 0.001)
	assert.Equal(t, 40.0, resp.Metadata["composite_risk_score"])
	assert.Equal(t, oracle.RouteBoth, resp.Metadata["route"])
	assert.Contains(t, resp.Metadata, "pool_risk")
	assert.Contains(t, resp.Metadata, "token_intel")
	assert.Equal(t, int64(1), pool.calls.Load())
	assert.Equal(t, int64(1), token.calls.Load())
}

func TestHandleSingleRoute(t *testing.T) {
	pool := newFakeAgent("Pool Risk Analyzer", "pool analysis", 72)
	token := newFakeAgent("Token Intelligence", "token analysis", 20)
	defer pool.srv.Close()
	defer token.srv.Close()

	r := newTestRouter(&stubOracle{route: oracle.RoutePoolRisk, completeText: "pool verdict"}, map[string]string{
		AgentPoolRisk:   pool.srv.URL,
		AgentTokenIntel: token.srv.URL,
	})
	r.Discover(context.Background())

	resp := r.Handle(context.Background(), testRequest())

	assert.Equal(t, 72.0, resp.RiskScore)
	assert.Contains(t, resp.Metadata, "pool_risk")
	assert.NotContains(t, resp.Metadata, "token_intel")
	assert.Equal(t, int64(1), pool.calls.Load())
	assert.Equal(t, int64(0), token.calls.Load())
}

// An agent that never answered discovery still yields a response: the
// router fills in a placeholder and the composite is the mean of the
// agents that did report, not dragged down by a zero.
func TestHandleUndiscoveredAgentExcludedFromComposite(t *testing.T) {
	pool := newFakeAgent("Pool Risk Analyzer", "pool analysis", 80)
	defer pool.srv.Close()

	r := newTestRouter(&stubOracle{route: oracle.RouteBoth, completeErr: assert.AnError}, map[string]string{
		AgentPoolRisk:   pool.srv.URL,
		AgentTokenIntel: "http://127.0.0.1:1",
	})
	r.Discover(context.Background())
	require.Len(t, r.AgentsInfo(), 1)

	resp := r.Handle(context.Background(), testRequest())

	assert.Equal(t, 80.0, resp.RiskScore)
	assert.Contains(t, resp.Answer, "token_intel agent unavailable")
	ti, ok := resp.Metadata["token_intel"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "agent not discovered", ti["error"])
}

func TestHandleAgentErrorExcludedFromComposite(t *testing.T) {
	pool := newFakeAgent("Pool Risk Analyzer", "pool analysis", 50)
	defer pool.srv.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == agentcard.WellKnownPath {
			json.NewEncoder(w).Encode(agentcard.Card{Name: "Token Intelligence"})
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	r := newTestRouter(&stubOracle{route: oracle.RouteBoth, completeErr: assert.AnError}, map[string]string{
		AgentPoolRisk:   pool.srv.URL,
		AgentTokenIntel: broken.URL,
	})
	r.Discover(context.Background())
	require.Len(t, r.AgentsInfo(), 2)

	resp := r.Handle(context.Background(), testRequest())

	assert.Equal(t, 50.0, resp.RiskScore)
	assert.Contains(t, resp.Answer, "token_intel analysis failed")
}

func TestHandleSynthesisFallback(t *testing.T) {
	pool := newFakeAgent("Pool Risk Analyzer", "pool says risky", 60)
	token := newFakeAgent("Token Intelligence", "token says fine", 10)
	defer pool.srv.Close()
	defer token.srv.Close()

	r := newTestRouter(&stubOracle{route: oracle.RouteBoth, completeErr: assert.AnError}, map[string]string{
		AgentPoolRisk:   pool.srv.URL,
		AgentTokenIntel: token.srv.URL,
	})
	r.Discover(context.Background())

	resp := r.Handle(context.Background(), testRequest())

	assert.Contains(t, resp.Answer, "pool says risky")
	assert.Contains(t, resp.Answer, "token says fine")
	assert.InDelta(t, 35.0, resp.RiskScore, 0.001)
}

func TestHandleCircuitOpens(t *testing.T) {
	var calls atomic.Int64
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == agentcard.WellKnownPath {
			json.NewEncoder(w).Encode(agentcard.Card{Name: "Pool Risk Analyzer"})
			return
		}
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	r := newTestRouter(&stubOracle{route: oracle.RoutePoolRisk, completeErr: assert.AnError}, map[string]string{
		AgentPoolRisk: broken.URL,
	})
	r.Discover(context.Background())

	for i := 0; i < 3; i++ {
		r.Handle(context.Background(), testRequest())
	}
	require.Equal(t, int64(3), calls.Load())

	resp := r.Handle(context.Background(), testRequest())
	assert.Equal(t, int64(3), calls.Load(), "open circuit must short-circuit the HTTP call")
	assert.Contains(t, resp.Answer, "pool_risk agent unavailable")
}

func TestHandleAllScoresAbsent(t *testing.T) {
	r := newTestRouter(&stubOracle{route: oracle.RouteBoth, completeErr: assert.AnError}, map[string]string{
		AgentPoolRisk:   "http://127.0.0.1:1",
		AgentTokenIntel: "http://127.0.0.1:1",
	})
	r.Discover(context.Background())

	resp := r.Handle(context.Background(), testRequest())

	assert.Equal(t, 0.0, resp.RiskScore)
	assert.Contains(t, resp.Answer, "unavailable")
}
