// Package router is the top-level orchestrator: it discovers the remote
// analysis agents, routes a query to one or both of them, and aggregates
// their answers into a single response.
//
// Structurally this is the same plan-execute shape as the in-process
// orchestrator, except the "tools" are remote agents reached over HTTP and
// guarded by a per-agent circuit breaker.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/poolscope/poolscope/internal/agentcard"
	"github.com/poolscope/poolscope/internal/circuitbreaker"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/metrics"
	"github.com/poolscope/poolscope/internal/oracle"
	"github.com/poolscope/poolscope/internal/orchestrator"
	"github.com/poolscope/poolscope/internal/traces"
)

// AgentPoolRisk and AgentTokenIntel are the canonical agent keys; they
// double as circuit breaker keys and routing targets.
const (
	AgentPoolRisk   = "pool_risk"
	AgentTokenIntel = "token_intel"
)

// analyzePath is the agent invocation endpoint relative to the base URL.
const analyzePath = "/v1/analyze"

type connection struct {
	card    agentcard.Card
	baseURL string
}

// Router discovers and fronts the remote agents.
type Router struct {
	oracle     oracle.Oracle
	resolver   *agentcard.Resolver
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	addresses  map[string]string
	logger     *slog.Logger

	mu          sync.RWMutex
	connections map[string]connection
}

// New builds a router over the configured agent addresses. Call Discover
// before handling requests; undiscovered agents degrade to placeholders.
func New(o oracle.Oracle, addresses map[string]string, timeout time.Duration, logger *slog.Logger) *Router {
	return &Router{
		oracle:      o,
		resolver:    agentcard.NewResolver(timeout),
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     circuitbreaker.New(3, 30*time.Second),
		addresses:   addresses,
		logger:      logger,
		connections: make(map[string]connection),
	}
}

// Discover resolves every configured agent's card in parallel. A failure
// for one agent only removes that agent from the routing table; discovery
// itself never fails.
func (r *Router) Discover(ctx context.Context) {
	type resolved struct {
		name string
		conn connection
		err  error
	}

	results := make(chan resolved, len(r.addresses))
	for name, addr := range r.addresses {
		go func(name, addr string) {
			card, err := r.resolver.Resolve(ctx, addr)
			results <- resolved{name: name, conn: connection{card: card, baseURL: addr}, err: err}
		}(name, addr)
	}

	discovered := make(map[string]connection, len(r.addresses))
	for range r.addresses {
		res := <-results
		if res.err != nil {
			r.logger.Error("agent discovery failed", "agent", res.name, "error", res.err)
			continue
		}
		discovered[res.name] = res.conn
		r.logger.Info("agent discovered", "agent", res.name, "card_name", res.conn.card.Name,
			"skills", len(res.conn.card.Skills))
	}

	r.mu.Lock()
	r.connections = discovered
	r.mu.Unlock()
	metrics.DiscoveredAgents.Set(float64(len(discovered)))
}

// AgentsInfo summarizes the discovered cards, for readiness reporting.
func (r *Router) AgentsInfo() []agentcard.Card {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cards := make([]agentcard.Card, 0, len(r.connections))
	for _, conn := range r.connections {
		cards = append(cards, conn.card)
	}
	return cards
}

// Handle routes one request. It always returns a response; an unreachable
// agent contributes a placeholder answer and is excluded from the
// composite score.
func (r *Router) Handle(ctx context.Context, req orchestrator.Request) orchestrator.Response {
	ctx, span := traces.StartSpan(ctx, "router.handle", traces.PoolAddress(req.PoolAddress))
	defer span.End()

	decision := r.oracle.Route(ctx, req.Question)
	span.SetAttributes(traces.RouteDecision(decision.Route))
	logging.L(ctx).Info("query routed", "route", decision.Route, "reasoning", decision.Reasoning)

	var poolRisk, tokenIntel *orchestrator.Response
	switch decision.Route {
	case oracle.RoutePoolRisk:
		res := r.invokeAgent(ctx, AgentPoolRisk, req)
		poolRisk = &res
	case oracle.RouteTokenIntel:
		res := r.invokeAgent(ctx, AgentTokenIntel, req)
		tokenIntel = &res
	default:
		// Sequential on purpose: the token intel prompt is cheaper when
		// the pool verdict already exists, and a single upstream rate
		// limit bounds concurrency anyway.
		pr := r.invokeAgent(ctx, AgentPoolRisk, req)
		poolRisk = &pr
		ti := r.invokeAgent(ctx, AgentTokenIntel, req)
		tokenIntel = &ti
	}

	answer := r.synthesize(ctx, req.Question, poolRisk, tokenIntel)
	return finalize(decision, answer, poolRisk, tokenIntel)
}

// invokeAgent calls one remote agent, degrading to a placeholder on any
// failure so the caller never sees a hard error.
func (r *Router) invokeAgent(ctx context.Context, name string, req orchestrator.Request) orchestrator.Response {
	ctx, span := traces.StartSpan(ctx, "router.invoke_agent", traces.AgentName(name))
	defer span.End()

	r.mu.RLock()
	conn, discovered := r.connections[name]
	r.mu.RUnlock()

	if !discovered {
		r.logger.Error("agent not discovered", "agent", name)
		metrics.RemoteAgentCallsTotal.WithLabelValues(name, "unavailable").Inc()
		return unavailable(name, "agent not discovered")
	}
	if !r.breaker.Allow(name) {
		r.logger.Warn("agent circuit open", "agent", name)
		metrics.RemoteAgentCallsTotal.WithLabelValues(name, "circuit_open").Inc()
		return unavailable(name, "circuit open")
	}

	resp, err := r.post(ctx, conn.baseURL+analyzePath, req)
	if err != nil {
		r.breaker.RecordFailure(name)
		r.logger.Error("agent invocation failed", "agent", name, "error", err)
		metrics.RemoteAgentCallsTotal.WithLabelValues(name, "error").Inc()
		return orchestrator.Response{
			Answer:   fmt.Sprintf("%s analysis failed: %v", name, err),
			Metadata: map[string]any{"error": err.Error()},
		}
	}

	r.breaker.RecordSuccess(name)
	metrics.RemoteAgentCallsTotal.WithLabelValues(name, "success").Inc()
	return resp
}

func (r *Router) post(ctx context.Context, url string, req orchestrator.Request) (orchestrator.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return orchestrator.Response{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return orchestrator.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return orchestrator.Response{}, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return orchestrator.Response{}, fmt.Errorf("agent status %d", httpResp.StatusCode)
	}

	var resp orchestrator.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return orchestrator.Response{}, fmt.Errorf("decode agent response: %w", err)
	}
	return resp, nil
}

// synthesize merges the sub-agent answers with one oracle call, falling
// back to plain concatenation when the oracle is down.
func (r *Router) synthesize(ctx context.Context, question string, poolRisk, tokenIntel *orchestrator.Response) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User Question: %s\n\n", question)
	if poolRisk != nil {
		fmt.Fprintf(&sb, "Pool Risk Analysis:\n%s\n\n", poolRisk.Answer)
	}
	if tokenIntel != nil {
		fmt.Fprintf(&sb, "Token Intelligence Analysis:\n%s\n\n", tokenIntel.Answer)
	}

	prompt := fmt.Sprintf(`You are a DeFi risk platform aggregating specialist agent results.

Synthesize the following agent results into a coherent, actionable answer:

%s
Directly address the user's question, highlight critical risks and give
clear recommendations.`, sb.String())

	answer, err := r.oracle.Complete(ctx, prompt)
	if err != nil {
		logging.L(ctx).Warn("aggregation synthesis failed", "error", err)
		return sb.String()
	}
	return answer
}

// finalize computes the composite: the arithmetic mean of the sub-scores
// that are actually present. A zero score marks an absent or degraded
// agent and contributes nothing rather than dragging the mean down.
func finalize(decision oracle.RouteDecision, answer string, poolRisk, tokenIntel *orchestrator.Response) orchestrator.Response {
	var sum float64
	var n int
	metadata := map[string]any{
		"route":           decision.Route,
		"route_reasoning": decision.Reasoning,
	}

	if poolRisk != nil {
		metadata["pool_risk"] = poolRisk.Metadata
		if poolRisk.RiskScore != 0 {
			sum += poolRisk.RiskScore
			n++
		}
	}
	if tokenIntel != nil {
		metadata["token_intel"] = tokenIntel.Metadata
		if tokenIntel.RiskScore != 0 {
			sum += tokenIntel.RiskScore
			n++
		}
	}

	var composite float64
	if n > 0 {
		composite = sum / float64(n)
	}
	metadata["composite_risk_score"] = composite

	return orchestrator.Response{Answer: answer, Metadata: metadata, RiskScore: composite}
}

func unavailable(name, reason string) orchestrator.Response {
	return orchestrator.Response{
		Answer:   fmt.Sprintf("%s agent unavailable", name),
		Metadata: map[string]any{"error": reason},
	}
}
