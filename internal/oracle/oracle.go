// Package oracle wraps the LLM used for planning, routing and synthesis.
//
// The model's structured outputs are never trusted as-is: JSON is coerced
// out of code fences, validated against the expected shape, and replaced by
// a deterministic fallback when unusable. Callers therefore always receive
// a well-formed Plan or RouteDecision.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Plan is the structured output of the planning step.
type Plan struct {
	Reasoning          string   `json:"reasoning"`
	ToolsToCall        []string `json:"tools_to_call"`
	NeedsComprehensive bool     `json:"needs_comprehensive"`
}

// RouteDecision classifies a query across the remote agents.
type RouteDecision struct {
	Route     string `json:"route"`
	Reasoning string `json:"reasoning"`
}

// Valid routing targets.
const (
	RoutePoolRisk   = "pool_risk"
	RouteTokenIntel = "token_intel"
	RouteBoth       = "both"
)

// ToolDescription is the name/description pair shown to the planner.
type ToolDescription struct {
	Name        string
	Description string
}

// Oracle is the LLM capability surface the orchestrators consume.
type Oracle interface {
	// Complete returns free-form text for a prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// PlanAnalysis selects tools for a question. The returned plan is
	// always well-formed; oracle failure surfaces as an error alongside a
	// usable zero plan.
	PlanAnalysis(ctx context.Context, question, poolAddress string, tools []ToolDescription) (Plan, error)
	// Route classifies the question across remote agents. Never fails:
	// unusable output degrades to RouteBoth.
	Route(ctx context.Context, question string) RouteDecision
}

// extractJSON tolerates the model wrapping its JSON in markdown fences or
// leading prose.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		text = strings.TrimPrefix(text, "json")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	if start := strings.Index(text, "{"); start > 0 {
		text = text[start:]
	}
	return strings.TrimSpace(text)
}

// parsePlan decodes and validates a planning response.
func parsePlan(text string) (Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(extractJSON(text)), &plan); err != nil {
		return Plan{}, fmt.Errorf("unparsable plan: %w", err)
	}
	if plan.ToolsToCall == nil {
		plan.ToolsToCall = []string{}
	}
	return plan, nil
}

// parseRoute decodes a routing response, coercing unknown routes to both.
func parseRoute(text string) RouteDecision {
	var decision RouteDecision
	if err := json.Unmarshal([]byte(extractJSON(text)), &decision); err != nil {
		return RouteDecision{Route: RouteBoth, Reasoning: "unparsable routing response, invoking all agents"}
	}
	switch decision.Route {
	case RoutePoolRisk, RouteTokenIntel, RouteBoth:
		return decision
	default:
		return RouteDecision{Route: RouteBoth, Reasoning: "unrecognized route, invoking all agents"}
	}
}
