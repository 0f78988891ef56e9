// Package orchestrator runs the plan-execute pipeline: an oracle plans
// which tools answer the question, the tools run concurrently, and a second
// oracle call synthesizes their results into an answer.
//
// Every phase degrades instead of failing: a planning failure finalizes
// with a best-effort message, per-tool failures become per-tool error
// entries, a synthesis failure falls back to the raw results, and the
// request timeout cancels in-flight work and finalizes with whatever
// settled. Finalize is the sole exit regardless of path.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/metrics"
	"github.com/poolscope/poolscope/internal/oracle"
	"github.com/poolscope/poolscope/internal/tools"
	"github.com/poolscope/poolscope/internal/traces"
)

// Request is the inbound agent-invocation message.
type Request struct {
	Question    string `json:"user_question"`
	PoolAddress string `json:"pool_address,omitempty"`
	TraceID     string `json:"trace_id,omitempty"`
}

// Response is the uniform agent reply.
type Response struct {
	Answer    string         `json:"answer"`
	Metadata  map[string]any `json:"metadata"`
	RiskScore float64        `json:"risk_score"`
}

// toolOutcome is one tool's settled result. Exactly one of Result and Err
// is meaningful.
type toolOutcome struct {
	Tool   string
	Result map[string]any
	Err    string
}

// Orchestrator drives one request through plan, execute, synthesize and
// finalize. Safe for concurrent use; per-request state stays on the stack.
type Orchestrator struct {
	registry *tools.Registry
	oracle   oracle.Oracle
	timeout  time.Duration
	logger   *slog.Logger
}

func New(registry *tools.Registry, o oracle.Oracle, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		oracle:   o,
		timeout:  timeout,
		logger:   logger,
	}
}

// Handle runs the full pipeline. It always returns a response; failures
// along the way are embedded in the answer and metadata.
func (o *Orchestrator) Handle(ctx context.Context, req Request) Response {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if req.TraceID != "" {
		ctx = logging.WithTraceID(ctx, req.TraceID)
	}
	ctx, span := traces.StartSpan(ctx, "orchestrator.handle", traces.PoolAddress(req.PoolAddress))
	defer span.End()
	log := logging.L(ctx)

	planText, toolsToCall, planFailed := o.plan(ctx, req)
	log.Info("analysis planned", "tools", toolsToCall, "plan_failed", planFailed)

	if planFailed {
		return o.finalize(planText, nil, nil,
			"I could not plan this analysis right now. Please retry shortly.")
	}
	if len(toolsToCall) == 0 {
		return o.finalize(planText, toolsToCall, nil, o.noToolsAnswer(req.Question, planText))
	}

	outcomes := o.executeTools(ctx, req.PoolAddress, toolsToCall)
	answer := o.synthesize(ctx, req, planText, outcomes)
	return o.finalize(planText, toolsToCall, outcomes, answer)
}

// plan asks the oracle which tools to run. A comprehensive request always
// yields the full analyzer set plus the composite, whatever the oracle
// proposed; tool names the registry does not know are dropped.
func (o *Orchestrator) plan(ctx context.Context, req Request) (planText string, toolsToCall []string, planFailed bool) {
	ctx, span := traces.StartSpan(ctx, "orchestrator.plan")
	defer span.End()

	plan, err := o.oracle.PlanAnalysis(ctx, req.Question, req.PoolAddress, o.registry.Descriptions())
	if err != nil {
		return fmt.Sprintf("planning failed: %v", err), nil, true
	}

	if plan.NeedsComprehensive {
		var full []string
		for _, name := range tools.AnalyzerToolNames() {
			if o.registry.Has(name) {
				full = append(full, name)
			}
		}
		if len(full) == 0 {
			// Registries carrying a different tool set (the token
			// agent's) run everything they have instead.
			for _, d := range o.registry.Descriptions() {
				if d.Name != tools.ToolComposite {
					full = append(full, d.Name)
				}
			}
		}
		if o.registry.Has(tools.ToolComposite) {
			full = append(full, tools.ToolComposite)
		}
		return plan.Reasoning, full, false
	}

	for _, name := range plan.ToolsToCall {
		if o.registry.Has(name) {
			toolsToCall = append(toolsToCall, name)
		}
	}
	return plan.Reasoning, toolsToCall, false
}

// executeTools fans the selected tools out concurrently. The composite tool
// is held back from the first wave and run afterwards with the analyzer
// results as input. A missing pool address, a failed tool or a timeout all
// become per-tool error entries; the batch never aborts.
func (o *Orchestrator) executeTools(ctx context.Context, poolAddress string, toolsToCall []string) []toolOutcome {
	if poolAddress == "" {
		return []toolOutcome{{Tool: "execute", Err: "no pool address provided"}}
	}
	ctx, span := traces.StartSpan(ctx, "orchestrator.execute_tools", traces.PoolAddress(poolAddress))
	defer span.End()

	wantComposite := false
	var wave []string
	for _, name := range toolsToCall {
		if name == tools.ToolComposite {
			wantComposite = true
			continue
		}
		wave = append(wave, name)
	}

	outcomes := make([]toolOutcome, len(wave))
	var wg sync.WaitGroup
	for i, name := range wave {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			ctx, span := traces.StartSpan(ctx, "tool.invoke", traces.ToolName(name))
			defer span.End()
			result, err := o.registry.Invoke(ctx, name, map[string]any{"pool_address": poolAddress})
			if err != nil {
				outcomes[i] = toolOutcome{Tool: name, Err: err.Error()}
				return
			}
			outcomes[i] = toolOutcome{Tool: name, Result: result}
		}(i, name)
	}
	wg.Wait()

	if wantComposite {
		outcomes = append(outcomes, o.runComposite(ctx, outcomes))
	}
	return outcomes
}

// runComposite invokes the composite tool once all four analyzer results
// are present, and records a skip entry otherwise.
func (o *Orchestrator) runComposite(ctx context.Context, outcomes []toolOutcome) toolOutcome {
	byTool := make(map[string]map[string]any)
	for _, out := range outcomes {
		if out.Err == "" && out.Result != nil {
			byTool[out.Tool] = out.Result
		}
	}

	for _, required := range tools.AnalyzerToolNames() {
		if _, ok := byTool[required]; !ok {
			return toolOutcome{
				Tool: tools.ToolComposite,
				Err:  fmt.Sprintf("skipped: missing %s result", required),
			}
		}
	}

	result, err := o.registry.Invoke(ctx, tools.ToolComposite, map[string]any{
		"concentration_result": byTool[tools.ToolConcentration],
		"liquidity_result":     byTool[tools.ToolLiquidity],
		"market_result":        byTool[tools.ToolMarket],
		"behavioral_result":    byTool[tools.ToolBehavioral],
	})
	if err != nil {
		return toolOutcome{Tool: tools.ToolComposite, Err: err.Error()}
	}
	return toolOutcome{Tool: tools.ToolComposite, Result: result}
}

// synthesize asks the oracle for the final answer. When the oracle is down
// or the deadline already passed, the raw per-tool results become the
// answer instead.
func (o *Orchestrator) synthesize(ctx context.Context, req Request, planText string, outcomes []toolOutcome) string {
	ctx, span := traces.StartSpan(ctx, "orchestrator.synthesize")
	defer span.End()

	resultsText := formatOutcomes(outcomes)

	prompt := fmt.Sprintf(`You are a DeFi risk analyst for Uniswap V3 pools.

User Question: %s
Pool Address: %s

Analysis Plan: %s

Tool Results:
%s

Based on these analysis results, provide a clear, data-driven answer to the
user's question. Include specific numbers, risk levels and actionable
insights. Highlight critical risks prominently.`,
		req.Question, req.PoolAddress, planText, resultsText)

	answer, err := o.oracle.Complete(ctx, prompt)
	if err != nil {
		logging.L(ctx).Warn("synthesis failed, returning raw results", "error", err)
		return fmt.Sprintf("Analysis completed but synthesis failed: %v\n\nRaw results:\n%s", err, resultsText)
	}
	return answer
}

func (o *Orchestrator) noToolsAnswer(question, planText string) string {
	return fmt.Sprintf(`Based on your question %q, no specific risk analysis tools are needed.

Reasoning: %s

To analyze a Uniswap V3 pool, provide a pool address (0x...) and ask about
concentration, liquidity depth, market risk or behavioral patterns, or
request a comprehensive risk analysis.`, question, planText)
}

// finalize assembles the response. The composite score and level, when the
// composite tool ran, become canonical response metadata.
func (o *Orchestrator) finalize(planText string, toolsToCall []string, outcomes []toolOutcome, answer string) Response {
	metadata := map[string]any{
		"plan":         planText,
		"tools_called": toolsToCall,
		"tool_count":   len(toolsToCall),
	}

	var errs []string
	for _, out := range outcomes {
		if out.Err != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", out.Tool, out.Err))
		}
	}
	if len(errs) > 0 {
		metadata["tool_errors"] = errs
	}

	var riskScore float64
	for _, out := range outcomes {
		if out.Tool != tools.ToolComposite || out.Result == nil {
			continue
		}
		if score, ok := toFloat(out.Result["composite_score"]); ok {
			riskScore = score
			metadata["risk_score"] = score
		}
		if level, ok := out.Result["risk_level"].(string); ok {
			metadata["risk_level"] = level
			metrics.AnalysesTotal.WithLabelValues(level).Inc()
		}
		break
	}

	return Response{Answer: answer, Metadata: metadata, RiskScore: riskScore}
}

func formatOutcomes(outcomes []toolOutcome) string {
	var sb strings.Builder
	for _, out := range outcomes {
		if out.Err != "" {
			fmt.Fprintf(&sb, "\n%s: ERROR - %s", out.Tool, out.Err)
			continue
		}
		score := "N/A"
		if v, ok := toFloat(out.Result["risk_score"]); ok {
			score = fmt.Sprintf("%.0f/100", v)
		} else if v, ok := toFloat(out.Result["composite_score"]); ok {
			score = fmt.Sprintf("%.0f/100", v)
		}
		flags := formatFlags(out.Result["risk_flags"])
		fmt.Fprintf(&sb, "\n%s:\n  - Risk Score: %s\n  - Flags: %s\n  - Details: %v", out.Tool, score, flags, out.Result)
	}
	return sb.String()
}

func formatFlags(raw any) string {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return "None"
	}
	flags := make([]string, 0, len(list))
	for _, f := range list {
		if s, ok := f.(string); ok {
			flags = append(flags, s)
		}
	}
	sort.Strings(flags)
	return strings.Join(flags, ", ")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
