package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/metrics"
)

// chatClient is the slice of the OpenAI client surface used here, split out
// so tests can substitute canned completions.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI implements Oracle on the OpenAI chat completion API.
type OpenAI struct {
	client      chatClient
	model       string
	temperature float32
	logger      *slog.Logger
}

func NewOpenAI(cfg config.OracleConfig, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}
}

func (o *OpenAI) complete(ctx context.Context, kind, prompt string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.OracleCallsTotal.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("oracle %s call: %w", kind, err)
	}
	if len(resp.Choices) == 0 {
		metrics.OracleCallsTotal.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("oracle %s call: empty response", kind)
	}

	metrics.OracleCallsTotal.WithLabelValues(kind, "success").Inc()
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, "synthesis", prompt, false)
}

const planningPrompt = `You are a DeFi risk analysis planner for Uniswap V3 pools.
Decide which analysis tools answer the user's question. If the user wants a
comprehensive or full analysis, set needs_comprehensive to true.

Respond with JSON: {"reasoning": string, "tools_to_call": [string], "needs_comprehensive": bool}`

func (o *OpenAI) PlanAnalysis(ctx context.Context, question, poolAddress string, tools []ToolDescription) (Plan, error) {
	var sb strings.Builder
	sb.WriteString(planningPrompt)
	sb.WriteString("\n\nUser Question: ")
	sb.WriteString(question)
	sb.WriteString("\nPool Address: ")
	if poolAddress == "" {
		sb.WriteString("Not provided")
	} else {
		sb.WriteString(poolAddress)
	}
	sb.WriteString("\n\nAvailable Tools:\n")
	if len(tools) == 0 {
		sb.WriteString("No tools available\n")
	}
	for _, t := range tools {
		desc := t.Description
		if len(desc) > 100 {
			desc = desc[:100] + "..."
		}
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, desc)
	}

	text, err := o.complete(ctx, "planning", sb.String(), true)
	if err != nil {
		return Plan{ToolsToCall: []string{}}, err
	}

	plan, err := parsePlan(text)
	if err != nil {
		o.logger.Warn("planner returned unusable output", "error", err)
		return Plan{ToolsToCall: []string{}}, err
	}
	return plan, nil
}

const routingPrompt = `You are a query router for a DeFi risk platform with two agents:
- pool_risk: Uniswap V3 pool analysis (concentration, liquidity depth, market risk, behavioral patterns)
- token_intel: token-level intelligence (contract security, scam signals, sentiment)

Respond with JSON: {"route": "pool_risk" | "token_intel" | "both", "reasoning": string}

Examples:
- "What's the liquidity depth?" -> {"route": "pool_risk", "reasoning": "query about liquidity metrics"}
- "Is this token a scam?" -> {"route": "token_intel", "reasoning": "query about token security"}
- "Analyze this pool" -> {"route": "both", "reasoning": "comprehensive analysis requested"}`

func (o *OpenAI) Route(ctx context.Context, question string) RouteDecision {
	prompt := routingPrompt + "\n\nQuery: " + question

	text, err := o.complete(ctx, "routing", prompt, true)
	if err != nil {
		o.logger.Warn("routing call failed, invoking all agents", "error", err)
		return RouteDecision{Route: RouteBoth, Reasoning: "routing failed, invoking all agents"}
	}
	return parseRoute(text)
}

var _ Oracle = (*OpenAI)(nil)
