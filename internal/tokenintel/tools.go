package tokenintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poolscope/poolscope/internal/tools"
	"github.com/poolscope/poolscope/internal/validation"
)

// Tool names for the token intelligence agent.
const (
	ToolSecurity  = "analyze_token_security"
	ToolMarket    = "resolve_token_market"
	ToolSentiment = "analyze_token_sentiment"
	ToolClassify  = "classify_token"
)

var errMissingPoolAddress = errors.New("pool_address argument is required")

// Toolset bundles the analyzers behind the tool contract. Every tool keys
// off the pool address; token resolution happens inside.
type Toolset struct {
	security   *SecurityAnalyzer
	resolver   *Resolver
	sentiment  *SentimentAnalyzer
	classifier *Classifier
}

func NewToolset(security *SecurityAnalyzer, resolver *Resolver, sentiment *SentimentAnalyzer, classifier *Classifier) *Toolset {
	return &Toolset{security: security, resolver: resolver, sentiment: sentiment, classifier: classifier}
}

// Tools returns the agent's invocable tool set.
func (s *Toolset) Tools() []tools.Invoker {
	return []tools.Invoker{
		&tokenTool{s, ToolMarket,
			"Resolve a pool address to its tokens and market data: price, liquidity, 24h volume, price change and trade counts, with market warning flags.",
			s.invokeMarket},
		&tokenTool{s, ToolSecurity,
			"Analyze the pool's base token contract for security risks via GoPlus: honeypot, taxes, mintability, ownership and proxy flags, with a 0-100 risk score.",
			s.invokeSecurity},
		&tokenTool{s, ToolSentiment,
			"Score market sentiment for the pool's base token from trade flow imbalance, price momentum and volume turnover.",
			s.invokeSentiment},
		&tokenTool{s, ToolClassify,
			"Run security, market and sentiment analysis for the pool's base token and classify it as SAFE, RISKY or DANGER with a weighted composite score.",
			s.invokeClassify},
	}
}

type tokenTool struct {
	set         *Toolset
	name        string
	description string
	run         func(ctx context.Context, pool string) (any, error)
}

func (t *tokenTool) Name() string        { return t.name }
func (t *tokenTool) Description() string { return t.description }

func (t *tokenTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	pool, err := poolArg(args)
	if err != nil {
		return nil, err
	}
	result, err := t.run(ctx, pool)
	if err != nil {
		return nil, err
	}
	return asMap(result)
}

func (s *Toolset) invokeMarket(ctx context.Context, pool string) (any, error) {
	return s.resolver.ResolvePool(ctx, pool), nil
}

func (s *Toolset) invokeSecurity(ctx context.Context, pool string) (any, error) {
	pair := s.resolver.ResolvePool(ctx, pool)
	if pair.Err != "" {
		return nil, fmt.Errorf("resolve pool: %s", pair.Err)
	}
	return s.security.Analyze(ctx, pair.Chain, pair.Token0.Address), nil
}

func (s *Toolset) invokeSentiment(ctx context.Context, pool string) (any, error) {
	pair := s.resolver.ResolvePool(ctx, pool)
	return s.sentiment.Analyze(pair), nil
}

func (s *Toolset) invokeClassify(ctx context.Context, pool string) (any, error) {
	pair := s.resolver.ResolvePool(ctx, pool)

	var security SecurityReport
	if pair.Err == "" {
		security = s.security.Analyze(ctx, pair.Chain, pair.Token0.Address)
	} else {
		security = unknownSecurity(pair.Err)
	}

	sentiment := s.sentiment.Analyze(pair)
	return s.classifier.Classify(security, pair, sentiment), nil
}

func poolArg(args map[string]any) (string, error) {
	raw, ok := args["pool_address"].(string)
	if !ok || raw == "" {
		return "", errMissingPoolAddress
	}
	if !validation.IsValidPoolAddress(raw) {
		return "", fmt.Errorf("invalid pool address %q", raw)
	}
	return validation.NormalizeAddress(raw), nil
}

func asMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}
	return out, nil
}
