// Poolscope token intel agent - token security, market and sentiment analysis
package main

import (
	"context"
	"os"

	"github.com/poolscope/poolscope/internal/agentcard"
	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/health"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/oracle"
	"github.com/poolscope/poolscope/internal/orchestrator"
	"github.com/poolscope/poolscope/internal/server"
	"github.com/poolscope/poolscope/internal/tokenintel"
	"github.com/poolscope/poolscope/internal/tools"
	"github.com/poolscope/poolscope/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting token intel agent",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	shutdownTraces, err := traces.Init(ctx, "poolscope-token-intel", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTraces(context.Background())

	toolset := tokenintel.NewToolset(
		tokenintel.NewSecurityAnalyzer(cfg.TokenIntel, logger),
		tokenintel.NewResolver(cfg.TokenIntel.DexScreenerURL, logger),
		tokenintel.NewSentimentAnalyzer(),
		tokenintel.NewClassifier(cfg.TokenIntel),
	)

	registry := tools.NewRegistry(logger)

	llm := oracle.NewOpenAI(cfg.Oracle, logger)
	orch := orchestrator.New(registry, llm, cfg.Orchestration.Timeout, logger)

	card := agentcard.Card{
		Name:        "Token Intelligence Analyzer",
		Description: "Evaluates token safety: GoPlus contract security scan, DexScreener market data and trade-flow sentiment, classified into SAFE/RISKY/DANGER.",
		URL:         envOrDefault("AGENT_BASE_URL", "http://localhost:"+cfg.Port),
		Version:     Version,
		Skills: []agentcard.Skill{
			{ID: tokenintel.ToolSecurity, Name: "Security Scan", Description: "Honeypot, ownership and tax checks on the pool's base token contract.", Tags: []string{"security", "honeypot"}},
			{ID: tokenintel.ToolMarket, Name: "Market Resolution", Description: "Liquidity, volume and volatility from DexScreener pair data.", Tags: []string{"market", "liquidity"}},
			{ID: tokenintel.ToolSentiment, Name: "Sentiment", Description: "Trade-flow and momentum sentiment scoring.", Tags: []string{"sentiment"}},
			{ID: tokenintel.ToolClassify, Name: "Classification", Description: "Weighted SAFE/RISKY/DANGER verdict with critical issues and recommendation.", Tags: []string{"classification", "risk"}},
		},
	}

	srv := server.New(cfg, card, orch.Handle,
		server.WithLogger(logger),
		server.WithHealthCheck("oracle", oracleCheck(cfg)),
		server.WithStartHook(func(ctx context.Context) {
			registry.Initialize(ctx, nil, toolset.Tools())
		}),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func oracleCheck(cfg *config.Config) health.Checker {
	return func(ctx context.Context) health.Status {
		if cfg.Oracle.APIKey == "" {
			return health.Status{Name: "oracle", Healthy: false, Detail: "no API key configured"}
		}
		return health.Status{Name: "oracle", Healthy: true}
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
