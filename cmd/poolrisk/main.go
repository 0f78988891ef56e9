// Poolscope pool risk agent - Uniswap V3 pool risk analysis over HTTP
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poolscope/poolscope/internal/agentcard"
	"github.com/poolscope/poolscope/internal/cache"
	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/health"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/oracle"
	"github.com/poolscope/poolscope/internal/orchestrator"
	"github.com/poolscope/poolscope/internal/realtime"
	"github.com/poolscope/poolscope/internal/report"
	"github.com/poolscope/poolscope/internal/risk"
	"github.com/poolscope/poolscope/internal/server"
	"github.com/poolscope/poolscope/internal/subgraph"
	"github.com/poolscope/poolscope/internal/tools"
	"github.com/poolscope/poolscope/internal/traces"
	"github.com/poolscope/poolscope/internal/validation"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting pool risk agent",
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

	shutdownTraces, err := traces.Init(ctx, "poolscope-pool-risk", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTraces(context.Background())

	store, err := newCacheStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to create cache store", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	c := cache.New(store, cfg.Cache.TTL, cfg.Cache.Enabled, cfg.Cache.Entities, logger)

	client := subgraph.NewClient(cfg.Subgraph, cfg.Pagination, c, logger)

	registry := tools.NewRegistry(logger)
	static := tools.NewLocalTools(client, cfg)
	var loader tools.Loader
	if cfg.Orchestration.MCPAddr != "" {
		loader = tools.NewMCPLoader(cfg.Orchestration.MCPAddr, logger)
	}

	llm := oracle.NewOpenAI(cfg.Oracle, logger)
	orch := orchestrator.New(registry, llm, cfg.Orchestration.Timeout, logger)
	hub := realtime.NewHub(logger)

	card := agentcard.Card{
		Name:        "Pool Risk Analyzer",
		Description: "Analyzes Uniswap V3 liquidity pool risk: LP concentration, liquidity depth, market risk and behavioral patterns.",
		URL:         envOrDefault("AGENT_BASE_URL", "http://localhost:"+cfg.Port),
		Version:     Version,
		Skills: []agentcard.Skill{
			{ID: tools.ToolConcentration, Name: "Concentration Risk", Description: "Gini coefficient, HHI, top-10 dominance and LP age distribution.", Tags: []string{"risk", "liquidity-providers"}},
			{ID: tools.ToolLiquidity, Name: "Liquidity Depth", Description: "Slippage simulation, active liquidity and TVL volatility.", Tags: []string{"risk", "slippage"}},
			{ID: tools.ToolMarket, Name: "Market Risk", Description: "Utilization rate, price correlation and impermanent loss exposure.", Tags: []string{"risk", "impermanent-loss"}},
			{ID: tools.ToolBehavioral, Name: "Behavioral Risk", Description: "Wash trading and MEV exposure from recent swaps.", Tags: []string{"risk", "mev"}},
			{ID: tools.ToolComposite, Name: "Composite Score", Description: "Weighted composite risk score with overall level and flags.", Tags: []string{"risk", "score"}},
		},
	}

	srv := server.New(cfg, card, orch.Handle,
		server.WithLogger(logger),
		server.WithHub(hub),
		server.WithHealthCheck("subgraph", subgraphCheck(client)),
		server.WithStartHook(func(ctx context.Context) {
			registry.Initialize(ctx, loader, static)
		}),
		server.WithRoute(http.MethodGet, "/v1/report/:pool", reportHandler(client, cfg)),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisStore(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
	}
	return cache.NewFileStore(cfg.Cache.Directory)
}

func subgraphCheck(client *subgraph.Client) health.Checker {
	return func(ctx context.Context) health.Status {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		var out struct {
			Meta struct {
				Block struct {
					Number int `json:"number"`
				} `json:"block"`
			} `json:"_meta"`
		}
		if err := client.Execute(ctx, `{ _meta { block { number } } }`, nil, &out); err != nil {
			return health.Status{Name: "subgraph", Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: "subgraph", Healthy: true}
	}
}

// reportHandler serves a full markdown risk report. Unlike /v1/analyze it
// always runs all four analyzers regardless of what a planner would pick.
func reportHandler(fetcher risk.Fetcher, cfg *config.Config) gin.HandlerFunc {
	analyzers := []risk.Analyzer{
		risk.NewConcentrationAnalyzer(fetcher, cfg),
		risk.NewLiquidityDepthAnalyzer(fetcher, cfg),
		risk.NewMarketRiskAnalyzer(fetcher, cfg),
		risk.NewBehavioralAnalyzer(fetcher, cfg),
	}
	scorer := risk.NewScorer(cfg.Scoring)
	generator := report.NewGenerator()

	return func(c *gin.Context) {
		raw := c.Param("pool")
		if !validation.IsValidPoolAddress(raw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pool address"})
			return
		}
		pool := validation.NormalizeAddress(raw)
		ctx := c.Request.Context()

		results := make([]risk.Result, len(analyzers))
		for i, a := range analyzers {
			results[i] = a.Analyze(ctx, pool)
		}
		composite := scorer.Score(results[0], results[1], results[2], results[3])

		record, err := fetcher.FetchPool(ctx, pool)
		if err != nil {
			logging.L(ctx).Warn("pool metadata unavailable for report", "pool", pool, "error", err)
			record = nil
		}

		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, generator.Generate(pool, record, composite))
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
