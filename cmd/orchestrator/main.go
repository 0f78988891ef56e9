// Poolscope orchestrator - routes questions to the pool risk and token intel agents
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/poolscope/poolscope/internal/agentcard"
	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/oracle"
	"github.com/poolscope/poolscope/internal/realtime"
	"github.com/poolscope/poolscope/internal/router"
	"github.com/poolscope/poolscope/internal/server"
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

	logger.Info("starting orchestrator",
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

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"remote_agents", len(cfg.Orchestration.RemoteAgents),
	)

	ctx := context.Background()

	shutdownTraces, err := traces.Init(ctx, "poolscope-orchestrator", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTraces(context.Background())

	llm := oracle.NewOpenAI(cfg.Oracle, logger)
	rt := router.New(llm, cfg.Orchestration.RemoteAgents, cfg.Orchestration.Timeout, logger)
	hub := realtime.NewHub(logger)

	card := agentcard.Card{
		Name:        "Poolscope Orchestrator",
		Description: "Routes DeFi risk questions to specialist agents and synthesizes a combined answer with a composite risk score.",
		URL:         envOrDefault("AGENT_BASE_URL", "http://localhost:"+cfg.Port),
		Version:     Version,
		Skills: []agentcard.Skill{
			{ID: "route_and_synthesize", Name: "Route and Synthesize", Description: "Classifies a question as pool risk, token intel or both, invokes the matching agents and merges their answers.", Tags: []string{"routing", "synthesis"}},
		},
	}

	srv := server.New(cfg, card, rt.Handle,
		server.WithLogger(logger),
		server.WithHub(hub),
		server.WithStartHook(rt.Discover),
		server.WithRoute(http.MethodGet, "/v1/agents", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"agents": rt.AgentsInfo()})
		}),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
