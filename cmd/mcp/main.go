// Poolscope MCP server - exposes the pool risk tools over stdio for LLM hosts
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/poolscope/poolscope/internal/cache"
	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/mcpserver"
	"github.com/poolscope/poolscope/internal/subgraph"
	"github.com/poolscope/poolscope/internal/tokenintel"
	"github.com/poolscope/poolscope/internal/tools"
)

func main() {
	// stdout is the MCP transport; all logging goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store cache.Store
	if cfg.Cache.Backend == "redis" {
		store, err = cache.NewRedisStore(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
	} else {
		store, err = cache.NewFileStore(cfg.Cache.Directory)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create cache store: %v\n", err)
		os.Exit(1)
	}
	c := cache.New(store, cfg.Cache.TTL, cfg.Cache.Enabled, cfg.Cache.Entities, logger)

	client := subgraph.NewClient(cfg.Subgraph, cfg.Pagination, c, logger)

	toolset := tokenintel.NewToolset(
		tokenintel.NewSecurityAnalyzer(cfg.TokenIntel, logger),
		tokenintel.NewResolver(cfg.TokenIntel.DexScreenerURL, logger),
		tokenintel.NewSentimentAnalyzer(),
		tokenintel.NewClassifier(cfg.TokenIntel),
	)

	registry := tools.NewRegistry(logger)
	registry.Initialize(ctx, nil, append(tools.NewLocalTools(client, cfg), toolset.Tools()...))

	s := mcpserver.NewMCPServer(registry)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
