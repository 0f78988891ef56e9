package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/poolscope/poolscope/internal/tools"
)

// NewMCPServer builds an MCP server over the given registry. Only tools the
// registry actually carries are registered, so the same constructor serves
// the pool risk set, the token intel set, or both.
func NewMCPServer(registry *tools.Registry) *server.MCPServer {
	s := server.NewMCPServer("poolscope", "1.0.0")
	h := NewHandlers(registry)

	for _, def := range exposed(registry) {
		s.AddTool(def, h.Handle(def.Name))
	}

	return s
}

// exposed filters the full tool catalog down to what the registry has.
func exposed(registry *tools.Registry) []mcp.Tool {
	catalog := []mcp.Tool{
		ToolAnalyzeConcentration,
		ToolAnalyzeLiquidity,
		ToolAnalyzeMarket,
		ToolAnalyzeBehavioral,
		ToolCompositeScore,
		ToolPoolInfo,
		ToolTokenSecurity,
		ToolTokenMarket,
		ToolTokenSentiment,
		ToolTokenClassify,
	}

	var defs []mcp.Tool
	for _, def := range catalog {
		if registry.Has(def.Name) {
			defs = append(defs, def)
		}
	}
	return defs
}
