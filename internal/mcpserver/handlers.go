package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/poolscope/poolscope/internal/tools"
)

// Handlers bridges MCP tool calls to the local tool registry.
type Handlers struct {
	registry *tools.Registry
}

func NewHandlers(registry *tools.Registry) *Handlers {
	return &Handlers{registry: registry}
}

// Handle returns the handler function for one named tool. Every tool
// shares the same shape: arguments through the registry, result as
// pretty-printed JSON text.
func (h *Handlers) Handle(name string) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		result, err := h.registry.Invoke(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}

		text, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode %s result: %v", name, err)), nil
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}
