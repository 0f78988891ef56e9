package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// mcpCaller is the slice of the MCP client used here.
type mcpCaller interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// MCPLoader registers tools advertised by a remote MCP server.
type MCPLoader struct {
	addr   string
	logger *slog.Logger

	// dial is swapped in tests.
	dial func(ctx context.Context) (mcpCaller, error)
}

func NewMCPLoader(addr string, logger *slog.Logger) *MCPLoader {
	l := &MCPLoader{addr: addr, logger: logger}
	l.dial = l.connect
	return l
}

func (l *MCPLoader) connect(ctx context.Context) (mcpCaller, error) {
	c, err := mcpclient.NewStreamableHttpClient(l.addr)
	if err != nil {
		return nil, fmt.Errorf("mcp dial %s: %w", l.addr, err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp start: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "poolscope", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("mcp initialize: %w", err)
	}
	return c, nil
}

// Load lists remote tools and wraps each as an Invoker.
func (l *MCPLoader) Load(ctx context.Context) ([]Invoker, error) {
	if l.addr == "" {
		return nil, errors.New("no mcp address configured")
	}

	caller, err := l.dial(ctx)
	if err != nil {
		return nil, err
	}

	listed, err := caller.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp list tools: %w", err)
	}

	invokers := make([]Invoker, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		invokers = append(invokers, &mcpTool{
			caller:      caller,
			name:        t.Name,
			description: t.Description,
		})
	}
	l.logger.Info("loaded remote tools", "addr", l.addr, "count", len(invokers))
	return invokers, nil
}

// mcpTool proxies one remote tool.
type mcpTool struct {
	caller      mcpCaller
	name        string
	description string
}

func (t *mcpTool) Name() string        { return t.name }
func (t *mcpTool) Description() string { return t.description }

func (t *mcpTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	res, err := t.caller.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp call %s: %w", t.name, err)
	}

	text := firstText(res)
	if res.IsError {
		return nil, fmt.Errorf("tool %s: %s", t.name, text)
	}

	// Tool servers return their results as JSON text content.
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("tool %s returned non-JSON result: %w", t.name, err)
	}
	return out, nil
}

func firstText(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
