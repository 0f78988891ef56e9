package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscope/poolscope/internal/tokenintel"
	"github.com/poolscope/poolscope/internal/tools"
)

// --- Test helpers ---

type stubTool struct {
	name   string
	result map[string]any
	err    error
	args   map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Invoke(_ context.Context, args map[string]any) (map[string]any, error) {
	s.args = args
	return s.result, s.err
}

func newTestHandlers(stubs ...*stubTool) *Handlers {
	static := make([]tools.Invoker, len(stubs))
	for i, s := range stubs {
		static[i] = s
	}
	registry := tools.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	registry.Initialize(context.Background(), nil, static)
	return NewHandlers(registry)
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// --- Handler tests ---

func TestHandle_Success(t *testing.T) {
	stub := &stubTool{
		name:   tools.ToolConcentration,
		result: map[string]any{"risk_score": 37, "risk_flags": []string{"CRITICAL_TOP10_DOMINANCE"}},
	}
	h := newTestHandlers(stub)

	req := makeRequest(map[string]any{"pool_address": "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"})
	result, err := h.Handle(tools.ToolConcentration)(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	assert.Equal(t, float64(37), decoded["risk_score"])
	assert.Equal(t, "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", stub.args["pool_address"])
}

func TestHandle_ToolError(t *testing.T) {
	stub := &stubTool{
		name: tools.ToolLiquidity,
		err:  errors.New("pool not found"),
	}
	h := newTestHandlers(stub)

	result, err := h.Handle(tools.ToolLiquidity)(context.Background(), makeRequest(nil))
	require.NoError(t, err, "tool failures are reported in-band, not as handler errors")
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "pool not found")
}

func TestHandle_UnknownTool(t *testing.T) {
	h := newTestHandlers()

	result, err := h.Handle("no_such_tool")(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandle_NilArguments(t *testing.T) {
	stub := &stubTool{name: tools.ToolPoolInfo, result: map[string]any{"ok": true}}
	h := newTestHandlers(stub)

	var req mcp.CallToolRequest
	result, err := h.Handle(tools.ToolPoolInfo)(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.NotNil(t, stub.args)
}

func TestNewMCPServer(t *testing.T) {
	registry := tools.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	registry.Initialize(context.Background(), nil, []tools.Invoker{
		&stubTool{name: tools.ToolConcentration, result: map[string]any{}},
	})

	s := NewMCPServer(registry)
	assert.NotNil(t, s)
}

func TestExposedFollowsRegistry(t *testing.T) {
	newRegistry := func(names ...string) *tools.Registry {
		static := make([]tools.Invoker, len(names))
		for i, name := range names {
			static[i] = &stubTool{name: name, result: map[string]any{}}
		}
		registry := tools.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
		registry.Initialize(context.Background(), nil, static)
		return registry
	}

	exposedNames := func(registry *tools.Registry) []string {
		var names []string
		for _, def := range exposed(registry) {
			names = append(names, def.Name)
		}
		return names
	}

	t.Run("pool risk only", func(t *testing.T) {
		registry := newRegistry(tools.ToolConcentration, tools.ToolComposite)
		names := exposedNames(registry)
		assert.ElementsMatch(t, []string{tools.ToolConcentration, tools.ToolComposite}, names)
	})

	t.Run("token intel only", func(t *testing.T) {
		registry := newRegistry(tokenintel.ToolSecurity, tokenintel.ToolClassify)
		names := exposedNames(registry)
		assert.ElementsMatch(t, []string{tokenintel.ToolSecurity, tokenintel.ToolClassify}, names)
	})

	t.Run("combined", func(t *testing.T) {
		registry := newRegistry(
			tools.ToolConcentration, tools.ToolLiquidity, tools.ToolMarket,
			tools.ToolBehavioral, tools.ToolComposite, tools.ToolPoolInfo,
			tokenintel.ToolSecurity, tokenintel.ToolMarket,
			tokenintel.ToolSentiment, tokenintel.ToolClassify,
		)
		assert.Len(t, exposedNames(registry), 10)
	})

	t.Run("empty registry exposes nothing", func(t *testing.T) {
		assert.Empty(t, exposedNames(newRegistry()))
	})
}
