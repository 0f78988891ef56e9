package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/poolscope/poolscope/internal/metrics"
	"github.com/poolscope/poolscope/internal/oracle"
)

// State tracks where the registry's tools came from.
type State int

const (
	// StateUninitialized means Initialize has not completed; lookups fail.
	StateUninitialized State = iota
	// StateToolsLoaded means the remote (MCP) tool set registered cleanly.
	StateToolsLoaded
	// StateFallbackStatic means remote registration failed and the static
	// in-process pipeline is serving instead.
	StateFallbackStatic
)

func (s State) String() string {
	switch s {
	case StateToolsLoaded:
		return "tools_loaded"
	case StateFallbackStatic:
		return "fallback_static"
	default:
		return "uninitialized"
	}
}

// Loader produces the preferred tool set, typically over MCP.
type Loader interface {
	Load(ctx context.Context) ([]Invoker, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]Invoker, error)

func (f LoaderFunc) Load(ctx context.Context) ([]Invoker, error) { return f(ctx) }

// Registry is the name-to-tool table. Registration happens once through
// Initialize; after that the table is read-only, so lookups take the read
// lock only.
type Registry struct {
	mu     sync.RWMutex
	state  State
	tools  map[string]Invoker
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Invoker),
		logger: logger,
	}
}

// Initialize loads tools from loader, falling back to the static set when
// the loader fails. A nil loader goes straight to the static set. Startup
// never fails on an unreachable tool transport.
func (r *Registry) Initialize(ctx context.Context, loader Loader, static []Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loader != nil {
		loaded, err := loader.Load(ctx)
		if err == nil && len(loaded) > 0 {
			for _, t := range loaded {
				r.tools[t.Name()] = t
			}
			r.state = StateToolsLoaded
			r.logger.Info("tool registry initialized", "source", "mcp", "tools", len(loaded))
			return
		}
		r.logger.Warn("remote tool registration failed, using static pipeline", "error", err)
	}

	for _, t := range static {
		r.tools[t.Name()] = t
	}
	r.state = StateFallbackStatic
	r.logger.Info("tool registry initialized", "source", "static", "tools", len(static))
}

// State returns the registry's lifecycle state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Descriptions lists registered tools for the planner, sorted by name for
// prompt stability.
func (r *Registry) Descriptions() []oracle.ToolDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]oracle.ToolDescription, 0, len(r.tools))
	for _, t := range r.tools {
		descs = append(descs, oracle.ToolDescription{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Invoke runs a registered tool and records the outcome.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	r.mu.RLock()
	state := r.state
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if state == StateUninitialized {
		return nil, fmt.Errorf("tool registry not initialized")
	}
	if !ok {
		metrics.ToolInvocationsTotal.WithLabelValues(name, "not_found").Inc()
		return nil, fmt.Errorf("tool %s not found", name)
	}

	result, err := t.Invoke(ctx, args)
	if err != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(name, "error").Inc()
		return nil, err
	}
	metrics.ToolInvocationsTotal.WithLabelValues(name, "success").Inc()
	return result, nil
}
