// Package server sets up the HTTP surface shared by all three agent
// services: the analyze endpoint, the agent card, health and readiness
// probes, Prometheus metrics and the realtime stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poolscope/poolscope/internal/agentcard"
	"github.com/poolscope/poolscope/internal/config"
	"github.com/poolscope/poolscope/internal/health"
	"github.com/poolscope/poolscope/internal/idgen"
	"github.com/poolscope/poolscope/internal/logging"
	"github.com/poolscope/poolscope/internal/metrics"
	"github.com/poolscope/poolscope/internal/orchestrator"
	"github.com/poolscope/poolscope/internal/realtime"
	"github.com/poolscope/poolscope/internal/validation"
)

// AnalyzeFunc handles one analysis request. Implementations never fail;
// degradation is embedded in the response.
type AnalyzeFunc func(ctx context.Context, req orchestrator.Request) orchestrator.Response

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg          *config.Config
	card         agentcard.Card
	analyze      AnalyzeFunc
	hub          *realtime.Hub
	checks       *health.Registry
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc
	onStart      []func(ctx context.Context)

	ready atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHub attaches a realtime hub and exposes /v1/stream.
func WithHub(hub *realtime.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithHealthCheck registers a named readiness check.
func WithHealthCheck(name string, check health.Checker) Option {
	return func(s *Server) { s.checks.Register(name, check) }
}

// WithStartHook runs fn once when Run starts, with the run context.
func WithStartHook(fn func(ctx context.Context)) Option {
	return func(s *Server) { s.onStart = append(s.onStart, fn) }
}

// WithRoute registers an extra route on top of the shared surface.
func WithRoute(method, path string, handler gin.HandlerFunc) Option {
	return func(s *Server) { s.router.Handle(method, path, handler) }
}

// New builds a server for one agent.
func New(cfg *config.Config, card agentcard.Card, analyze AnalyzeFunc, opts ...Option) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		card:    card,
		analyze: analyze,
		checks:  health.NewRegistry(),
		logger:  logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.traceIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET(agentcard.WellKnownPath, agentcard.Handler(s.card))
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/readyz", s.handleReadyz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.POST("/v1/analyze", s.handleAnalyze)
	if s.hub != nil {
		s.router.GET("/v1/stream", func(c *gin.Context) {
			s.hub.HandleWebSocket(c.Writer, c.Request)
		})
	}
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Question = validation.SanitizeQuestion(req.Question)
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_question is required"})
		return
	}
	if req.PoolAddress != "" {
		if !validation.IsValidPoolAddress(req.PoolAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid pool address %q", req.PoolAddress)})
			return
		}
		req.PoolAddress = validation.NormalizeAddress(req.PoolAddress)
	}
	if req.TraceID == "" {
		req.TraceID = logging.TraceID(c.Request.Context())
	}

	if s.hub != nil && req.PoolAddress != "" {
		s.hub.BroadcastAnalysisStarted(req.PoolAddress, req.TraceID)
	}

	resp := s.analyze(c.Request.Context(), req)

	if s.hub != nil && req.PoolAddress != "" {
		level, _ := resp.Metadata["risk_level"].(string)
		s.hub.BroadcastAnalysisCompleted(req.PoolAddress, resp.RiskScore, level)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}

	healthy, statuses := s.checks.CheckAll(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "checks": statuses})
}

func (s *Server) traceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = idgen.New()
		}

		ctx := logging.WithTraceID(c.Request.Context(), traceID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Trace-ID", traceID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// Run starts the server and blocks until a shutdown signal, a server
// error or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "agent", s.card.Name)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.hub != nil {
		go s.hub.Run(runCtx)
	}
	for _, fn := range s.onStart {
		go fn(runCtx)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown drains in-flight requests and stops background goroutines.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic.
	time.Sleep(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.logger.Info("shutdown complete")
	return nil
}
