// Package metrics provides Prometheus instrumentation for the poolscope services.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status bucket.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "poolscope",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SubgraphPagesTotal counts pages fetched from the subgraph by entity.
	SubgraphPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "subgraph_pages_total",
			Help:      "Total subgraph pages fetched by entity type.",
		},
		[]string{"entity"},
	)

	// SubgraphRetriesTotal counts retried subgraph requests.
	SubgraphRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "subgraph_retries_total",
			Help:      "Total retried subgraph requests.",
		},
	)

	// CacheHitsTotal counts cache hits by entity type.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "cache_hits_total",
			Help:      "Total cache hits by entity type.",
		},
		[]string{"entity"},
	)

	// CacheMissesTotal counts cache misses (absent, expired, or corrupt) by entity type.
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "cache_misses_total",
			Help:      "Total cache misses by entity type and reason.",
		},
		[]string{"entity", "reason"},
	)

	// ToolInvocationsTotal counts tool executions by tool name and result.
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "tool_invocations_total",
			Help:      "Total tool invocations by tool name and result.",
		},
		[]string{"tool", "result"},
	)

	// OracleCallsTotal counts oracle calls by kind (plan, route, synthesize) and result.
	OracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "oracle_calls_total",
			Help:      "Total LLM oracle calls by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// AnalysesTotal counts completed analyses by composite risk level.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "analyses_total",
			Help:      "Total completed pool analyses by composite risk level.",
		},
		[]string{"level"},
	)

	// RemoteAgentCallsTotal counts remote agent invocations by agent and result.
	RemoteAgentCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "poolscope",
			Name:      "remote_agent_calls_total",
			Help:      "Total remote agent invocations by agent name and result.",
		},
		[]string{"agent", "result"},
	)

	// ActiveStreamClients tracks connected websocket stream clients.
	ActiveStreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "poolscope",
			Name:      "active_stream_clients",
			Help:      "Number of currently connected websocket stream clients.",
		},
	)

	// DiscoveredAgents tracks the number of currently discovered remote agents.
	DiscoveredAgents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "poolscope",
			Name:      "discovered_agents",
			Help:      "Number of remote agents with a resolved agent card.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SubgraphPagesTotal,
		SubgraphRetriesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		ToolInvocationsTotal,
		OracleCallsTotal,
		AnalysesTotal,
		RemoteAgentCallsTotal,
		ActiveStreamClients,
		DiscoveredAgents,
	)
}

// Handler returns a gin handler serving the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request counts and latencies per route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		HTTPRequestsTotal.WithLabelValues(method, path, statusBucket(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// statusBucket maps a status code to its class ("2xx", "4xx", ...).
func statusBucket(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
