// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)

	Subgraph      SubgraphConfig
	Pagination    PaginationConfig
	Cache         CacheConfig
	Window        WindowConfig
	Thresholds    RiskThresholds
	Scoring       ScoringConfig
	Oracle        OracleConfig
	Orchestration OrchestrationConfig
	TokenIntel    TokenIntelConfig
}

// SubgraphConfig configures the upstream indexing API.
type SubgraphConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// PaginationConfig controls cursor pagination against the subgraph.
type PaginationConfig struct {
	BatchSize      int
	RateLimitDelay time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// CacheConfig controls the hybrid TTL cache.
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	Backend   string // "file" or "redis"
	Directory string
	RedisAddr string
	// Entities maps entity type to whether it participates in caching.
	// Swaps and positions are time-sensitive and never cached.
	Entities map[string]bool
}

// WindowConfig holds query window sizes.
type WindowConfig struct {
	PoolDayDataDays    int
	SwapLimit          int
	LPAgeMercenaryDays int
	LPAgeLongTermDays  int
}

// RiskThresholds holds per-analyzer flag thresholds.
type RiskThresholds struct {
	Concentration ConcentrationThresholds
	Liquidity     LiquidityThresholds
	Market        MarketThresholds
	Behavioral    BehavioralThresholds
}

// ConcentrationThresholds gates concentration risk flags.
type ConcentrationThresholds struct {
	GiniHigh           float64
	GiniCritical       float64
	HHIHigh            float64
	HHICritical        float64
	Top10HighPct       float64
	Top10CriticalPct   float64
	MercenaryLiquidity float64 // pct of liquidity held < mercenary age
}

// LiquidityThresholds gates liquidity depth risk flags.
type LiquidityThresholds struct {
	Impact100KHighPct     float64
	Impact100KCriticalPct float64
	Impact1MHighPct       float64
	Impact1MCriticalPct   float64
	ActiveLiquidityLowPct float64
	TVLVolatilityHighPct  float64
}

// MarketThresholds gates market risk flags.
type MarketThresholds struct {
	UtilizationLow         float64
	UtilizationCriticalLow float64
	CorrelationHighILRisk  float64
	CorrelationLowILRisk   float64
}

// BehavioralThresholds gates behavioral risk flags.
type BehavioralThresholds struct {
	WashTradingHighPct     float64
	WashTradingCriticalPct float64
	MEVExposureHighPct     float64
	MEVExposureCriticalPct float64
}

// LevelBand maps a score range to a risk level name.
type LevelBand struct {
	Name string
	Min  int
	Max  int
}

// ScoringConfig holds composite scoring weights and level bands.
type ScoringConfig struct {
	// Weights must sum to 1.0 (validated at load).
	WeightConcentration float64
	WeightLiquidity     float64
	WeightMarket        float64
	WeightBehavioral    float64
	Levels              []LevelBand
}

// OracleConfig configures the LLM oracle.
type OracleConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// OrchestrationConfig configures the top-level agent router.
type OrchestrationConfig struct {
	Timeout time.Duration
	// RemoteAgents maps agent name to its base URL.
	RemoteAgents map[string]string
	// MCPAddr is the pool-risk MCP tool endpoint (empty = in-process tools).
	MCPAddr string
}

// TokenIntelConfig configures the token intelligence agent.
type TokenIntelConfig struct {
	GoPlusURL       string
	DexScreenerURL  string
	WeightSecurity  float64
	WeightMarket    float64
	WeightSentiment float64
	SafeMaxScore    int
	DangerMinScore  int
}

const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultSubgraphEndpoint = "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v3"
	DefaultBatchSize        = 1000
	DefaultMaxRetries       = 3

	DefaultCacheTTL = time.Hour
	DefaultCacheDir = ".cache"

	DefaultPoolDayDataDays = 30
	DefaultSwapLimit       = 2000
	DefaultMercenaryDays   = 7
	DefaultLongTermDays    = 90

	DefaultOracleModel = "gpt-4o-mini"

	DefaultOrchestrationTimeout = 120 * time.Second
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		Env:          getEnv("ENV", DefaultEnv),
		LogLevel:     getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:    getEnv("LOG_FORMAT", DefaultLogFormat),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		Subgraph: SubgraphConfig{
			Endpoint: getEnv("SUBGRAPH_ENDPOINT", DefaultSubgraphEndpoint),
			Timeout:  getEnvDuration("SUBGRAPH_TIMEOUT", 30*time.Second),
		},
		Pagination: PaginationConfig{
			BatchSize:      getEnvInt("PAGINATION_BATCH_SIZE", DefaultBatchSize),
			RateLimitDelay: getEnvDuration("PAGINATION_RATE_LIMIT_DELAY", 200*time.Millisecond),
			MaxRetries:     getEnvInt("PAGINATION_MAX_RETRIES", DefaultMaxRetries),
			RetryDelay:     getEnvDuration("PAGINATION_RETRY_DELAY", time.Second),
		},
		Cache: CacheConfig{
			Enabled:   getEnvBool("CACHE_ENABLED", true),
			TTL:       getEnvDuration("CACHE_TTL", DefaultCacheTTL),
			Backend:   getEnv("CACHE_BACKEND", "file"),
			Directory: getEnv("CACHE_DIR", DefaultCacheDir),
			RedisAddr: os.Getenv("CACHE_REDIS_ADDR"),
			Entities: map[string]bool{
				"ticks":       true,
				"poolDayData": true,
				"swaps":       false,
				"positions":   false,
			},
		},
		Window: WindowConfig{
			PoolDayDataDays:    getEnvInt("POOL_DAY_DATA_DAYS", DefaultPoolDayDataDays),
			SwapLimit:          getEnvInt("SWAP_LIMIT", DefaultSwapLimit),
			LPAgeMercenaryDays: getEnvInt("LP_AGE_MERCENARY_DAYS", DefaultMercenaryDays),
			LPAgeLongTermDays:  getEnvInt("LP_AGE_LONG_TERM_DAYS", DefaultLongTermDays),
		},
		Thresholds: RiskThresholds{
			Concentration: ConcentrationThresholds{
				GiniHigh:           0.85,
				GiniCritical:       0.95,
				HHIHigh:            2500,
				HHICritical:        5000,
				Top10HighPct:       70,
				Top10CriticalPct:   90,
				MercenaryLiquidity: 50,
			},
			Liquidity: LiquidityThresholds{
				Impact100KHighPct:     1,
				Impact100KCriticalPct: 5,
				Impact1MHighPct:       5,
				Impact1MCriticalPct:   15,
				ActiveLiquidityLowPct: 20,
				TVLVolatilityHighPct:  30,
			},
			Market: MarketThresholds{
				UtilizationLow:         0.01,
				UtilizationCriticalLow: 0.001,
				CorrelationHighILRisk:  0,
				CorrelationLowILRisk:   0.3,
			},
			Behavioral: BehavioralThresholds{
				WashTradingHighPct:     5,
				WashTradingCriticalPct: 15,
				MEVExposureHighPct:     10,
				MEVExposureCriticalPct: 25,
			},
		},
		Scoring: ScoringConfig{
			WeightConcentration: getEnvFloat("WEIGHT_CONCENTRATION", 0.30),
			WeightLiquidity:     getEnvFloat("WEIGHT_LIQUIDITY", 0.30),
			WeightMarket:        getEnvFloat("WEIGHT_MARKET", 0.20),
			WeightBehavioral:    getEnvFloat("WEIGHT_BEHAVIORAL", 0.20),
			Levels: []LevelBand{
				{Name: "LOW", Min: 0, Max: 29},
				{Name: "MEDIUM", Min: 30, Max: 59},
				{Name: "HIGH", Min: 60, Max: 79},
				{Name: "CRITICAL", Min: 80, Max: 100},
			},
		},
		Oracle: OracleConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("ORACLE_MODEL", DefaultOracleModel),
			Temperature: 0.0,
		},
		Orchestration: OrchestrationConfig{
			Timeout: getEnvDuration("ORCHESTRATION_TIMEOUT", DefaultOrchestrationTimeout),
			RemoteAgents: map[string]string{
				"pool_risk":   getEnv("POOL_RISK_AGENT_URL", "http://localhost:8001"),
				"token_intel": getEnv("TOKEN_INTEL_AGENT_URL", "http://localhost:8002"),
			},
			MCPAddr: os.Getenv("POOL_RISK_MCP_ADDR"),
		},
		TokenIntel: TokenIntelConfig{
			GoPlusURL:       getEnv("GOPLUS_URL", "https://api.gopluslabs.io/api/v1"),
			DexScreenerURL:  getEnv("DEXSCREENER_URL", "https://api.dexscreener.com/latest"),
			WeightSecurity:  getEnvFloat("TI_WEIGHT_SECURITY", 0.40),
			WeightMarket:    getEnvFloat("TI_WEIGHT_MARKET", 0.35),
			WeightSentiment: getEnvFloat("TI_WEIGHT_SENTIMENT", 0.25),
			SafeMaxScore:    getEnvInt("TI_SAFE_MAX_SCORE", 25),
			DangerMinScore:  getEnvInt("TI_DANGER_MIN_SCORE", 61),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent.
// A misconfigured weight or band set makes every downstream score meaningless,
// so validation failures are fatal at startup.
func (c *Config) Validate() error {
	if c.Subgraph.Endpoint == "" {
		return fmt.Errorf("SUBGRAPH_ENDPOINT is required")
	}
	if c.Pagination.BatchSize <= 0 {
		return fmt.Errorf("PAGINATION_BATCH_SIZE must be positive, got %d", c.Pagination.BatchSize)
	}
	if c.Pagination.MaxRetries <= 0 {
		return fmt.Errorf("PAGINATION_MAX_RETRIES must be positive, got %d", c.Pagination.MaxRetries)
	}

	sum := c.Scoring.WeightConcentration + c.Scoring.WeightLiquidity +
		c.Scoring.WeightMarket + c.Scoring.WeightBehavioral
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}

	tiSum := c.TokenIntel.WeightSecurity + c.TokenIntel.WeightMarket + c.TokenIntel.WeightSentiment
	if math.Abs(tiSum-1.0) > 1e-6 {
		return fmt.Errorf("token intel weights must sum to 1.0, got %.4f", tiSum)
	}

	if err := validateLevels(c.Scoring.Levels); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("CACHE_BACKEND must be \"file\" or \"redis\", got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("CACHE_REDIS_ADDR is required when CACHE_BACKEND=redis")
	}

	if c.Window.LPAgeMercenaryDays >= c.Window.LPAgeLongTermDays {
		return fmt.Errorf("LP_AGE_MERCENARY_DAYS (%d) must be below LP_AGE_LONG_TERM_DAYS (%d)",
			c.Window.LPAgeMercenaryDays, c.Window.LPAgeLongTermDays)
	}

	return nil
}

// validateLevels checks the bands are contiguous and span 0-100.
func validateLevels(levels []LevelBand) error {
	if len(levels) == 0 {
		return fmt.Errorf("at least one risk level band is required")
	}
	next := 0
	for _, band := range levels {
		if band.Name == "" {
			return fmt.Errorf("risk level band missing name")
		}
		if band.Min != next {
			return fmt.Errorf("risk level bands must be contiguous: %s starts at %d, expected %d",
				band.Name, band.Min, next)
		}
		if band.Max < band.Min {
			return fmt.Errorf("risk level band %s has max %d below min %d", band.Name, band.Max, band.Min)
		}
		next = band.Max + 1
	}
	if next != 101 {
		return fmt.Errorf("risk level bands must end at 100, got %d", next-1)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
