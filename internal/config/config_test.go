package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBatchSize, cfg.Pagination.BatchSize)
	assert.Equal(t, DefaultPoolDayDataDays, cfg.Window.PoolDayDataDays)
	assert.True(t, cfg.Cache.Entities["ticks"])
	assert.True(t, cfg.Cache.Entities["poolDayData"])
	assert.False(t, cfg.Cache.Entities["swaps"])
	assert.False(t, cfg.Cache.Entities["positions"])
}

func TestValidate_WeightSum(t *testing.T) {
	cfg := validConfig()
	cfg.Scoring.WeightBehavioral = 0.5 // breaks the sum
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1.0")
}

func TestValidate_TokenIntelWeightSum(t *testing.T) {
	cfg := validConfig()
	cfg.TokenIntel.WeightSentiment = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token intel weights")
}

func TestValidate_LevelBands(t *testing.T) {
	tests := []struct {
		name    string
		levels  []LevelBand
		wantErr string
	}{
		{
			name:    "empty",
			levels:  nil,
			wantErr: "at least one",
		},
		{
			name: "gap",
			levels: []LevelBand{
				{Name: "LOW", Min: 0, Max: 40},
				{Name: "HIGH", Min: 50, Max: 100},
			},
			wantErr: "contiguous",
		},
		{
			name: "short of 100",
			levels: []LevelBand{
				{Name: "LOW", Min: 0, Max: 50},
				{Name: "HIGH", Min: 51, Max: 90},
			},
			wantErr: "end at 100",
		},
		{
			name: "valid",
			levels: []LevelBand{
				{Name: "LOW", Min: 0, Max: 49},
				{Name: "HIGH", Min: 50, Max: 100},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLevels(tt.levels)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_CacheBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Backend = "memcached"
	assert.Error(t, cfg.Validate())

	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = ""
	assert.Error(t, cfg.Validate())

	cfg.Cache.RedisAddr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_LPAgeOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Window.LPAgeMercenaryDays = 120
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LP_AGE_MERCENARY_DAYS")
}
