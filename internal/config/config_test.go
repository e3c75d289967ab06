package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Environment: "development",
		Security:    SecurityConfig{JWTExpiry: "1h"},
		Knowledge:   KnowledgeConfig{Strategy: "regex"},
		Pipeline:    PipelineConfig{MaxDistance: 0.15},
		Scoring: ScoringConfig{
			BaseScore:          850,
			BaseOdds:           20,
			PointsToDoubleOdds: 100,
			MaxScore:           1000,
			RepeatHighCutoff:   700,
			RepeatMediumCutoff: 500,
		},
		Lending: LendingConfig{
			LoanRatioMin:  2.988,
			LoanRatioMax:  3.928,
			LoanFloor:     300,
			LoanCeiling:   1000,
			DebitRatioMin: 0.843,
			DebitRatioMax: 1.185,
			DebitFloor:    90,
			DebitCeiling:  300,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "redzone", config.Database.DBName)
	assert.False(t, config.Database.Enabled)
	assert.Equal(t, 6379, config.Redis.Port)
	assert.Equal(t, "regex", config.Knowledge.Strategy)
	assert.Equal(t, 0.15, config.Pipeline.MaxDistance)
	assert.True(t, config.Pipeline.ScopeByWho)
	assert.Equal(t, 2.988, config.Lending.LoanRatioMin)
	assert.Equal(t, 3.928, config.Lending.LoanRatioMax)
	assert.Equal(t, 300.0, config.Lending.LoanFloor)
	assert.Equal(t, 1000.0, config.Lending.LoanCeiling)
	assert.Equal(t, 0.843, config.Lending.DebitRatioMin)
	assert.Equal(t, 90.0, config.Lending.DebitFloor)
	assert.Equal(t, 850.0, config.Scoring.BaseScore)
	assert.Equal(t, 700, config.Scoring.RepeatHighCutoff)
	assert.Equal(t, 5, config.ATP.PeakDistance)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("KNOWLEDGE_STRATEGY", "lookup")
	t.Setenv("LENDING_LOAN_CEILING", "1500")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "s3cret", config.Security.JWTSecret)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, "lookup", config.Knowledge.Strategy)
	assert.Equal(t, 1500.0, config.Lending.LoanCeiling)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad expiry", func(c *Config) { c.Security.JWTExpiry = "soon" }},
		{"zero ratio", func(c *Config) { c.Lending.DebitRatioMax = 0 }},
		{"loan floor above ceiling", func(c *Config) { c.Lending.LoanFloor = 2000 }},
		{"debit floor above ceiling", func(c *Config) { c.Lending.DebitFloor = 400 }},
		{"zero odds", func(c *Config) { c.Scoring.BaseOdds = 0 }},
		{"zero pdo", func(c *Config) { c.Scoring.PointsToDoubleOdds = 0 }},
		{"score range", func(c *Config) { c.Scoring.MinScore = 2000 }},
		{"repeat cutoffs", func(c *Config) { c.Scoring.RepeatMediumCutoff = 900 }},
		{"strategy", func(c *Config) { c.Knowledge.Strategy = "magic" }},
		{"lookup without redis", func(c *Config) { c.Knowledge.Strategy = "lookup" }},
		{"distance", func(c *Config) { c.Pipeline.MaxDistance = 1.5 }},
	}

	base := validConfig()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
