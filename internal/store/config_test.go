package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("reddit:\n  subreddit: stocks\n"))
	require.NoError(t, err)

	assert.Equal(t, "stocks", cfg.Reddit.Subreddit)
	assert.Equal(t, "API", cfg.Reddit.Source)
	assert.Equal(t, 500, cfg.Reddit.ListingLimit)
	assert.Equal(t, "AlphatonSentimentAgent/1.0", cfg.Reddit.UserAgent)
	assert.Equal(t, "https://api.finter.quantit.io", cfg.Finter.BaseURL)
	assert.Equal(t, 1e8, cfg.Finter.InitialCash)
	assert.Equal(t, 5, cfg.Alpha.FFillLimit)
	assert.Equal(t, "0 16 * * *", cfg.Pipeline.Schedule)
	assert.Equal(t, "reddit_sentiment_v1", cfg.Pipeline.ModelName)
}

func TestGateProfiles(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		minSharpe   float64
		maxDrawdown float64
	}{
		{"default is strict", "", 1.5, 0.15},
		{"relaxed", "gate:\n  profile: relaxed\n", 0.5, 0.30},
		{"custom", "gate:\n  profile: custom\n  min_sharpe: 1.0\n  max_drawdown: 0.2\n", 1.0, 0.2},
		{"strict with override", "gate:\n  profile: strict\n  min_sharpe: 2.0\n", 2.0, 0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.minSharpe, cfg.Gate.MinSharpe)
			assert.Equal(t, tt.maxDrawdown, cfg.Gate.MaxDrawdown)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad source", "reddit:\n  source: RSS\n"},
		{"bad schedule", "pipeline:\n  schedule: \"every day\"\n"},
		{"custom gate without thresholds", "gate:\n  profile: custom\n"},
		{"drawdown as percent", "gate:\n  profile: custom\n  min_sharpe: 1\n  max_drawdown: 15\n"},
		{"mcp backtest without url", "backtest:\n  provider: mcp\n"},
		{"enricher without tool", "enrichers:\n  - name: x\n    url: http://localhost\n"},
		{"negative leverage", "alpha:\n  leverage: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FINTER_JWT_TOKEN", "jwt")
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("REDDIT_USERNAME", "user")
	t.Setenv("REDDIT_PASSWORD", "pass")
	t.Setenv("GATE_MIN_SHARPE", "0.8")
	t.Setenv("PIPELINE_SCHEDULE", "30 21 * * 1-5")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "jwt", cfg.Finter.Token)
	assert.True(t, cfg.Reddit.HasCredentials())
	assert.Equal(t, 0.8, cfg.Gate.MinSharpe)
	assert.Equal(t, "30 21 * * 1-5", cfg.Pipeline.Schedule)

	t.Setenv("GATE_MAX_DRAWDOWN", "abc")
	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
