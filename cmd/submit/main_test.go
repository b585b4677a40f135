package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-alpha-agent/internal/store"
)

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--model-name", "wsb_v3", "--days", "10", "--leverage", "0.5", "--dry-run"}))

	cfg := store.Default()
	o := optionsFrom(t, cmd)
	require.NoError(t, o.apply(cfg))

	assert.Equal(t, "wsb_v3", cfg.Pipeline.ModelName)
	assert.Equal(t, 10, cfg.Pipeline.LookbackDays)
	assert.Equal(t, 0.5, cfg.Alpha.Leverage)
	assert.Equal(t, "us_stock", cfg.Finter.Universe)
	assert.True(t, cfg.Pipeline.DryRun)
}

func TestSubmitsLiveByDefault(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := store.LoadConfig("../../config.yaml")
	require.NoError(t, err)
	require.NoError(t, optionsFrom(t, cmd).apply(cfg))
	assert.False(t, cfg.Pipeline.DryRun)

	cfg = store.Default()
	cfg.Pipeline.DryRun = true
	require.NoError(t, optionsFrom(t, cmd).apply(cfg))
	assert.False(t, cfg.Pipeline.DryRun)
}

func TestDryRunFlagExplicitFalse(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--dry-run=false"}))

	cfg := store.Default()
	cfg.Pipeline.DryRun = true
	require.NoError(t, optionsFrom(t, cmd).apply(cfg))
	assert.False(t, cfg.Pipeline.DryRun)
}

func TestRejectsBadFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--leverage", "-1"}))
	assert.Error(t, optionsFrom(t, cmd).apply(store.Default()))

	cmd = newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--days", "0"}))
	assert.Error(t, optionsFrom(t, cmd).apply(store.Default()))
}

// optionsFrom reads the bound flag values back off cmd.
func optionsFrom(t *testing.T, cmd *cobra.Command) *options {
	t.Helper()
	f := cmd.Flags()
	o := &options{}
	var err error
	o.configPath, err = f.GetString("config")
	require.NoError(t, err)
	o.modelName, _ = f.GetString("model-name")
	o.days, _ = f.GetInt("days")
	o.leverage, _ = f.GetFloat64("leverage")
	o.universe, _ = f.GetString("universe")
	o.dryRun, _ = f.GetBool("dry-run")
	return o
}
