package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, model.DefaultParams(), cfg.Params)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	l := NewLoader()
	cfg, err := l.Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Empty(t, l.ConfigFileUsed())
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
params:
  edge_waste_max_mm: 60
  min_remainder_m: 300
  objective: lexicographic
log:
  level: debug
output:
  dir: /tmp/plans
  labels: true
`)

	l := NewLoader()
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, l.ConfigFileUsed())
	assert.Equal(t, 60.0, cfg.Params.EdgeWasteMaxMM)
	assert.Equal(t, 300.0, cfg.Params.MinRemainderM)
	assert.Equal(t, model.ObjectiveLexicographic, cfg.Params.Objective)
	assert.Equal(t, 7500.0, cfg.Params.RollWeightMaxKg, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/plans", cfg.Output.Dir)
	assert.True(t, cfg.Output.Labels)
	assert.True(t, cfg.Output.PDF)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
params:
  edge_waste_max_mm: 60
  solve_time_limit_s: 120
  coverage_margin: 0.9
`)
	t.Setenv("COILCUT_PARAMS_SOLVE_TIME_LIMIT_S", "90")
	t.Setenv("COILCUT_PARAMS_COVERAGE_MARGIN", "0.85")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--coverage=0.92", "--threads=2"}))

	l := NewLoader()
	require.NoError(t, l.BindFlags(flags))
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60.0, cfg.Params.EdgeWasteMaxMM, "file beats default")
	assert.Equal(t, 90, cfg.Params.SolveTimeLimitS, "env beats file")
	assert.Equal(t, 0.92, cfg.Params.CoverageMargin, "flag beats env")
	assert.Equal(t, 2, cfg.Params.Threads)
	assert.Equal(t, 6, cfg.Params.MaxOrdersPerPattern, "unchanged flags do not override")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "params: [not a map")
	_, err := NewLoader().Load(path)
	assert.Error(t, err)
}

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	for _, f := range paramFlags {
		assert.NotNil(t, flags.Lookup(f.name), f.name)
	}
	objective := flags.Lookup("objective")
	require.NotNil(t, objective)
	assert.Equal(t, "weighted", objective.DefValue)
	assert.Equal(t, "40", flags.Lookup("waste-max").DefValue)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"waste max out of range", func(c *Config) { c.Params.EdgeWasteMaxMM = 250 }},
		{"time limit below range", func(c *Config) { c.Params.SolveTimeLimitS = 10 }},
		{"inconsistent window", func(c *Config) { c.Params.EdgeWasteMinMM = 30; c.Params.EdgeWasteMaxMM = 20 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"empty output dir", func(c *Config) { c.Output.Dir = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSetParamsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	preset := model.DefaultParams()
	preset.MinRemainderM = 300
	preset.SolveTimeLimitS = 120

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--time-limit=60"}))

	l := NewLoader()
	require.NoError(t, l.BindFlags(flags))
	l.SetParamsDefaults(preset)
	cfg, err := l.Load("")
	require.NoError(t, err)

	assert.Equal(t, 300.0, cfg.Params.MinRemainderM)
	assert.Equal(t, 60, cfg.Params.SolveTimeLimitS, "flags override the preset")
}

func TestParamsChanged(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log-level=debug", "--pdf=false"}))
	assert.False(t, ParamsChanged(flags))

	require.NoError(t, flags.Parse([]string{"--waste-max=50"}))
	assert.True(t, ParamsChanged(flags))
}
