package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/config"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "settlements.db", cfg.Server.DBPath)
	assert.Equal(t, 30*time.Second, cfg.Baseline.Timeout)
	assert.True(t, cfg.Baseline.UseFixtures())

	schema, err := cfg.Engine.Schema()
	require.NoError(t, err)
	assert.True(t, schema.RatePerDay)
	assert.True(t, schema.WorkedDays)
	assert.True(t, schema.AutoAmount)
}

func TestLoad_NilFlagSet(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FlagsOverride(t *testing.T) {
	cfg, err := config.Load(newFlags(t,
		"--port=9090",
		"--db=:memory:",
		"--baseline-url=https://erp.example.com",
		"--baseline-timeout=5s",
		"--line-fields=rate_per_day",
	))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Server.DBPath)
	assert.False(t, cfg.Baseline.UseFixtures())
	assert.Equal(t, 5*time.Second, cfg.Baseline.Timeout)

	schema, err := cfg.Engine.Schema()
	require.NoError(t, err)
	assert.True(t, schema.RatePerDay)
	assert.False(t, schema.AutoAmount)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FNF_PORT", "7070")
	t.Setenv("FNF_BASELINE_URL", "https://erp.example.com")
	t.Setenv("FNF_BASELINE_TOKEN", "key:secret")

	cfg, err := config.Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://erp.example.com", cfg.Baseline.URL)
	assert.Equal(t, "key:secret", cfg.Baseline.Token)
}

func TestLoad_EnvironmentLists(t *testing.T) {
	// GIVEN: Comma-separated list values in the environment
	t.Setenv("FNF_LINE_FIELDS", "rate_per_day,worked_days")
	t.Setenv("FNF_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	// WHEN
	cfg, err := config.Load(newFlags(t))
	require.NoError(t, err)

	// THEN: Each entry is its own element
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"rate_per_day", "worked_days"}, cfg.Engine.LineFields)

	schema, err := cfg.Engine.Schema()
	require.NoError(t, err)
	assert.True(t, schema.RatePerDay)
	assert.True(t, schema.WorkedDays)
	assert.False(t, schema.AutoAmount)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fnf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 6060\nrules: ./rules.json\n"), 0o644))

	cfg, err := config.Load(newFlags(t, "--config="+path))
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "./rules.json", cfg.Engine.RulesPath)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := config.Load(newFlags(t, "--port=0"))
	assert.Error(t, err)

	_, err = config.Load(newFlags(t, "--line-fields=hourly_rate"))
	assert.Error(t, err)

	_, err = config.Load(newFlags(t, "--config=/does/not/exist.yaml"))
	assert.Error(t, err)
}
