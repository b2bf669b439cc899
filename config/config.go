// Package config loads server configuration from flags, environment
// variables (FNF_ prefix) and an optional config file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/warp/settlement-engine/settlement"
)

type Config struct {
	Server   ServerConfig
	Baseline BaselineConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port        int
	DBPath      string
	CORSOrigins []string
}

type BaselineConfig struct {
	URL     string
	Method  string
	Token   string
	Timeout time.Duration
	// Fixtures is a JSON fixture file; empty means the built-in set.
	Fixtures string
}

type EngineConfig struct {
	// RulesPath is a JSON rule-set file; empty means the default rules.
	RulesPath  string
	LineFields []string
}

// UseFixtures reports whether no remote service is configured.
func (c BaselineConfig) UseFixtures() bool {
	return strings.TrimSpace(c.URL) == ""
}

// Schema returns the declared optional line fields.
func (c EngineConfig) Schema() (settlement.Schema, error) {
	return settlement.ParseSchema(c.LineFields)
}

// RegisterFlags adds the server flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (yaml, json or toml)")
	fs.Int("port", 8080, "HTTP server port")
	fs.String("db", "settlements.db", "SQLite database path (\":memory:\" for in-memory)")
	fs.String("baseline-url", "", "Base URL of the baseline computation service (empty: fixtures)")
	fs.String("baseline-method", "", "Remote method path returning the payload")
	fs.String("baseline-token", "", "API token for the baseline service")
	fs.Duration("baseline-timeout", 30*time.Second, "Baseline fetch timeout")
	fs.String("fixtures", "", "JSON fixture file used when no baseline URL is set")
	fs.String("rules", "", "JSON rule-set file")
	fs.StringSlice("line-fields", []string{"rate_per_day", "worked_days", "auto_amount"}, "Optional line fields declared by the table")
	fs.StringSlice("cors-origins", []string{"http://localhost:5173", "http://localhost:8080"}, "Allowed CORS origins")
}

// Load resolves configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FNF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("db", "settlements.db")
	v.SetDefault("baseline-timeout", 30*time.Second)
	v.SetDefault("line-fields", []string{"rate_per_day", "worked_days", "auto_amount"})
	v.SetDefault("cors-origins", []string{"http://localhost:5173", "http://localhost:8080"})

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetInt("port"),
			DBPath:      v.GetString("db"),
			CORSOrigins: stringList(v, "cors-origins"),
		},
		Baseline: BaselineConfig{
			URL:      v.GetString("baseline-url"),
			Method:   v.GetString("baseline-method"),
			Token:    v.GetString("baseline-token"),
			Timeout:  v.GetDuration("baseline-timeout"),
			Fixtures: v.GetString("fixtures"),
		},
		Engine: EngineConfig{
			RulesPath:  v.GetString("rules"),
			LineFields: stringList(v, "line-fields"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringList reads a list key. Environment values arrive as one string and
// are split on commas; viper alone would split them on whitespace.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.Server.DBPath == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if c.Baseline.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("baseline timeout %s must be positive", c.Baseline.Timeout))
	}
	if _, err := c.Engine.Schema(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
