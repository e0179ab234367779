// Package config handles configuration loading from an optional YAML file and
// environment variables. Environment variables override file values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string `mapstructure:"database_url"`

	// HTTP server port for the study API
	HTTPPort int `mapstructure:"http_port"`

	// Base URLs of the remote services
	CaseServerURL       string `mapstructure:"case_server_url"`
	ConversionServerURL string `mapstructure:"conversion_server_url"`
	LoadFlowServerURL   string `mapstructure:"loadflow_server_url"`
	SecurityServerURL   string `mapstructure:"security_analysis_server_url"`
	ActionsServerURL    string `mapstructure:"actions_server_url"`

	// How long a computation gate may stay RUNNING before reclamation
	ComputationTTL time.Duration `mapstructure:"computation_ttl"`

	// Period of the reclamation pass
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`

	// Upper bounds on background work
	CreationTimeout    time.Duration `mapstructure:"creation_timeout"`
	ComputationTimeout time.Duration `mapstructure:"computation_timeout"`

	// Whether a network mutation also clears the security-analysis result
	InvalidateSecurityAnalysisOnChange bool `mapstructure:"invalidate_security_analysis_on_change"`

	// Per-user request rate limiting. 0 disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// OTLP collector endpoint for traces
	OTELEndpoint string `mapstructure:"otel_endpoint"`
}

// Load reads configuration from the given file (optional) and the
// environment. Environment variables use upper snake case, e.g. DATABASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 5001)
	v.SetDefault("case_server_url", "http://localhost:5010")
	v.SetDefault("conversion_server_url", "http://localhost:5003")
	v.SetDefault("loadflow_server_url", "http://localhost:5008")
	v.SetDefault("security_analysis_server_url", "http://localhost:5023")
	v.SetDefault("actions_server_url", "http://localhost:5022")
	v.SetDefault("computation_ttl", time.Hour)
	v.SetDefault("reconcile_interval", time.Minute)
	v.SetDefault("creation_timeout", 10*time.Minute)
	v.SetDefault("computation_timeout", 30*time.Minute)
	v.SetDefault("invalidate_security_analysis_on_change", true)
	v.SetDefault("rate_limit_rps", 0.0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("otel_endpoint", "localhost:4317")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// database_url has no default, so it needs an explicit binding for
	// Unmarshal to see the env-only value.
	v.BindEnv("database_url", "DATABASE_URL")
	// PORT is the conventional name in deployment environments.
	v.BindEnv("http_port", "PORT", "HTTP_PORT")
	v.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENDPOINT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (env: DATABASE_URL)")
	}
	if cfg.ComputationTTL <= 0 {
		return nil, fmt.Errorf("computation_ttl must be positive")
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("reconcile_interval must be positive")
	}

	return &cfg, nil
}
