// Package config provides runtime configuration for Skywatch.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for Skywatch.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	HTTPPort   int    `mapstructure:"http_port"`
	DBPath     string `mapstructure:"db_path"`
	DBDriver   string `mapstructure:"db_driver"` // only "sqlite" for now

	// ── Metric source ────────────────────────────────────────────────────────
	// SourceBackend selects where readings come from:
	// "prometheus" | "docker" | "kubernetes" | "local"
	SourceBackend string `mapstructure:"source_backend"`
	PrometheusURL string `mapstructure:"prometheus_url"`
	DockerHost    string `mapstructure:"docker_host"`
	Kubeconfig    string `mapstructure:"kubeconfig"`
	InCluster     bool   `mapstructure:"in_cluster"`
	// KubeNamespace scopes pod discovery for the kubernetes backend.
	KubeNamespace string `mapstructure:"kube_namespace"`

	// ── Pipeline cadence & detection ─────────────────────────────────────────
	CollectInterval int     `mapstructure:"collect_interval_seconds"`
	LookbackHours   int     `mapstructure:"lookback_hours"`
	MinSamples      int     `mapstructure:"min_samples"`
	Contamination   float64 `mapstructure:"contamination"`
	RecentPoints    int     `mapstructure:"recent_points"`

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel string `mapstructure:"log_level"` // debug | info | warn | error
	LogFile  string `mapstructure:"log_file"`  // empty = stderr only
}

// Load reads config from file (./config.yaml or ~/.skywatch/config.yaml)
// and falls back to smart defaults. Environment variables with prefix
// SKYWATCH_ override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Smart Defaults ---
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("http_port", 5000)
	v.SetDefault("db_path", "skywatch.db")
	v.SetDefault("db_driver", "sqlite")

	v.SetDefault("source_backend", "prometheus")
	v.SetDefault("prometheus_url", "http://localhost:9090")
	v.SetDefault("docker_host", "unix:///var/run/docker.sock")
	v.SetDefault("kubeconfig", "")
	v.SetDefault("in_cluster", false)
	v.SetDefault("kube_namespace", "default")

	v.SetDefault("collect_interval_seconds", 60)
	v.SetDefault("lookback_hours", 24)
	v.SetDefault("min_samples", 10)
	v.SetDefault("contamination", 0.1)
	v.SetDefault("recent_points", 5)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.skywatch")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("SKYWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 1 {
		return nil, fmt.Errorf("contamination must be in (0,1), got %v", cfg.Contamination)
	}
	return &cfg, nil
}
