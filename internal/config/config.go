// Package config loads the docweave configuration from an optional YAML
// file with environment variable overrides. CLI flags take precedence over
// both; the cmd layer applies them after Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ServerConfig configures the HTTP bridge.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WorkflowConfig configures engine and bridge behavior.
type WorkflowConfig struct {
	MaxIterations   int           `yaml:"max_iterations"`
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

// UnmarshalYAML accepts approval_timeout as a duration string ("300s", "5m").
// Absent fields keep their current (default) values.
func (w *WorkflowConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxIterations   int    `yaml:"max_iterations"`
		ApprovalTimeout string `yaml:"approval_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxIterations > 0 {
		w.MaxIterations = raw.MaxIterations
	}
	if raw.ApprovalTimeout != "" {
		d, err := time.ParseDuration(raw.ApprovalTimeout)
		if err != nil {
			return fmt.Errorf("invalid approval_timeout: %w", err)
		}
		w.ApprovalTimeout = d
	}
	return nil
}

// RedisConfig configures the optional redis result sink. An empty Addr
// selects the in-memory sink.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8000"},
		Workflow: WorkflowConfig{
			MaxIterations:   80,
			ApprovalTimeout: 300 * time.Second,
		},
	}
}

// Load reads the configuration file at path (if non-empty) on top of the
// defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DOCWEAVE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DOCWEAVE_APPROVAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Workflow.ApprovalTimeout = d
		}
	}
	if v := os.Getenv("DOCWEAVE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workflow.MaxIterations = n
		}
	}
	if v := os.Getenv("DOCWEAVE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DOCWEAVE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DOCWEAVE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}
