package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultCozeURL       = "https://26gpw6v7pz.coze.site/stream_run"
	DefaultCozeProjectID = int64(7601039291392753716)
)

type Config struct {
	Addr     string     `mapstructure:"addr"`
	LogLevel string     `mapstructure:"log_level"`
	LogJSON  bool       `mapstructure:"log_json"`
	Coze     CozeConfig `mapstructure:"coze"`
}

type CozeConfig struct {
	URL       string `mapstructure:"api_url"`
	Token     string `mapstructure:"api_token"`
	ProjectID int64  `mapstructure:"project_id"`
	// IdleTimeout bounds the gap between two reads of the upstream body.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// env names are kept flat so existing deployments (COZE_API_TOKEN etc.) work unchanged.
var envKeys = map[string]string{
	"addr":              "ADDR",
	"log_level":         "LOG_LEVEL",
	"log_json":          "LOG_JSON",
	"coze.api_url":      "COZE_API_URL",
	"coze.api_token":    "COZE_API_TOKEN",
	"coze.project_id":   "COZE_PROJECT_ID",
	"coze.idle_timeout": "UPSTREAM_IDLE_TIMEOUT",
}

// Load reads configuration from the environment and, when path is non-empty,
// from a YAML/JSON/TOML file. Environment values win over file values.
//
// A missing COZE_API_TOKEN is not an error here: the relay reports it per
// request so the server can still start and serve the page.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("coze.api_url", DefaultCozeURL)
	v.SetDefault("coze.api_token", "")
	v.SetDefault("coze.project_id", DefaultCozeProjectID)
	v.SetDefault("coze.idle_timeout", 60*time.Second)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.Coze.URL == "" {
		return fmt.Errorf("coze api url is required")
	}
	if c.Coze.IdleTimeout < 0 {
		return fmt.Errorf("invalid idle timeout: %s", c.Coze.IdleTimeout)
	}
	return nil
}

// ListenAddr accepts both "8080" and ":8080"/"host:8080".
func (c *Config) ListenAddr() string {
	if strings.Contains(c.Addr, ":") {
		return c.Addr
	}
	return ":" + c.Addr
}
