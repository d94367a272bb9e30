package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Pipeline struct {
		Sources       []string          `yaml:"sources"`
		KWhPerHour    float64           `yaml:"kwh_per_hour"`
		LoadColumn    string            `yaml:"load_column"`
		PriceColumn   string            `yaml:"price_column"`
		LagHours      []int             `yaml:"lag_hours"`
		RollingWindow int               `yaml:"rolling_window"`
		FillPolicies  map[string]string `yaml:"fill_policies"`
		ModelDir      string            `yaml:"model_dir"`
		MinRows       map[string]int    `yaml:"min_rows"`
		Horizons      map[string]int    `yaml:"horizons"`
	} `yaml:"pipeline"`
	Fetch struct {
		Timeout   time.Duration   `yaml:"timeout"`
		Backfill  time.Duration   `yaml:"backfill"`
		Endpoints []FetchEndpoint `yaml:"endpoints"`
	} `yaml:"fetch"`
	Models map[string]ModelConfig `yaml:"models"`
	API    struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
		Redis    struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"api"`
}

// FetchEndpoint is one upstream API to pull hourly observations from.
type FetchEndpoint struct {
	Name   string            `yaml:"name"`
	URL    string            `yaml:"url"`
	Params map[string]string `yaml:"params"`
}

// ModelConfig is the per-granularity regressor tuning block. Zero fields fall
// back to built-in defaults for the granularity.
type ModelConfig struct {
	Kind         string  `yaml:"kind"`
	Trees        int     `yaml:"trees"`
	MaxDepth     int     `yaml:"max_depth"`
	MinLeaf      int     `yaml:"min_leaf"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         int64   `yaml:"seed"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("SOURCES"); v != "" {
		c.Pipeline.Sources = strings.Split(v, ",")
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Pipeline.ModelDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.API.Redis.Addr = v
		c.API.Redis.Enabled = true
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Pipeline.Sources) == 0 {
		return fmt.Errorf("pipeline.sources cannot be empty")
	}
	if c.Pipeline.KWhPerHour <= 0 {
		return fmt.Errorf("pipeline.kwh_per_hour must be positive")
	}
	if c.Pipeline.LoadColumn == "" || c.Pipeline.PriceColumn == "" {
		return fmt.Errorf("pipeline.load_column and pipeline.price_column are required")
	}
	for _, lag := range c.Pipeline.LagHours {
		if lag < 1 {
			return fmt.Errorf("pipeline.lag_hours: offsets must be at least 1, got %d", lag)
		}
	}
	if c.Pipeline.RollingWindow < 2 {
		return fmt.Errorf("pipeline.rolling_window must be at least 2")
	}
	for col, policy := range c.Pipeline.FillPolicies {
		switch policy {
		case "drop", "forward_fill", "zero_fill":
		default:
			return fmt.Errorf("pipeline.fill_policies[%s]: unknown policy '%s'", col, policy)
		}
	}
	for i, ep := range c.Fetch.Endpoints {
		if ep.Name == "" || ep.URL == "" {
			return fmt.Errorf("fetch.endpoints[%d]: name and url are required", i)
		}
	}
	for g := range c.Models {
		switch g {
		case "hourly", "daily", "weekly", "monthly":
		default:
			return fmt.Errorf("models: unknown granularity '%s'", g)
		}
	}
	return nil
}
