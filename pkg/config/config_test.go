package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
environment: development
server:
  port: 8080
pipeline:
  sources: [grid, market]
  kwh_per_hour: 0.9
  load_column: load
  price_column: price
  lag_hours: [1, 24, 168]
  rolling_window: 24
  fill_policies:
    price: forward_fill
  horizons:
    hourly: 24
models:
  hourly:
    kind: gbrt
    trees: 200
  weekly:
    kind: forest
fetch:
  timeout: 10s
  endpoints:
    - name: grid
      url: https://example.com/load
      params:
        region: west
api:
  cache_ttl: 30s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Pipeline.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Pipeline.Sources))
	}
	if cfg.Pipeline.KWhPerHour != 0.9 {
		t.Fatalf("unexpected kwh %v", cfg.Pipeline.KWhPerHour)
	}
	if cfg.Models["hourly"].Trees != 200 {
		t.Fatalf("model block not parsed")
	}
	if len(cfg.Fetch.Endpoints) != 1 || cfg.Fetch.Endpoints[0].Params["region"] != "west" {
		t.Fatalf("fetch block not parsed: %+v", cfg.Fetch.Endpoints)
	}
}

func TestLoadRejectsMissingSources(t *testing.T) {
	body := `
environment: development
pipeline:
  kwh_per_hour: 1
  load_column: load
  price_column: price
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsBadFillPolicy(t *testing.T) {
	body := `
environment: development
pipeline:
  sources: [grid]
  kwh_per_hour: 1
  load_column: load
  price_column: price
  rolling_window: 24
  fill_policies:
    price: interpolate
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for unknown fill policy")
	}
}

func TestLoadRejectsNonPositiveLag(t *testing.T) {
	body := `
environment: development
pipeline:
  sources: [grid]
  kwh_per_hour: 1
  load_column: load
  price_column: price
  lag_hours: [1, -15]
  rolling_window: 24
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for non-positive lag offset")
	}
}

func TestLoadRejectsTinyRollingWindow(t *testing.T) {
	body := `
environment: development
pipeline:
  sources: [grid]
  kwh_per_hour: 1
  load_column: load
  price_column: price
  lag_hours: [1]
  rolling_window: 1
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for rolling window below 2")
	}
}

func TestLoadRejectsBadModelGranularity(t *testing.T) {
	body := `
environment: development
pipeline:
  sources: [grid]
  kwh_per_hour: 1
  load_column: load
  price_column: price
  rolling_window: 24
models:
  quarterly:
    kind: gbrt
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for unknown granularity")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("SOURCES", "a,b,c")
	t.Setenv("REDIS_ADDR", "redis:6379")
	cfg, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClickHouse.Host != "ch.internal" {
		t.Fatalf("clickhouse host not overridden")
	}
	if len(cfg.Pipeline.Sources) != 3 {
		t.Fatalf("sources not overridden: %v", cfg.Pipeline.Sources)
	}
	if !cfg.API.Redis.Enabled || cfg.API.Redis.Addr != "redis:6379" {
		t.Fatalf("redis override not applied")
	}
}

func TestLoadRejectsFetchEndpointWithoutURL(t *testing.T) {
	body := `
environment: development
pipeline:
  sources: [grid]
  kwh_per_hour: 1
  load_column: load
  price_column: price
  rolling_window: 24
fetch:
  endpoints:
    - name: grid
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for endpoint without url")
	}
}
