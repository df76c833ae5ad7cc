// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "app:\n  name: creator-match\n"))
	require.NoError(t, err)

	m := cfg.Matching
	assert.Equal(t, WeightsConfig{Category: 0.30, Location: 0.20, Audience: 0.25, Style: 0.15, Influence: 0.10}, m.Weights)
	assert.Equal(t, 60, m.MinScore)
	assert.Equal(t, 20, m.MaxResults)
	assert.Equal(t, 3600, m.ResultCacheTTL)
	assert.Equal(t, 86400, m.EntityCacheTTL)
	assert.Equal(t, 30*86400, m.RecordTTL)
	assert.Equal(t, 4, m.DiscoveryWorkers)
	assert.Equal(t, "memory", m.CacheBackend)
	assert.Equal(t, []string{"memory"}, m.StoreBackends)
	assert.Equal(t, "none", cfg.APIs.StyleProvider)
	assert.Equal(t, "KR", cfg.APIs.YouTube.RegionCode)
	assert.Equal(t, 10000, m.SearchQuota.DailyBudget)
	assert.Equal(t, 8, m.SearchQuota.ResetHourUTC)
}

func TestLoadFromFile_MinScore(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  string
		want int
	}{
		{name: "absent uses default", body: "app:\n  name: creator-match\n", want: 60},
		{name: "explicit zero disables threshold", body: "matching:\n  min_score: 0\n", want: 0},
		{name: "explicit value", body: "matching:\n  min_score: 45\n", want: 45},
		{name: "environment zero", body: "app:\n  name: creator-match\n", env: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("MATCHING_MIN_SCORE", tt.env)
			}
			cfg, err := LoadFromFile(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Matching.MinScore)
		})
	}

	assert.Equal(t, 60, Default().Matching.MinScore)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_YT_KEY", "yt-secret")
	cfg, err := LoadFromFile(writeConfig(t, "apis:\n  youtube:\n    api_key: ${TEST_YT_KEY}\n"))
	require.NoError(t, err)
	assert.Equal(t, "yt-secret", cfg.APIs.YouTube.APIKey)
}

func TestLoadFromFile_RejectsBadWeights(t *testing.T) {
	body := `
matching:
  weights:
    category: 0.5
    location: 0.5
    audience: 0.5
    style: 0
    influence: 0
`
	_, err := LoadFromFile(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"negative weight", func(c *Config) {
			c.Matching.Weights = WeightsConfig{Category: 1.1, Location: -0.1}
		}, "must not be negative"},
		{"negative ttl", func(c *Config) { c.Matching.EntityCacheTTL = -1 }, "TTLs must not be negative"},
		{"min score out of range", func(c *Config) { c.Matching.MinScore = 101 }, "min_score"},
		{"zero workers", func(c *Config) { c.Matching.EnrichmentWorkers = -1 }, "pool sizes"},
		{"bad reset hour", func(c *Config) { c.Matching.SearchQuota.ResetHourUTC = 24 }, "reset_hour_utc"},
		{"unknown cache backend", func(c *Config) { c.Matching.CacheBackend = "memcached" }, "cache_backend"},
		{"unknown store", func(c *Config) { c.Matching.StoreBackends = []string{"mongo"} }, "store_backends"},
		{"unknown style provider", func(c *Config) { c.APIs.StyleProvider = "bard" }, "style_provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequireInfrastructure(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.ErrorContains(t, cfg.RequireInfrastructure(), "broker_address")

	cfg.Camunda.BrokerAddress = "localhost:26500"
	cfg.Matching.StoreBackends = []string{"postgres", "elasticsearch"}
	assert.ErrorContains(t, cfg.RequireInfrastructure(), "postgres")

	cfg.Database.Postgres = PostgresConfig{Host: "db", Database: "match", User: "match"}
	assert.ErrorContains(t, cfg.RequireInfrastructure(), "elasticsearch")

	cfg.Database.Elasticsearch.URL = "http://es:9200"
	assert.NoError(t, cfg.RequireInfrastructure())
	assert.True(t, cfg.UsesStore("elasticsearch"))
	assert.False(t, cfg.UsesStore("memory"))
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"run-creator-match": {Enabled: false, MaxJobsActive: 2, Timeout: 1000},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "run-creator-match"))
	assert.True(t, IsWorkerEnabled(cfg, "project-store-profile"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "run-creator-match").MaxJobsActive)
	assert.Equal(t, 5, GetWorkerConfig(cfg, "project-store-profile").MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Hour, GetSeconds(3600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "creator-match", cfg.App.Name)
	assert.Equal(t, 60000, cfg.Matching.RunTimeout)
	assert.Equal(t, "creator-match-analyses", cfg.Database.Elasticsearch.RecordIndex)
}
