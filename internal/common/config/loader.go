// internal/common/config/loader.go
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it,
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// APIS_YOUTUBE_API_KEY overrides apis.youtube.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

// defaultMinScore applies only when matching.min_score is absent; an explicit
// 0 disables the threshold.
const defaultMinScore = 60

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)
	v.SetDefault("matching.min_score", defaultMinScore)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration holding only the built-in defaults.
func Default() *Config {
	var cfg Config
	cfg.Matching.MinScore = defaultMinScore
	applyDefaults(&cfg)
	return &cfg
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known environment variables.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.YouTube.APIKey == "" {
		cfg.APIs.YouTube.APIKey = os.Getenv("YOUTUBE_API_KEY")
	}
	if cfg.APIs.GenAI.APIKey == "" {
		cfg.APIs.GenAI.APIKey = os.Getenv("GENAI_API_KEY")
	}
	if cfg.APIs.Chat.APIKey == "" {
		cfg.APIs.Chat.APIKey = os.Getenv("LLM_API_KEY")
	}
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "creator-match"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}
	if cfg.Camunda.ConnectRetries == 0 {
		cfg.Camunda.ConnectRetries = 10
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}
	if cfg.Database.Elasticsearch.RecordIndex == "" {
		cfg.Database.Elasticsearch.RecordIndex = "creator-match-analyses"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 90000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	// API defaults
	yt := &cfg.APIs.YouTube
	if yt.BaseURL == "" {
		yt.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if yt.Timeout == 0 {
		yt.Timeout = 10000
	}
	if yt.RequestsPerMinute == 0 {
		yt.RequestsPerMinute = 300
	}
	if yt.Burst == 0 {
		yt.Burst = 5
	}
	if yt.RegionCode == "" {
		yt.RegionCode = "KR"
	}
	if yt.Language == "" {
		yt.Language = "ko"
	}
	if cfg.APIs.StyleProvider == "" {
		cfg.APIs.StyleProvider = "none"
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 5000
	}
	if cfg.APIs.Chat.Timeout == 0 {
		cfg.APIs.Chat.Timeout = 5000
	}

	// Matching defaults
	m := &cfg.Matching
	if m.Weights.IsZero() {
		m.Weights = WeightsConfig{Category: 0.30, Location: 0.20, Audience: 0.25, Style: 0.15, Influence: 0.10}
	}
	if m.MaxResults == 0 {
		m.MaxResults = 20
	}
	if m.CandidateLimit == 0 {
		m.CandidateLimit = 50
	}
	if m.LookbackDays == 0 {
		m.LookbackDays = 30
	}
	if m.RunTimeout == 0 {
		m.RunTimeout = 60000
	}
	if m.StyleTimeout == 0 {
		m.StyleTimeout = 5000
	}
	if m.ResultCacheTTL == 0 {
		m.ResultCacheTTL = 3600
	}
	if m.EntityCacheTTL == 0 {
		m.EntityCacheTTL = 86400
	}
	if m.RecordTTL == 0 {
		m.RecordTTL = 30 * 86400
	}
	if m.CacheBackend == "" {
		m.CacheBackend = "memory"
	}
	if m.CacheSweepInterval == 0 {
		m.CacheSweepInterval = 60000
	}
	if m.DiscoveryWorkers == 0 {
		m.DiscoveryWorkers = 4
	}
	if m.EnrichmentWorkers == 0 {
		m.EnrichmentWorkers = 4
	}
	if m.ScoringWorkers == 0 {
		m.ScoringWorkers = 8
	}
	if m.MaxQueries == 0 {
		m.MaxQueries = 12
	}
	if m.PerQueryResults == 0 {
		m.PerQueryResults = 10
	}
	if m.SearchQuota.DailyBudget == 0 {
		m.SearchQuota = QuotaConfig{DailyBudget: 10000, ResetHourUTC: 8}
	}
	if m.StyleQuota.DailyBudget == 0 {
		m.StyleQuota = QuotaConfig{DailyBudget: 1000, ResetHourUTC: 0}
	}
	if len(m.StoreBackends) == 0 {
		m.StoreBackends = []string{"memory"}
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8081"
	}
	if cfg.Server.HealthAddress == "" {
		cfg.Server.HealthAddress = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

// Validate checks the matching engine surface. It never touches the network.
func (c *Config) Validate() error {
	m := c.Matching
	w := m.Weights
	for name, val := range map[string]float64{
		"category": w.Category, "location": w.Location, "audience": w.Audience,
		"style": w.Style, "influence": w.Influence,
	} {
		if val < 0 {
			return fmt.Errorf("matching.weights.%s must not be negative", name)
		}
	}
	if sum := w.Category + w.Location + w.Audience + w.Style + w.Influence; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("matching.weights must sum to 1.0, got %.4f", sum)
	}
	if m.MinScore < 0 || m.MinScore > 100 {
		return fmt.Errorf("matching.min_score must be within [0,100]")
	}
	if m.MaxResults < 1 {
		return fmt.Errorf("matching.max_results must be at least 1")
	}
	if m.CandidateLimit < 1 || m.LookbackDays < 1 {
		return fmt.Errorf("matching.candidate_limit and matching.lookback_days must be positive")
	}
	if m.ResultCacheTTL < 0 || m.EntityCacheTTL < 0 || m.RecordTTL < 0 {
		return fmt.Errorf("matching cache and record TTLs must not be negative")
	}
	if m.RunTimeout < 0 || m.StyleTimeout < 0 {
		return fmt.Errorf("matching timeouts must not be negative")
	}
	if m.DiscoveryWorkers < 1 || m.EnrichmentWorkers < 1 || m.ScoringWorkers < 1 {
		return fmt.Errorf("matching worker pool sizes must be positive")
	}
	if m.MaxQueries < 1 || m.PerQueryResults < 1 {
		return fmt.Errorf("matching.max_queries and matching.per_query_results must be positive")
	}
	if m.CacheMaxEntries < 0 {
		return fmt.Errorf("matching.cache_max_entries must not be negative")
	}
	for name, q := range map[string]QuotaConfig{"search_quota": m.SearchQuota, "style_quota": m.StyleQuota} {
		if q.DailyBudget < 0 {
			return fmt.Errorf("matching.%s.daily_budget must not be negative", name)
		}
		if q.ResetHourUTC < 0 || q.ResetHourUTC > 23 {
			return fmt.Errorf("matching.%s.reset_hour_utc must be within [0,23]", name)
		}
	}
	switch m.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("matching.cache_backend %q is not supported", m.CacheBackend)
	}
	for _, b := range m.StoreBackends {
		switch b {
		case "memory", "postgres", "elasticsearch":
		default:
			return fmt.Errorf("matching.store_backends: %q is not supported", b)
		}
	}
	switch c.APIs.StyleProvider {
	case "none", "genai", "chat":
	default:
		return fmt.Errorf("apis.style_provider %q is not supported", c.APIs.StyleProvider)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1]")
	}
	return nil
}

// RequireInfrastructure validates the settings the worker process needs to connect.
func (c *Config) RequireInfrastructure() error {
	if c.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if c.Matching.CacheBackend == "redis" && c.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for the redis cache backend")
	}
	for _, b := range c.Matching.StoreBackends {
		switch b {
		case "postgres":
			if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" || c.Database.Postgres.User == "" {
				return fmt.Errorf("database.postgres host, database and user are required")
			}
		case "elasticsearch":
			if len(c.Database.Elasticsearch.GetAddresses()) == 0 {
				return fmt.Errorf("database.elasticsearch.addresses or url is required")
			}
		}
	}
	return nil
}

// UsesStore reports whether a store backend is configured.
func (c *Config) UsesStore(name string) bool {
	for _, b := range c.Matching.StoreBackends {
		if b == name {
			return true
		}
	}
	return false
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetSeconds converts seconds from config to time.Duration
func GetSeconds(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       90000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
