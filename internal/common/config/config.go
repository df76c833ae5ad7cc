// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	APIs     APIsConfig              `mapstructure:"apis"`
	Matching MatchingConfig          `mapstructure:"matching"`
	Server   ServerConfig            `mapstructure:"server"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	ConnectRetries int    `mapstructure:"connect_retries"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	URL         string   `mapstructure:"url"`
	RecordIndex string   `mapstructure:"record_index"`
}

// GetAddresses returns Addresses, falling back to the single URL field.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- External APIs ---

// APIsConfig holds settings for the search and style-analysis providers.
type APIsConfig struct {
	YouTube YouTubeConfig `mapstructure:"youtube"`

	// StyleProvider selects the generative style classifier: "genai", "chat" or "none".
	StyleProvider string `mapstructure:"style_provider"`

	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`

	Chat struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"chat"`
}

type YouTubeConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
	RegionCode        string  `mapstructure:"region_code"`
	Language          string  `mapstructure:"relevance_language"`
}

// --- Matching engine ---

type WeightsConfig struct {
	Category  float64 `mapstructure:"category"`
	Location  float64 `mapstructure:"location"`
	Audience  float64 `mapstructure:"audience"`
	Style     float64 `mapstructure:"style"`
	Influence float64 `mapstructure:"influence"`
}

func (w WeightsConfig) IsZero() bool {
	return w == WeightsConfig{}
}

type QuotaConfig struct {
	DailyBudget  int `mapstructure:"daily_budget"`
	ResetHourUTC int `mapstructure:"reset_hour_utc"`
}

// MatchingConfig is the operator-tunable surface of the matching engine.
type MatchingConfig struct {
	Weights        WeightsConfig `mapstructure:"weights"`
	MinScore       int           `mapstructure:"min_score"`
	MaxResults     int           `mapstructure:"max_results"`
	CandidateLimit int           `mapstructure:"candidate_limit"`
	LookbackDays   int           `mapstructure:"lookback_days"`
	RunTimeout     int           `mapstructure:"run_timeout"`   // milliseconds
	StyleTimeout   int           `mapstructure:"style_timeout"` // milliseconds

	ResultCacheTTL     int    `mapstructure:"result_cache_ttl"` // seconds
	EntityCacheTTL     int    `mapstructure:"entity_cache_ttl"` // seconds
	RecordTTL          int    `mapstructure:"record_ttl"`       // seconds
	CacheBackend       string `mapstructure:"cache_backend"`    // memory | redis
	CacheMaxEntries    int    `mapstructure:"cache_max_entries"`
	CacheSweepInterval int    `mapstructure:"cache_sweep_interval"` // milliseconds

	DiscoveryWorkers  int  `mapstructure:"discovery_workers"`
	EnrichmentWorkers int  `mapstructure:"enrichment_workers"`
	ScoringWorkers    int  `mapstructure:"scoring_workers"`
	KeepDegraded      bool `mapstructure:"keep_degraded"`
	MaxQueries        int  `mapstructure:"max_queries"`
	PerQueryResults   int  `mapstructure:"per_query_results"`

	TaxonomyPath string `mapstructure:"taxonomy_path"`

	SearchQuota QuotaConfig `mapstructure:"search_quota"`
	StyleQuota  QuotaConfig `mapstructure:"style_quota"`

	// StoreBackends lists persistence collaborators; the first is primary.
	StoreBackends []string `mapstructure:"store_backends"`
}

// ServerConfig holds settings for the HTTP API process.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	HealthAddress   string `mapstructure:"health_address"`
}

// TracingConfig enables the jaeger trace exporter when CollectorEndpoint is set.
type TracingConfig struct {
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
