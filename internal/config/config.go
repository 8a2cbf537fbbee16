package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Storage
	StorageType  string `json:"storage_type"` // sqlite | postgres | bigquery | elasticsearch
	SQLitePath   string `json:"sqlite_path"`
	PostgresDSN  string `json:"postgres_dsn"`
	QueryTimeout int    `json:"query_timeout"` // seconds

	// BigQuery
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryDataset              string `json:"bigquery_dataset"`
	BigQueryLocation             string `json:"bigquery_location"`

	// Elasticsearch
	ElasticsearchAddress    string `json:"elasticsearch_address"`
	ElasticsearchUser       string `json:"elasticsearch_user"`
	ElasticsearchPassword   string `json:"elasticsearch_password"`
	ElasticsearchMaxRetries int    `json:"elasticsearch_max_retries"`

	// Elasticsearch Index Patterns
	ESAllowedPatterns []string `json:"es_allowed_patterns"`

	// Query synthesis
	DefaultTable     string              `json:"default_table"`
	DefaultMeasure   string              `json:"default_measure"`
	DefaultDimension string              `json:"default_dimension"`
	FilterValues     map[string][]string `json:"filter_values"`

	// Insight generation
	InsightType      string `json:"insight_type"` // local | anthropic | openai
	InsightTimeout   int    `json:"insight_timeout"`
	AnthropicAPIKey  string `json:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url"`
	AnthropicModel   string `json:"anthropic_model"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	OpenAIBaseURL    string `json:"openai_base_url"`
	OpenAIModel      string `json:"openai_model"`

	// Sessions
	SessionTimeout         int  `json:"session_timeout"`          // seconds
	SessionCleanupInterval int  `json:"session_cleanup_interval"` // seconds
	MaxHistoryItems        int  `json:"max_history_items"`
	EnableQueryLog         bool `json:"enable_query_log"`

	// Security
	MaxQueryBytesProcessed int64    `json:"max_query_bytes_processed"`
	EnableDataMasking      bool     `json:"enable_data_masking"`
	EnablePIIDetection     bool     `json:"enable_pii_detection"`
	SensitiveColumns       []string `json:"sensitive_columns"`
	PIIKeywords            []string `json:"pii_keywords"`
	EnableAuditLogging     bool     `json:"enable_audit_logging"`
}

// Load reads .env, the optional JSON file named by CHATBI_CONFIG and the
// environment, in that order, on top of Defaults.
func Load() (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	cfg := Defaults()

	// Load from JSON config file if specified
	if path := getEnv("CHATBI_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Host:                    DefaultHost,
		Port:                    DefaultPort,
		Environment:             DefaultEnvironment,
		APIPrefix:               DefaultAPIPrefix,
		LogLevel:                DefaultLogLevel,
		CORSOrigins:             DefaultCORSOrigins,
		APIKeyHeader:            "X-API-Key",
		EnableAuth:              true,
		RateLimitPerMinute:      DefaultRateLimitPerMinute,
		StorageType:             DefaultStorageType,
		SQLitePath:              DefaultSQLitePath,
		QueryTimeout:            int(DefaultQueryTimeout / time.Second),
		BigQueryLocation:        DefaultBigQueryLocation,
		ElasticsearchAddress:    DefaultElasticsearchAddress,
		ElasticsearchMaxRetries: DefaultElasticsearchMaxRetries,
		DefaultTable:            DefaultTable,
		DefaultMeasure:          DefaultMeasure,
		DefaultDimension:        DefaultDimension,
		FilterValues:            DefaultFilterValues,
		InsightType:             DefaultInsightType,
		InsightTimeout:          DefaultInsightTimeout,
		AnthropicModel:          DefaultAnthropicModel,
		OpenAIModel:             DefaultOpenAIModel,
		SessionTimeout:          DefaultSessionTimeout,
		SessionCleanupInterval:  DefaultSessionCleanupInterval,
		MaxHistoryItems:         DefaultMaxHistoryItems,
		EnableQueryLog:          true,
		MaxQueryBytesProcessed:  DefaultMaxQueryBytesProcessed,
		EnableDataMasking:       true,
		EnablePIIDetection:      true,
		SensitiveColumns:        DefaultSensitiveColumns,
		PIIKeywords:             DefaultPIIKeywords,
		EnableAuditLogging:      true,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.StorageType {
	case "sqlite", "postgres", "bigquery", "elasticsearch":
	default:
		return fmt.Errorf("unsupported storage_type %q", c.StorageType)
	}
	switch c.InsightType {
	case "local", "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported insight_type %q", c.InsightType)
	}
	if c.DefaultTable == "" || c.DefaultMeasure == "" {
		return fmt.Errorf("default_table and default_measure are required")
	}
	if c.SessionTimeout <= 0 || c.SessionCleanupInterval <= 0 {
		return fmt.Errorf("session_timeout and session_cleanup_interval must be positive")
	}
	if c.MaxHistoryItems <= 0 {
		return fmt.Errorf("max_history_items must be positive")
	}
	return nil
}

// SessionTimeoutDuration returns the idle period after which a session expires.
func (c *Config) SessionTimeoutDuration() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Second
}

// QueryTimeoutDuration bounds a single query execution.
func (c *Config) QueryTimeoutDuration() time.Duration {
	return time.Duration(c.QueryTimeout) * time.Second
}

// SessionCleanupDuration returns the minimum spacing between expiry sweeps.
func (c *Config) SessionCleanupDuration() time.Duration {
	return time.Duration(c.SessionCleanupInterval) * time.Second
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("CHATBI_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("CHATBI_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("CHATBI_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("CHATBI_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("CHATBI_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = parseBool(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("CHATBI_STORAGE", ""); v != "" {
		cfg.StorageType = v
	}
	if v := getEnv("DATABASE_URL", ""); v != "" {
		// sqlite:///path keeps the sqlite backend, anything else is a postgres DSN
		if strings.HasPrefix(v, "sqlite:///") {
			cfg.SQLitePath = strings.TrimPrefix(v, "sqlite:///")
		} else {
			cfg.PostgresDSN = v
		}
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("BIGQUERY_DATASET", ""); v != "" {
		cfg.BigQueryDataset = v
	}
	if v := getEnv("ELASTICSEARCH_ADDRESS", ""); v != "" {
		cfg.ElasticsearchAddress = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("CHATBI_INSIGHT", ""); v != "" {
		cfg.InsightType = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("OPENAI_API_KEY", ""); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := getEnv("OPENAI_BASE_URL", ""); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := getEnv("SESSION_TIMEOUT", ""); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.SessionTimeout = s
		}
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}
	if v := getEnv("ENABLE_DATA_MASKING", ""); v != "" {
		cfg.EnableDataMasking = parseBool(v)
	}
	if v := getEnv("ENABLE_PII_DETECTION", ""); v != "" {
		cfg.EnablePIIDetection = parseBool(v)
	}
	if v := getEnv("ENABLE_AUDIT_LOGGING", ""); v != "" {
		cfg.EnableAuditLogging = parseBool(v)
	}
	if v := getEnv("ENABLE_QUERY_LOG", ""); v != "" {
		cfg.EnableQueryLog = parseBool(v)
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
