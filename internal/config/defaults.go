package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultStorageType  = "sqlite"
	DefaultSQLitePath   = "./chatbi.db"
	DefaultQueryTimeout = 60 * time.Second

	DefaultBigQueryLocation = "US"

	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultElasticsearchAddress    = "http://localhost:9200"
	DefaultElasticsearchMaxRetries = 3

	DefaultTable     = "sales"
	DefaultMeasure   = "amount"
	DefaultDimension = "region"

	DefaultInsightType    = "local"
	DefaultInsightTimeout = 30 // seconds
	DefaultAnthropicModel = "claude-sonnet-4-6"
	DefaultOpenAIModel    = "gpt-4o-mini"

	DefaultSessionTimeout         = 3600 // seconds
	DefaultSessionCleanupInterval = 300  // seconds
	DefaultMaxHistoryItems        = 50

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// DefaultFilterValues maps a filterable column to the values recognised in
// free text. Matching values are bound as query parameters.
var DefaultFilterValues = map[string][]string{
	"region": {"paris", "lyon", "marseille", "toulouse"},
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "secret", "private key",
	"access token", "api key",
}
