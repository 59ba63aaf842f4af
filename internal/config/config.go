package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/toolscout/toolscout/internal"
	"github.com/toolscout/toolscout/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	BindPortEnvVar  = "PORT"
	BindPortDefault = "8080"

	DBUrlEnvVar            = "DATABASE_URL"
	DBPoolSizeEnvVar       = "DB_POOL_SIZE"
	DBMaxOverflowEnvVar    = "DB_MAX_OVERFLOW"
	DBPoolRecycleSecEnvVar = "DB_POOL_RECYCLE_SEC"

	TelemetryEnabledEnvVar = "OTEL_ENABLED"
)

const (
	PostgresHostEnvVar     = "POSTGRES_HOST"
	PostgresPortEnvVar     = "POSTGRES_PORT"
	PostgresUserEnvVar     = "POSTGRES_USER"
	PostgresPasswordEnvVar = "POSTGRES_PASSWORD"
	PostgresDBEnvVar       = "POSTGRES_DB"
)

const (
	EmbeddingServiceURLEnvVar = "EMBEDDING_SERVICE_URL"
	EmbeddingAPIKeyEnvVar     = "EMBEDDING_API_KEY"
	EmbeddingModelEnvVar      = "EMBEDDING_MODEL"
	EmbeddingDimensionEnvVar  = "EMBEDDING_DIMENSION"
	EmbeddingTimeoutSecEnvVar = "EMBEDDING_TIMEOUT_SEC"
	EmbeddingMaxRetriesEnvVar = "EMBEDDING_MAX_RETRIES"
	EmbeddingCacheSizeEnvVar  = "EMBEDDING_CACHE_SIZE"

	EmbeddingModelDefault = "text-embedding-3-small"

	// EmbeddingDimensionDefault matches the dimension the shipped
	// migrations create the vector column and index with. The env var
	// is the single source of truth; migrations reconcile to it.
	EmbeddingDimensionDefault = 1024
	EmbeddingDimensionMax     = 4096
)

const (
	LLMGatewayURLEnvVar    = "LLM_GATEWAY_URL"
	LLMGatewayAPIKeyEnvVar = "LLM_GATEWAY_API_KEY"
	LLMGatewayModelEnvVar  = "LLM_GATEWAY_MODEL"

	LLMGatewayModelDefault = "gpt-4o-mini"
)

const (
	McpSourcesEnvVar                = "MCP_SOURCES"
	McpSourcesFileEnvVar            = "MCP_SOURCES_FILE"
	DiscoveryAutoSyncEnvVar         = "DISCOVERY_AUTO_SYNC"
	DiscoverySourceTimeoutSecEnvVar = "DISCOVERY_SOURCE_TIMEOUT_SEC"
	DiscoveryGatewayToolsEnvVar     = "DISCOVERY_GATEWAY_TOOLS"
)

const (
	DefaultSimilarityThresholdEnvVar = "DEFAULT_SIMILARITY_THRESHOLD"
	DefaultSearchLimitEnvVar         = "DEFAULT_SEARCH_LIMIT"
	UseHybridSearchEnvVar            = "USE_HYBRID_SEARCH"
	HybridAlphaEnvVar                = "HYBRID_ALPHA"
	FindToolTimeoutSecEnvVar         = "FIND_TOOL_TIMEOUT_SEC"
)

const (
	ToolTimeoutSecEnvVar        = "TOOL_TIMEOUT_SEC"
	ToolTimeoutCeilingSecEnvVar = "TOOL_TIMEOUT_CEILING_SEC"

	PythonExecutorEnabledEnvVar       = "PYTHON_EXECUTOR_ENABLED"
	PythonAllowedModulePrefixesEnvVar = "PYTHON_ALLOWED_MODULE_PREFIXES"
	BuiltinToolsEnabledEnvVar         = "BUILTIN_TOOLS_ENABLED"
)

const (
	SummarizationEnabledEnvVar       = "SUMMARIZATION_ENABLED"
	SummarizationModelEnvVar         = "SUMMARIZATION_MODEL"
	SummarizationMaxTokensEnvVar     = "SUMMARIZATION_MAX_TOKENS"
	SummarizationTimeoutSecEnvVar    = "SUMMARIZATION_TIMEOUT_SEC"
	SummarizationMaxInputCharsEnvVar = "SUMMARIZATION_MAX_INPUT_CHARS"
)

const (
	AdminAPIKeyEnvVar            = "ADMIN_API_KEY"
	CORSOriginsEnvVar            = "CORS_ORIGINS"
	CORSAllowCredentialsEnvVar   = "CORS_ALLOW_CREDENTIALS"
	MaxBodyBytesEnvVar           = "MAX_BODY_BYTES"
	MaxArgBytesEnvVar            = "MAX_ARG_BYTES"
	ShutdownGracePeriodSecEnvVar = "SHUTDOWN_GRACE_PERIOD_SEC"
)

// EmbeddingConfig configures the embedding client and cache.
type EmbeddingConfig struct {
	// ServiceURL is the OpenAI-compatible base URL. Empty disables
	// semantic search; retrieval then serves lexical results only.
	ServiceURL string
	APIKey     string
	Model      string

	// Dimension is the single source of truth for vector length.
	Dimension int

	Timeout    time.Duration
	MaxRetries int

	// CacheSize bounds the LRU embedding cache. Zero disables caching.
	CacheSize int
}

// Enabled reports whether an embedding backend is configured.
func (c EmbeddingConfig) Enabled() bool {
	return c.ServiceURL != ""
}

// GatewayConfig configures the LLM gateway used by the summarizer and
// LLM_GATEWAY tools.
type GatewayConfig struct {
	URL    string
	APIKey string
	Model  string
}

// Enabled reports whether a gateway is configured.
func (c GatewayConfig) Enabled() bool {
	return c.URL != ""
}

// DiscoveryConfig configures upstream catalog reconciliation.
type DiscoveryConfig struct {
	Sources       []types.McpSource
	AutoSync      bool
	SourceTimeout time.Duration

	// GatewayTools mirrors the LLM gateway's own tool catalog as
	// LLM_GATEWAY tools under the "gateway" source.
	GatewayTools bool
}

// RetrievalConfig holds find_tool defaults.
type RetrievalConfig struct {
	DefaultThreshold float64
	DefaultLimit     int
	UseHybrid        bool
	HybridAlpha      float64
	Timeout          time.Duration
}

// ExecutionConfig holds call_tool defaults and the Python callable
// policy.
type ExecutionConfig struct {
	DefaultTimeout time.Duration

	// TimeoutCeiling caps per-tool timeout overrides.
	TimeoutCeiling time.Duration

	PythonExecutorEnabled bool

	// PythonAllowedModulePrefixes is the allow-list for callable module
	// paths. The deny-list is fixed in the executor.
	PythonAllowedModulePrefixes []string

	MaxArgBytes int
}

// SummarizationConfig configures the output summarizer.
type SummarizationConfig struct {
	Enabled       bool
	Model         string
	MaxTokens     int
	Timeout       time.Duration
	MaxInputChars int
}

// Config is everything toolscout reads from the environment. It is
// assembled once at startup and handed to the composition root; no
// component reads env vars on its own.
type Config struct {
	BindPort string

	// DatabaseURL is the DSN. Empty means the SQLite file fallback
	// chosen by internal/db.
	DatabaseURL string

	DBPoolSize    int
	DBMaxOverflow int
	DBPoolRecycle time.Duration

	Embedding     EmbeddingConfig
	Gateway       GatewayConfig
	Discovery     DiscoveryConfig
	Retrieval     RetrievalConfig
	Execution     ExecutionConfig
	Summarization SummarizationConfig

	BuiltinToolsEnabled bool

	// AdminAPIKey guards the admin API. Empty leaves admin routes open,
	// which is only acceptable for local development.
	AdminAPIKey string

	CORSOrigins          []string
	CORSAllowCredentials bool

	MaxBodyBytes int64

	ShutdownGracePeriod time.Duration

	OtelEnabled bool
}

// LoadFromEnv reads and validates the full configuration. Any invalid
// value aborts startup with an error naming the variable.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.BindPort = os.Getenv(BindPortEnvVar)
	if cfg.BindPort == "" {
		cfg.BindPort = BindPortDefault
	}

	dsn, err := resolveDatabaseURL()
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = dsn

	if cfg.DBPoolSize, err = getEnvInt(DBPoolSizeEnvVar, 5); err != nil {
		return nil, err
	}
	if cfg.DBMaxOverflow, err = getEnvInt(DBMaxOverflowEnvVar, 10); err != nil {
		return nil, err
	}
	if cfg.DBPoolRecycle, err = getEnvDurationSec(DBPoolRecycleSecEnvVar, 1800); err != nil {
		return nil, err
	}
	if cfg.DBPoolSize < 1 {
		return nil, fmt.Errorf("invalid value for %s: must be a positive integer", DBPoolSizeEnvVar)
	}
	if cfg.DBMaxOverflow < 0 {
		return nil, fmt.Errorf("invalid value for %s: must not be negative", DBMaxOverflowEnvVar)
	}

	if cfg.Embedding, err = loadEmbeddingConfig(); err != nil {
		return nil, err
	}
	if cfg.Gateway, err = loadGatewayConfig(); err != nil {
		return nil, err
	}
	if cfg.Discovery, err = loadDiscoveryConfig(); err != nil {
		return nil, err
	}
	if cfg.Retrieval, err = loadRetrievalConfig(); err != nil {
		return nil, err
	}
	if cfg.Execution, err = loadExecutionConfig(); err != nil {
		return nil, err
	}
	if cfg.Summarization, err = loadSummarizationConfig(cfg.Gateway); err != nil {
		return nil, err
	}

	if cfg.BuiltinToolsEnabled, err = getEnvBool(BuiltinToolsEnabledEnvVar, true); err != nil {
		return nil, err
	}

	if cfg.AdminAPIKey, err = getEnvOrFile(AdminAPIKeyEnvVar); err != nil {
		return nil, err
	}
	if cfg.AdminAPIKey != "" {
		if err := internal.ValidateAPIKey(cfg.AdminAPIKey); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", AdminAPIKeyEnvVar, err)
		}
	}

	cfg.CORSOrigins = splitAndTrim(os.Getenv(CORSOriginsEnvVar))
	if cfg.CORSAllowCredentials, err = getEnvBool(CORSAllowCredentialsEnvVar, false); err != nil {
		return nil, err
	}
	if cfg.CORSAllowCredentials {
		for _, origin := range cfg.CORSOrigins {
			if origin == "*" {
				return nil, fmt.Errorf(
					"invalid CORS configuration: wildcard origin '*' cannot be combined with %s=true",
					CORSAllowCredentialsEnvVar,
				)
			}
		}
	}

	maxBody, err := getEnvInt(MaxBodyBytesEnvVar, 1048576)
	if err != nil {
		return nil, err
	}
	if maxBody < 1 {
		return nil, fmt.Errorf("invalid value for %s: must be a positive integer", MaxBodyBytesEnvVar)
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if cfg.ShutdownGracePeriod, err = getEnvDurationSec(ShutdownGracePeriodSecEnvVar, 30); err != nil {
		return nil, err
	}

	if cfg.OtelEnabled, err = getEnvBool(TelemetryEnabledEnvVar, false); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEmbeddingConfig() (EmbeddingConfig, error) {
	var c EmbeddingConfig
	var err error

	c.ServiceURL = os.Getenv(EmbeddingServiceURLEnvVar)
	if c.ServiceURL != "" {
		if err := validateHTTPURL(EmbeddingServiceURLEnvVar, c.ServiceURL); err != nil {
			return c, err
		}
	}
	if c.APIKey, err = getEnvOrFile(EmbeddingAPIKeyEnvVar); err != nil {
		return c, err
	}
	c.Model = os.Getenv(EmbeddingModelEnvVar)
	if c.Model == "" {
		c.Model = EmbeddingModelDefault
	}
	if c.Dimension, err = getEnvInt(EmbeddingDimensionEnvVar, EmbeddingDimensionDefault); err != nil {
		return c, err
	}
	if c.Dimension < 1 || c.Dimension > EmbeddingDimensionMax {
		return c, fmt.Errorf(
			"invalid value for %s: %d, must be between 1 and %d",
			EmbeddingDimensionEnvVar, c.Dimension, EmbeddingDimensionMax,
		)
	}
	if c.Timeout, err = getEnvDurationSec(EmbeddingTimeoutSecEnvVar, 30); err != nil {
		return c, err
	}
	if c.MaxRetries, err = getEnvInt(EmbeddingMaxRetriesEnvVar, 3); err != nil {
		return c, err
	}
	if c.MaxRetries < 0 {
		return c, fmt.Errorf("invalid value for %s: must not be negative", EmbeddingMaxRetriesEnvVar)
	}
	if c.CacheSize, err = getEnvInt(EmbeddingCacheSizeEnvVar, 1000); err != nil {
		return c, err
	}
	if c.CacheSize < 0 {
		return c, fmt.Errorf("invalid value for %s: must not be negative", EmbeddingCacheSizeEnvVar)
	}
	return c, nil
}

func loadGatewayConfig() (GatewayConfig, error) {
	var c GatewayConfig
	var err error

	c.URL = os.Getenv(LLMGatewayURLEnvVar)
	if c.URL != "" {
		if err := validateHTTPURL(LLMGatewayURLEnvVar, c.URL); err != nil {
			return c, err
		}
	}
	if c.APIKey, err = getEnvOrFile(LLMGatewayAPIKeyEnvVar); err != nil {
		return c, err
	}
	c.Model = os.Getenv(LLMGatewayModelEnvVar)
	if c.Model == "" {
		c.Model = LLMGatewayModelDefault
	}
	return c, nil
}

func loadDiscoveryConfig() (DiscoveryConfig, error) {
	var c DiscoveryConfig
	var err error

	if c.Sources, err = loadMcpSources(); err != nil {
		return c, err
	}
	if c.AutoSync, err = getEnvBool(DiscoveryAutoSyncEnvVar, false); err != nil {
		return c, err
	}
	if c.SourceTimeout, err = getEnvDurationSec(DiscoverySourceTimeoutSecEnvVar, 30); err != nil {
		return c, err
	}
	if c.GatewayTools, err = getEnvBool(DiscoveryGatewayToolsEnvVar, false); err != nil {
		return c, err
	}
	return c, nil
}

// loadMcpSources reads discovery sources from the inline MCP_SOURCES
// JSON array, or from a YAML/JSON file named by MCP_SOURCES_FILE. The
// inline form takes precedence when both are set.
func loadMcpSources() ([]types.McpSource, error) {
	var sources []types.McpSource

	if inline := os.Getenv(McpSourcesEnvVar); inline != "" {
		if err := json.Unmarshal([]byte(inline), &sources); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", McpSourcesEnvVar, err)
		}
	} else if path := os.Getenv(McpSourcesFileEnvVar); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", McpSourcesFileEnvVar, err)
		}
		// YAML is a superset of JSON, so one decoder covers both.
		if err := yaml.Unmarshal(data, &sources); err != nil {
			return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
		}
	}

	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid MCP source: %w", err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate MCP source name: %s", s.Name)
		}
		seen[s.Name] = true
	}
	return sources, nil
}

func loadRetrievalConfig() (RetrievalConfig, error) {
	var c RetrievalConfig
	var err error

	if c.DefaultThreshold, err = getEnvFloat(DefaultSimilarityThresholdEnvVar, 0.7); err != nil {
		return c, err
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return c, fmt.Errorf("invalid value for %s: must be between 0 and 1", DefaultSimilarityThresholdEnvVar)
	}
	if c.DefaultLimit, err = getEnvInt(DefaultSearchLimitEnvVar, 5); err != nil {
		return c, err
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > 100 {
		return c, fmt.Errorf("invalid value for %s: must be between 1 and 100", DefaultSearchLimitEnvVar)
	}
	if c.UseHybrid, err = getEnvBool(UseHybridSearchEnvVar, true); err != nil {
		return c, err
	}
	if c.HybridAlpha, err = getEnvFloat(HybridAlphaEnvVar, 0.7); err != nil {
		return c, err
	}
	if c.HybridAlpha < 0 || c.HybridAlpha > 1 {
		return c, fmt.Errorf("invalid value for %s: must be between 0 and 1", HybridAlphaEnvVar)
	}
	if c.Timeout, err = getEnvDurationSec(FindToolTimeoutSecEnvVar, 10); err != nil {
		return c, err
	}
	return c, nil
}

func loadExecutionConfig() (ExecutionConfig, error) {
	var c ExecutionConfig
	var err error

	if c.DefaultTimeout, err = getEnvDurationSec(ToolTimeoutSecEnvVar, 30); err != nil {
		return c, err
	}
	if c.TimeoutCeiling, err = getEnvDurationSec(ToolTimeoutCeilingSecEnvVar, 300); err != nil {
		return c, err
	}
	if c.TimeoutCeiling < c.DefaultTimeout {
		return c, fmt.Errorf(
			"invalid value for %s: ceiling (%s) cannot be lower than the default timeout (%s)",
			ToolTimeoutCeilingSecEnvVar, c.TimeoutCeiling, c.DefaultTimeout,
		)
	}
	if c.PythonExecutorEnabled, err = getEnvBool(PythonExecutorEnabledEnvVar, true); err != nil {
		return c, err
	}
	prefixes := os.Getenv(PythonAllowedModulePrefixesEnvVar)
	if prefixes == "" {
		prefixes = "builtin."
	}
	c.PythonAllowedModulePrefixes = splitAndTrim(prefixes)

	maxArgs, err := getEnvInt(MaxArgBytesEnvVar, 262144)
	if err != nil {
		return c, err
	}
	if maxArgs < 1 {
		return c, fmt.Errorf("invalid value for %s: must be a positive integer", MaxArgBytesEnvVar)
	}
	c.MaxArgBytes = maxArgs

	return c, nil
}

func loadSummarizationConfig(gateway GatewayConfig) (SummarizationConfig, error) {
	var c SummarizationConfig
	var err error

	if c.Enabled, err = getEnvBool(SummarizationEnabledEnvVar, true); err != nil {
		return c, err
	}
	c.Model = os.Getenv(SummarizationModelEnvVar)
	if c.Model == "" {
		c.Model = gateway.Model
	}
	if c.MaxTokens, err = getEnvInt(SummarizationMaxTokensEnvVar, 1000); err != nil {
		return c, err
	}
	if c.MaxTokens < 1 {
		return c, fmt.Errorf("invalid value for %s: must be a positive integer", SummarizationMaxTokensEnvVar)
	}
	if c.Timeout, err = getEnvDurationSec(SummarizationTimeoutSecEnvVar, 30); err != nil {
		return c, err
	}
	if c.MaxInputChars, err = getEnvInt(SummarizationMaxInputCharsEnvVar, 32000); err != nil {
		return c, err
	}
	if c.MaxInputChars < 1 {
		return c, fmt.Errorf("invalid value for %s: must be a positive integer", SummarizationMaxInputCharsEnvVar)
	}
	return c, nil
}

// resolveDatabaseURL returns the DSN from DATABASE_URL, falling back
// to a DSN assembled from the individual POSTGRES_* variables. An
// empty result means no database was configured and the caller should
// use the SQLite file fallback.
func resolveDatabaseURL() (string, error) {
	if dsn := os.Getenv(DBUrlEnvVar); dsn != "" {
		return dsn, nil
	}
	pgDSN, ok, err := getPostgresDSN()
	if err != nil {
		return "", fmt.Errorf("failed to get postgres DSN: %w", err)
	}
	if ok {
		return pgDSN, nil
	}
	return "", nil
}

// getPostgresDSN constructs a Postgres DSN from individual Postgres-specific environment variables & files.
// It is used to provide an alternative way to specify Postgres connection details
// in case the user doesn't want to use a full DATABASE_URL.
// If POSTGRES_HOST is not set, this function assumes that Postgres-specific env vars are not being used
// and returns ok=false.
// Other Postgres env vars are optional and have sensible defaults.
func getPostgresDSN() (string, bool, error) {
	host := os.Getenv(PostgresHostEnvVar)
	if host == "" {
		return "", false, nil
	}
	port := os.Getenv(PostgresPortEnvVar)
	if port == "" {
		port = "5432"
	}
	dbName, err := getEnvOrFile(PostgresDBEnvVar)
	if err != nil {
		return "", false, fmt.Errorf("failed to get postgres DB name: %w", err)
	}
	if dbName == "" {
		dbName = "postgres"
	}
	pgUser, err := getEnvOrFile(PostgresUserEnvVar)
	if err != nil {
		return "", false, fmt.Errorf("failed to get postgres user: %w", err)
	}
	if pgUser == "" {
		pgUser = "postgres"
	}
	password, err := getEnvOrFile(PostgresPasswordEnvVar)
	if err != nil {
		return "", false, fmt.Errorf("failed to get postgres password: %w", err)
	}
	// password can be empty, so no default value

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		url.QueryEscape(pgUser),
		url.QueryEscape(password),
		host,
		port,
		url.QueryEscape(dbName),
	)

	return dsn, true, nil
}

// getEnvOrFile returns the value of the given environment variable.
// If the environment variable is not set, it checks for a corresponding
// _FILE environment variable and reads the value from the file if it exists.
// If neither is set, it returns an empty string.
// If both are set, the value of the original environment variable takes precedence.
func getEnvOrFile(envVar string) (string, error) {
	val := os.Getenv(envVar)
	if val != "" {
		return val, nil
	}

	fileEnvVar := envVar + "_FILE"
	filePath := os.Getenv(fileEnvVar)
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", fileEnvVar, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return "", nil
}

func getEnvInt(envVar string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(envVar))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: '%s', must be an integer", envVar, raw)
	}
	return val, nil
}

func getEnvFloat(envVar string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(envVar))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: '%s', must be a number", envVar, raw)
	}
	return val, nil
}

func getEnvBool(envVar string, defaultValue bool) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(envVar)))
	if raw == "" {
		return defaultValue, nil
	}
	switch raw {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf(
			"invalid value for %s environment variable: '%s', valid values are 'true' or 'false'",
			envVar, raw,
		)
	}
}

// getEnvDurationSec reads an env var holding a number of seconds.
func getEnvDurationSec(envVar string, defaultSeconds int) (time.Duration, error) {
	val, err := getEnvInt(envVar, defaultSeconds)
	if err != nil {
		return 0, err
	}
	if val < 1 {
		return 0, fmt.Errorf("invalid value for %s: must be a positive integer", envVar)
	}
	return time.Duration(val) * time.Second, nil
}

func validateHTTPURL(envVar, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid value for %s: '%s', must be a valid http(s) URL", envVar, raw)
	}
	return nil
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
