package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/sims/pkg/auth"
	"github.com/platinummonkey/sims/pkg/importer"
	"github.com/platinummonkey/sims/pkg/objectstore"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/rbac"
	"github.com/platinummonkey/sims/pkg/records"
	"github.com/platinummonkey/sims/pkg/smartsheet"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Auth          AuthConfig
	Objects       objectstore.S3Config
	Smartsheet    smartsheet.Config
	Import        ImportConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds the Postgres connection and table names
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	AssignmentsTable string
	PermissionsTable string
	RecordsTable     string
	StagingTable     string
}

// CacheConfig holds the directory and access caches
type CacheConfig struct {
	// RedisURL enables the shared directory cache when set
	RedisURL       string
	RedisKeyPrefix string
	DirectoryTTL   time.Duration
	AccessTTL      time.Duration
	AccessSize     int
}

// AuthConfig holds bearer-token verification settings
type AuthConfig struct {
	OIDC auth.OIDCConfig
	// Optional lets requests without a token through unauthenticated
	Optional bool
}

// ImportConfig holds the spreadsheet import job settings
type ImportConfig struct {
	RegistryPath   string
	Schedule       string
	SheetTypes     []string
	Concurrency    int
	SkipDuplicates bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables and validates
// it for the HTTP server
func LoadConfig() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Load reads configuration from environment variables without validating it
func Load() *Config {
	return &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Auth:          loadAuthConfig(),
		Objects:       loadObjectsConfig(),
		Smartsheet:    loadSmartsheetConfig(),
		Import:        loadImportConfig(),
		Observability: loadObservabilityConfig(),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SIMS_HOST", "0.0.0.0"),
		Port:            getEnv("SIMS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SIMS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SIMS_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("SIMS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SIMS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("SIMS_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:              getEnv("SIMS_POSTGRES_URL", ""),
		MaxOpenConns:     getEnvInt("SIMS_POSTGRES_MAX_CONNS", 20),
		MaxIdleConns:     getEnvInt("SIMS_POSTGRES_MIN_CONNS", 5),
		ConnMaxLifetime:  getEnvDuration("SIMS_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		AssignmentsTable: getEnv("SIMS_TABLE_USER_ROLES", rbac.DefaultAssignmentsTable),
		PermissionsTable: getEnv("SIMS_TABLE_ROLE_PERMISSIONS", rbac.DefaultPermissionsTable),
		RecordsTable:     getEnv("SIMS_TABLE_RECORDS", records.DefaultTable),
		StagingTable:     getEnv("SIMS_TABLE_STAGING", importer.DefaultStagingTable),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		RedisURL:       getEnv("SIMS_REDIS_URL", ""),
		RedisKeyPrefix: getEnv("SIMS_REDIS_KEY_PREFIX", "sims:"),
		DirectoryTTL:   getEnvDuration("SIMS_DIRECTORY_CACHE_TTL", 5*time.Minute),
		AccessTTL:      getEnvDuration("SIMS_ACCESS_CACHE_TTL", time.Minute),
		AccessSize:     getEnvInt("SIMS_ACCESS_CACHE_SIZE", 1024),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		OIDC: auth.OIDCConfig{
			IssuerURL:    getEnv("SIMS_OIDC_ISSUER_URL", ""),
			ClientID:     getEnv("SIMS_OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("SIMS_OIDC_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("SIMS_OIDC_REDIRECT_URL", ""),
			Scopes:       getEnvList("SIMS_OIDC_SCOPES", []string{"openid", "email", "profile"}),
			GroupsClaim:  getEnv("SIMS_OIDC_GROUPS_CLAIM", "groups"),
		},
		Optional: getEnvBool("SIMS_AUTH_OPTIONAL", false),
	}
}

func loadObjectsConfig() objectstore.S3Config {
	return objectstore.S3Config{
		Bucket:       getEnv("SIMS_S3_BUCKET", ""),
		Region:       getEnv("SIMS_S3_REGION", "us-east-1"),
		Endpoint:     getEnv("SIMS_S3_ENDPOINT", ""),
		AccessKey:    getEnv("SIMS_S3_ACCESS_KEY", ""),
		SecretKey:    getEnv("SIMS_S3_SECRET_KEY", ""),
		UsePathStyle: getEnvBool("SIMS_S3_USE_PATH_STYLE", false),
		CreateBucket: getEnvBool("SIMS_S3_CREATE_BUCKET", false),
	}
}

func loadSmartsheetConfig() smartsheet.Config {
	return smartsheet.Config{
		BaseURL:          getEnv("SIMS_SMARTSHEET_BASE_URL", smartsheet.DefaultBaseURL),
		AccessToken:      getEnv("SIMS_SMARTSHEET_TOKEN", ""),
		Timeout:          getEnvDuration("SIMS_SMARTSHEET_TIMEOUT", 30*time.Second),
		MaxDownloadBytes: getEnvInt64("SIMS_SMARTSHEET_MAX_DOWNLOAD_BYTES", smartsheet.DefaultMaxDownloadBytes),
	}
}

func loadImportConfig() ImportConfig {
	return ImportConfig{
		RegistryPath:   getEnv("SIMS_IMPORT_REGISTRY", "sheets.yaml"),
		Schedule:       getEnv("SIMS_IMPORT_SCHEDULE", "*/15 * * * *"),
		SheetTypes:     getEnvList("SIMS_IMPORT_SHEET_TYPES", nil),
		Concurrency:    getEnvInt("SIMS_IMPORT_CONCURRENCY", 4),
		SkipDuplicates: getEnvBool("SIMS_IMPORT_SKIP_DUPLICATES", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("SIMS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("SIMS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SIMS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SIMS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SIMS_OTEL_SERVICE_NAME", "sims"),
		OTelServiceVersion: getEnv("SIMS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("SIMS_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("SIMS_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks the settings the HTTP server needs
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	for name, table := range map[string]string{
		"user roles":       c.Database.AssignmentsTable,
		"role permissions": c.Database.PermissionsTable,
		"records":          c.Database.RecordsTable,
		"staging":          c.Database.StagingTable,
	} {
		if table == "" {
			return fmt.Errorf("%s table name is required", name)
		}
	}

	if c.Cache.DirectoryTTL <= 0 {
		return fmt.Errorf("directory cache TTL must be positive")
	}

	if !c.Auth.Optional {
		if err := c.Auth.OIDC.Validate(); err != nil {
			return fmt.Errorf("oidc: %w", err)
		}
	}

	if c.Objects.Bucket != "" && c.Objects.Region == "" {
		return fmt.Errorf("S3 region is required when a bucket is set")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ValidateImport checks the settings the import job needs on top of the
// database
func (c *Config) ValidateImport() error {
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Smartsheet.AccessToken == "" {
		return fmt.Errorf("smartsheet access token is required")
	}
	if c.Import.RegistryPath == "" {
		return fmt.Errorf("import registry path is required")
	}
	if c.Import.Concurrency <= 0 {
		return fmt.Errorf("import concurrency must be positive")
	}
	return nil
}

// ObjectsEnabled reports whether attachments are copied to object storage
func (c *Config) ObjectsEnabled() bool {
	return c.Objects.Bucket != ""
}

// OTel returns the tracing settings in the form observability.InitOTel takes
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
