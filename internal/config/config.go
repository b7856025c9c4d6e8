package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	Validation ValidationConfig `mapstructure:"validation"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
	// RateLimit is the number of requests per client per minute, 0 disables limiting
	RateLimit int `mapstructure:"rate_limit"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// IsMemory reports whether the in-process store is selected instead of postgres.
func (d DatabaseConfig) IsMemory() bool {
	return strings.EqualFold(d.Driver, "memory")
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MappingProfileTTL time.Duration `mapstructure:"mapping_profile_ttl"`
}

// IngestionConfig holds connector limits and scheduled ingestion definitions
type IngestionConfig struct {
	InstanceID string                     `mapstructure:"instance_id"`
	Tenants    []string                   `mapstructure:"tenants"`
	CSV        CSVConnectorConfig         `mapstructure:"csv"`
	REST       RESTConnectorConfig        `mapstructure:"rest"`
	JDBC       JDBCConnectorConfig        `mapstructure:"jdbc"`
	Scheduled  []ScheduledIngestionConfig `mapstructure:"scheduled"`
}

// CSVConnectorConfig bounds inline CSV payloads
type CSVConnectorConfig struct {
	MaxBytes int `mapstructure:"max_bytes"`
}

// RESTConnectorConfig holds the ceilings applied to every REST fetch
type RESTConnectorConfig struct {
	DefaultConnectTimeout time.Duration `mapstructure:"default_connect_timeout"`
	DefaultReadTimeout    time.Duration `mapstructure:"default_read_timeout"`
	MaxConnectTimeout     time.Duration `mapstructure:"max_connect_timeout"`
	MaxReadTimeout        time.Duration `mapstructure:"max_read_timeout"`
	MaxBodyBytes          int64         `mapstructure:"max_body_bytes"`
}

// JDBCConnectorConfig holds operator-managed SQL connection references
type JDBCConnectorConfig struct {
	MaxQueryTimeout time.Duration                   `mapstructure:"max_query_timeout"`
	MaxFetchSize    int                             `mapstructure:"max_fetch_size"`
	MaxRows         int                             `mapstructure:"max_rows"`
	Connections     map[string]JDBCConnectionConfig `mapstructure:"connections"`
}

// JDBCConnectionConfig is one named connection reference
type JDBCConnectionConfig struct {
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	Enabled          bool          `mapstructure:"enabled"`
	AllowCustomQuery bool          `mapstructure:"allow_custom_query"`
	DefaultQuery     string        `mapstructure:"default_query"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
	FetchSize        int           `mapstructure:"fetch_size"`
	MaxRows          int           `mapstructure:"max_rows"`
}

// ScheduledIngestionConfig describes an ingestion fired by the scheduler
type ScheduledIngestionConfig struct {
	Name             string                 `mapstructure:"name"`
	TenantID         string                 `mapstructure:"tenant_id"`
	SourceType       string                 `mapstructure:"source_type"`
	SourceConfig     map[string]interface{} `mapstructure:"source_config"`
	MappingProfileID string                 `mapstructure:"mapping_profile_id"`
	DryRun           bool                   `mapstructure:"dry_run"`
	Interval         time.Duration          `mapstructure:"interval"`
}

// OutboxConfig holds dispatcher and transport configuration
type OutboxConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Transport   string        `mapstructure:"transport"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
	Webhook     WebhookConfig `mapstructure:"webhook"`
	Broker      BrokerConfig  `mapstructure:"broker"`
}

// WebhookConfig holds webhook transport settings
type WebhookConfig struct {
	URL       string            `mapstructure:"url"`
	Headers   map[string]string `mapstructure:"headers"`
	AuthToken string            `mapstructure:"auth_token"`
	Timeout   time.Duration     `mapstructure:"timeout"`
}

// BrokerConfig holds message broker transport settings
type BrokerConfig struct {
	Topic      string `mapstructure:"topic"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	MaxLen     int64  `mapstructure:"max_len"`
}

// RetentionConfig holds TTLs for the retention sweeper
type RetentionConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Interval           time.Duration `mapstructure:"interval"`
	SnapshotTTL        time.Duration `mapstructure:"snapshot_ttl"`
	MappingEventTTL    time.Duration `mapstructure:"mapping_event_ttl"`
	PublishedOutboxTTL time.Duration `mapstructure:"published_outbox_ttl"`
	DeadOutboxTTL      time.Duration `mapstructure:"dead_outbox_ttl"`
}

// LoadConfig loads configuration from environment and config files
func LoadConfig() (*Config, error) {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.rate_limit", 600)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.mapping_profile_ttl", "10m")
	viper.SetDefault("ingestion.csv.max_bytes", 10<<20)
	viper.SetDefault("ingestion.rest.default_connect_timeout", "5s")
	viper.SetDefault("ingestion.rest.default_read_timeout", "30s")
	viper.SetDefault("ingestion.rest.max_connect_timeout", "10s")
	viper.SetDefault("ingestion.rest.max_read_timeout", "60s")
	viper.SetDefault("ingestion.rest.max_body_bytes", 20<<20)
	viper.SetDefault("ingestion.jdbc.max_query_timeout", "60s")
	viper.SetDefault("ingestion.jdbc.max_fetch_size", 1000)
	viper.SetDefault("ingestion.jdbc.max_rows", 50000)
	viper.SetDefault("validation.default.version", 1)
	viper.SetDefault("validation.default.person.require_external_ref", true)
	viper.SetDefault("validation.default.group.require_external_ref", true)
	viper.SetDefault("validation.default.membership.require_external_refs", true)
	viper.SetDefault("validation.default.membership.require_existing_references", true)
	viper.SetDefault("outbox.enabled", true)
	viper.SetDefault("outbox.interval", "15s")
	viper.SetDefault("outbox.transport", "log")
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.max_attempts", 8)
	viper.SetDefault("outbox.base_backoff", "5s")
	viper.SetDefault("outbox.max_backoff", "15m")
	viper.SetDefault("outbox.lease_ttl", "2m")
	viper.SetDefault("outbox.webhook.timeout", "10s")
	viper.SetDefault("outbox.broker.topic", "audience.events")
	viper.SetDefault("outbox.broker.max_len", 100000)
	viper.SetDefault("retention.enabled", true)
	viper.SetDefault("retention.interval", "1h")
	viper.SetDefault("retention.snapshot_ttl", "720h")
	viper.SetDefault("retention.mapping_event_ttl", "8760h")
	viper.SetDefault("retention.published_outbox_ttl", "168h")
	viper.SetDefault("retention.dead_outbox_ttl", "2160h")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
