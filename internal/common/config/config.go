// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Trigger       TriggerConfig           `mapstructure:"trigger"`
	Approvers     []ApproverConfig        `mapstructure:"approvers"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Validation    ValidationConfig        `mapstructure:"validation"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig controls the HTTP boundary.
type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	BaseURL         string `mapstructure:"base_url"` // prefix for document_url_<i> variables
	Mode            string `mapstructure:"mode"`     // gin mode: debug, release, test
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// StorageConfig selects the workflow persistence backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // postgres | sqlite | elasticsearch | memory
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Enabled        bool   `mapstructure:"enabled"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryDelay     int    `mapstructure:"retry_delay"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
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

// SQLiteConfig configures the embedded backend.
type SQLiteConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout"` // milliseconds
}

// GetDSN returns the go-sqlite3 connection string with foreign keys and WAL on.
func (s SQLiteConfig) GetDSN() string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", s.Path, s.BusyTimeout)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	URL         string   `mapstructure:"url"` // Single URL for backwards compatibility
	IndexPrefix string   `mapstructure:"index_prefix"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// RedisConfig locates the environment document store. With the memory
// storage backend an empty address keeps documents in process.
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // milliseconds, 0 keeps documents until cleanup
}

// TriggerConfig describes how external step sequences are run.
type TriggerConfig struct {
	CollectionPath      string   `mapstructure:"collection_path"`
	EnvironmentPath     string   `mapstructure:"environment_path"`
	Timeout             int      `mapstructure:"timeout"` // milliseconds
	StartSequence       []string `mapstructure:"start_sequence"`
	ApproverSequence    []string `mapstructure:"approver_sequence"`
	CorrelationVariable string   `mapstructure:"correlation_variable"`
}

// ApproverConfig is one configured approver identity.
type ApproverConfig struct {
	Ordinal int    `mapstructure:"ordinal"`
	Email   string `mapstructure:"email"`
	Name    string `mapstructure:"name"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// ValidationConfig points at the submission JSON schema.
type ValidationConfig struct {
	SchemaPath string `mapstructure:"schema_path"`
}

// NotificationConfig holds settings for terminal-decision notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Events struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"events"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ApproverCount is N, the number of approval gates per workflow.
func (c *Config) ApproverCount() int {
	return len(c.Approvers)
}

// TriggerTimeout returns the ceiling for one step sequence.
func (c *Config) TriggerTimeout() time.Duration {
	return GetDuration(c.Trigger.Timeout)
}

// UsesRedis reports whether environment documents live in Redis.
func (c *Config) UsesRedis() bool {
	return c.Database.Redis.Address != "" || c.Storage.Backend != "memory"
}
