package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/objectgate/pkg/objectgate/objectkey"
	"golang.org/x/exp/slices"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Backend names accepted by Validate.
const (
	StorageMemory = "memory"
	StorageS3     = "s3"

	ACLMemory   = "memory"
	ACLRedis    = "redis"
	ACLPostgres = "postgres"

	EventsNone  = "none"
	EventsLog   = "log"
	EventsKafka = "kafka"
)

// ServerConfig represents server configuration for the objectgate service
type ServerConfig struct {
	Port        string `env:"OBJECTGATE_PORT" env-default:"8080"`
	Environment string `env:"OBJECTGATE_ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `env:"OBJECTGATE_LOG_LEVEL" env-default:"info"`
	LogJSON     bool   `env:"OBJECTGATE_LOG_JSON" env-default:"false"`

	// Pipeline options
	Buckets             []string `env:"OBJECTGATE_BUCKETS" env-separator:"," env-default:"files"`
	URLPrefix           string   `env:"OBJECTGATE_URL_PREFIX" env-default:"//"`
	ChunkSize           int      `env:"OBJECTGATE_CHUNK_SIZE" env-default:"65536"`
	Concurrency         int      `env:"OBJECTGATE_CONCURRENCY" env-default:"4"`
	ListIncludeUnscoped bool     `env:"OBJECTGATE_LIST_INCLUDE_UNSCOPED" env-default:"false"`
	KeyStrategy         string   `env:"OBJECTGATE_KEY_STRATEGY" env-default:"flat"`
	EnsureBuckets       bool     `env:"OBJECTGATE_ENSURE_BUCKETS" env-default:"true"`

	// HTTP options
	CORSOrigins []string `env:"OBJECTGATE_CORS_ORIGINS" env-separator:","`

	// X-Subject-ID is honoured only behind a trusted proxy
	TrustSubjectHeader bool `env:"OBJECTGATE_TRUST_SUBJECT_HEADER" env-default:"false"`

	Storage StorageConfig
	ACL     ACLConfig
	Authz   AuthzConfig
	Events  EventsConfig
}

// StorageConfig selects and configures the object store
type StorageConfig struct {
	Type            string `env:"OBJECTGATE_STORAGE" env-default:"memory"` // "memory", "s3"
	Region          string `env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	PartSize        int64  `env:"AWS_S3_PART_SIZE" env-default:"0"`
	EnableSSE       bool   `env:"AWS_S3_ENABLE_SSE" env-default:"false"`
	SSEAlgorithm    string `env:"AWS_S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID     string `env:"AWS_S3_SSE_KMS_KEY_ID"`
}

// ACLConfig selects and configures the ACL side store
type ACLConfig struct {
	Type          string `env:"OBJECTGATE_ACL_STORE" env-default:"memory"` // "memory", "redis", "postgres"
	RedisAddr     string `env:"OBJECTGATE_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"OBJECTGATE_REDIS_PASSWORD"`
	RedisDB       int    `env:"OBJECTGATE_REDIS_DB" env-default:"0"`
	RedisTLS      bool   `env:"OBJECTGATE_REDIS_TLS" env-default:"false"`
	RedisPrefix   string `env:"OBJECTGATE_REDIS_PREFIX" env-default:"acl:"`
	DatabaseURL   string `env:"OBJECTGATE_DATABASE_URL"`
	DBSchema      string `env:"OBJECTGATE_DB_SCHEMA"`
}

// AuthzConfig points at the decision and identity services. An empty
// DecisionURL disables authorization.
type AuthzConfig struct {
	DecisionURL      string        `env:"OBJECTGATE_AUTHZ_DECISION_URL"`
	IdentityURL      string        `env:"OBJECTGATE_AUTHZ_IDENTITY_URL"`
	ServiceToken     string        `env:"OBJECTGATE_AUTHZ_SERVICE_TOKEN"`
	Timeout          time.Duration `env:"OBJECTGATE_AUTHZ_TIMEOUT" env-default:"5s"`
	Retries          int           `env:"OBJECTGATE_AUTHZ_RETRIES" env-default:"2"`
	IdentityCacheTTL time.Duration `env:"OBJECTGATE_AUTHZ_IDENTITY_CACHE_TTL" env-default:"5m"`
}

// Enabled reports whether a decision service is configured
func (a AuthzConfig) Enabled() bool {
	return a.DecisionURL != ""
}

// EventsConfig selects the event emitter
type EventsConfig struct {
	Type         string        `env:"OBJECTGATE_EVENTS" env-default:"log"` // "none", "log", "kafka"
	Topic        string        `env:"OBJECTGATE_EVENT_TOPIC" env-default:"io.objectgate.object"`
	Source       string        `env:"OBJECTGATE_EVENT_SOURCE" env-default:"objectgate"`
	KafkaBrokers []string      `env:"OBJECTGATE_KAFKA_BROKERS" env-separator:","`
	WriteTimeout time.Duration `env:"OBJECTGATE_KAFKA_WRITE_TIMEOUT" env-default:"10s"`
}

// Load reads the environment, then applies the supplied options on top.
func Load(opts ...Option) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage describes every environment variable Load reads
func Usage() string {
	var cfg ServerConfig
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if len(c.Buckets) == 0 {
		return errors.New("at least one bucket is required")
	}
	for _, b := range c.Buckets {
		if strings.TrimSpace(b) == "" {
			return errors.New("bucket names cannot be empty")
		}
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got: %d", c.ChunkSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got: %d", c.Concurrency)
	}
	if _, err := objectkey.New(c.KeyStrategy); err != nil {
		return err
	}

	if !slices.Contains([]string{StorageMemory, StorageS3}, c.Storage.Type) {
		return fmt.Errorf("storage must be 'memory' or 's3', got: %s", c.Storage.Type)
	}
	if c.Storage.EnableSSE && c.Storage.SSEAlgorithm == "aws:kms" && c.Storage.SSEKMSKeyID == "" {
		return errors.New("sse_kms_key_id is required when sse algorithm is aws:kms")
	}

	switch c.ACL.Type {
	case ACLMemory:
	case ACLRedis:
		if c.ACL.RedisAddr == "" {
			return errors.New("redis address is required when using the redis acl store")
		}
	case ACLPostgres:
		if c.ACL.DatabaseURL == "" {
			return errors.New("database_url is required when using the postgres acl store")
		}
	default:
		return fmt.Errorf("acl store must be 'memory', 'redis' or 'postgres', got: %s", c.ACL.Type)
	}

	if c.Authz.IdentityURL != "" && !c.Authz.Enabled() {
		return errors.New("identity url requires a decision url")
	}

	switch c.Events.Type {
	case EventsNone, EventsLog:
	case EventsKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return errors.New("kafka brokers are required when using kafka events")
		}
	default:
		return fmt.Errorf("events must be 'none', 'log' or 'kafka', got: %s", c.Events.Type)
	}
	if c.Events.Topic == "" {
		return errors.New("event topic cannot be empty")
	}

	return nil
}
