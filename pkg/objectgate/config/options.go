package config

import (
	"fmt"
	"strings"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithBuckets replaces the bucket allow-list
func WithBuckets(buckets ...string) Option {
	return func(c *ServerConfig) error {
		if len(buckets) == 0 {
			return fmt.Errorf("at least one bucket is required")
		}
		c.Buckets = append([]string(nil), buckets...)
		return nil
	}
}

// WithMemoryStorage selects the in-memory object store
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage.Type = StorageMemory
		return nil
	}
}

// WithS3Storage selects the S3 object store.
// A non-empty endpoint targets an S3-compatible service (MinIO, LocalStack).
func WithS3Storage(region, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if region == "" {
			region = "us-east-1"
		}
		c.Storage.Type = StorageS3
		c.Storage.Region = region
		c.Storage.Endpoint = endpoint
		c.Storage.UsePathStyle = usePathStyle
		return nil
	}
}

// WithS3Credentials sets static credentials for the S3 store
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.Storage.AccessKeyID = accessKeyID
		c.Storage.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithRedisACLStore keeps ACLs in Redis
func WithRedisACLStore(addr, password string, db int) Option {
	return func(c *ServerConfig) error {
		if addr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		c.ACL.Type = ACLRedis
		c.ACL.RedisAddr = addr
		c.ACL.RedisPassword = password
		c.ACL.RedisDB = db
		return nil
	}
}

// WithPostgresACLStore keeps ACLs in a Postgres table
func WithPostgresACLStore(url, schema string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.ACL.Type = ACLPostgres
		c.ACL.DatabaseURL = url
		c.ACL.DBSchema = schema
		return nil
	}
}

// WithAuthorization enables the decision gateway
func WithAuthorization(decisionURL, identityURL string) Option {
	return func(c *ServerConfig) error {
		if decisionURL == "" {
			return fmt.Errorf("decision URL cannot be empty")
		}
		c.Authz.DecisionURL = decisionURL
		c.Authz.IdentityURL = identityURL
		return nil
	}
}

// WithKafkaEvents publishes events to Kafka
func WithKafkaEvents(brokers ...string) Option {
	return func(c *ServerConfig) error {
		var cleaned []string
		for _, b := range brokers {
			if b = strings.TrimSpace(b); b != "" {
				cleaned = append(cleaned, b)
			}
		}
		if len(cleaned) == 0 {
			return fmt.Errorf("at least one kafka broker is required")
		}
		c.Events.Type = EventsKafka
		c.Events.KafkaBrokers = cleaned
		return nil
	}
}

// WithLogEvents writes events to the log
func WithLogEvents() Option {
	return func(c *ServerConfig) error {
		c.Events.Type = EventsLog
		return nil
	}
}

// WithoutEvents disables event emission
func WithoutEvents() Option {
	return func(c *ServerConfig) error {
		c.Events.Type = EventsNone
		return nil
	}
}

// WithKeyStrategy sets the generator used for puts without a key
func WithKeyStrategy(strategy string) Option {
	return func(c *ServerConfig) error {
		c.KeyStrategy = strategy
		return nil
	}
}

// WithListIncludeUnscoped controls list visibility when a decision carries no scope
func WithListIncludeUnscoped(include bool) Option {
	return func(c *ServerConfig) error {
		c.ListIncludeUnscoped = include
		return nil
	}
}
