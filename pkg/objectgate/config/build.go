package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/objectgate/pkg/objectgate"
	aclmemory "github.com/tendant/objectgate/pkg/objectgate/aclstore/memory"
	aclpostgres "github.com/tendant/objectgate/pkg/objectgate/aclstore/postgres"
	aclredis "github.com/tendant/objectgate/pkg/objectgate/aclstore/redis"
	"github.com/tendant/objectgate/pkg/objectgate/authz"
	"github.com/tendant/objectgate/pkg/objectgate/events"
	"github.com/tendant/objectgate/pkg/objectgate/objectkey"
	memorystorage "github.com/tendant/objectgate/pkg/objectgate/storage/memory"
	s3storage "github.com/tendant/objectgate/pkg/objectgate/storage/s3"
)

// Runtime is a built service together with the connections it owns
type Runtime struct {
	Service objectgate.Service
	closers []func() error
}

// Close releases every connection opened by BuildService, newest first
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runtime) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// BuildService creates a Service instance from the server configuration.
// On error every connection opened so far is closed.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (_ *Runtime, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	options := []objectgate.Option{
		objectgate.WithLogger(logger),
		objectgate.WithBuckets(c.Buckets...),
		objectgate.WithURLPrefix(c.URLPrefix),
		objectgate.WithChunkSize(c.ChunkSize),
		objectgate.WithConcurrency(c.Concurrency),
		objectgate.WithListIncludeUnscoped(c.ListIncludeUnscoped),
		objectgate.WithEventTopic(c.Events.Topic),
	}

	store, err := c.buildObjectStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build object store: %w", err)
	}
	options = append(options, objectgate.WithObjectStore(store))

	acls, err := c.buildACLStore(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("failed to build acl store: %w", err)
	}
	options = append(options, objectgate.WithACLStore(acls))

	if c.Authz.Enabled() {
		gateway, err := authz.New(authz.Config{
			DecisionURL:      c.Authz.DecisionURL,
			IdentityURL:      c.Authz.IdentityURL,
			ServiceToken:     c.Authz.ServiceToken,
			Timeout:          c.Authz.Timeout,
			Retries:          c.Authz.Retries,
			IdentityCacheTTL: c.Authz.IdentityCacheTTL,
		}, authz.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to build decision gateway: %w", err)
		}
		options = append(options, objectgate.WithAuthorizer(gateway))
	}

	emitter, err := c.buildEmitter(logger, rt)
	if err != nil {
		return nil, fmt.Errorf("failed to build event emitter: %w", err)
	}
	if emitter != nil {
		options = append(options, objectgate.WithEventEmitter(emitter))
	}

	keyGen, err := objectkey.New(c.KeyStrategy)
	if err != nil {
		return nil, err
	}
	options = append(options, objectgate.WithKeyGenerator(keyGen))

	svc, err := objectgate.New(options...)
	if err != nil {
		return nil, err
	}
	if c.EnsureBuckets {
		if err := svc.EnsureBuckets(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure buckets: %w", err)
		}
	}
	rt.Service = svc
	return rt, nil
}

func (c *ServerConfig) buildObjectStore(ctx context.Context) (objectgate.ObjectStore, error) {
	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil
	case StorageS3:
		return s3storage.New(ctx, s3storage.Config{
			Region:          c.Storage.Region,
			AccessKeyID:     c.Storage.AccessKeyID,
			SecretAccessKey: c.Storage.SecretAccessKey,
			Endpoint:        c.Storage.Endpoint,
			UsePathStyle:    c.Storage.UsePathStyle,
			PartSize:        c.Storage.PartSize,
			EnableSSE:       c.Storage.EnableSSE,
			SSEAlgorithm:    c.Storage.SSEAlgorithm,
			SSEKMSKeyID:     c.Storage.SSEKMSKeyID,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

func (c *ServerConfig) buildACLStore(ctx context.Context, rt *Runtime) (objectgate.ACLStore, error) {
	switch c.ACL.Type {
	case ACLMemory:
		return aclmemory.New(), nil
	case ACLRedis:
		store, client, err := aclredis.Dial(ctx, aclredis.Config{
			Addr:      c.ACL.RedisAddr,
			Password:  c.ACL.RedisPassword,
			DB:        c.ACL.RedisDB,
			TLS:       c.ACL.RedisTLS,
			KeyPrefix: c.ACL.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		rt.onClose(client.Close)
		return store, nil
	case ACLPostgres:
		pool, err := NewPool(ctx, c.ACL.DatabaseURL, c.ACL.DBSchema)
		if err != nil {
			return nil, err
		}
		rt.onClose(func() error {
			pool.Close()
			return nil
		})
		store := aclpostgres.NewWithPool(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported acl store: %s", c.ACL.Type)
	}
}

func (c *ServerConfig) buildEmitter(logger *slog.Logger, rt *Runtime) (objectgate.EventEmitter, error) {
	switch c.Events.Type {
	case EventsNone:
		return nil, nil
	case EventsLog:
		return events.NewLogEmitter(logger, c.Events.Source), nil
	case EventsKafka:
		emitter, err := events.NewKafkaEmitter(events.KafkaConfig{
			Brokers:      c.Events.KafkaBrokers,
			Source:       c.Events.Source,
			WriteTimeout: c.Events.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		rt.onClose(emitter.Close)
		return emitter, nil
	default:
		return nil, fmt.Errorf("unsupported events type: %s", c.Events.Type)
	}
}

// NewPool opens a pgx pool, setting search_path on every connection when a
// schema is given, and verifies connectivity.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}
