package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the ACL table
const Schema = `CREATE TABLE IF NOT EXISTS object_acl (
	acl_key    TEXT PRIMARY KEY,
	acl        TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements objectgate.ACLStore using PostgreSQL
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL ACL store
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL ACL store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// EnsureSchema creates the ACL table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return s.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Get returns the serialized ACL stored under key
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT acl FROM object_acl WHERE acl_key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.handlePostgresError("get acl", err)
	}
	return value, true, nil
}

// Set upserts the serialized ACL under key
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO object_acl (acl_key, acl, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (acl_key) DO UPDATE SET acl = EXCLUDED.acl, updated_at = now()`, key, value)
	if err != nil {
		return s.handlePostgresError("set acl", err)
	}
	return nil
}

// Delete removes key; absence is not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM object_acl WHERE acl_key = $1`, key); err != nil {
		return s.handlePostgresError("delete acl", err)
	}
	return nil
}

func (s *Store) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "42P01" { // undefined_table
			return fmt.Errorf("%s: table object_acl does not exist - run EnsureSchema: %w", operation, err)
		}
		return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
