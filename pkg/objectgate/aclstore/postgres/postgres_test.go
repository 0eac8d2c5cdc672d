package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB keeps rows in a map and recognizes the statements the store issues
type fakeDB struct {
	rows    map[string]string
	execErr error
	queries []string
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	switch {
	case strings.Contains(sql, "INSERT INTO object_acl"):
		f.rows[args[0].(string)] = args[1].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "DELETE FROM object_acl"):
		delete(f.rows, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	f.queries = append(f.queries, sql)
	value, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: value}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{rows: map[string]string{}}
	store := New(db)

	require.NoError(t, store.EnsureSchema(ctx))
	assert.Contains(t, db.queries[0], "CREATE TABLE IF NOT EXISTS object_acl")

	_, ok, err := store.Get(ctx, "test:a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "test:a", "[]"))
	value, ok, err := store.Get(ctx, "test:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", value)

	require.NoError(t, store.Delete(ctx, "test:a"))
	_, ok, err = store.Get(ctx, "test:a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("undefined table", func(t *testing.T) {
		db := &fakeDB{rows: map[string]string{}, execErr: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}}
		err := New(db).Set(ctx, "test:a", "[]")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EnsureSchema")
	})

	t.Run("connection", func(t *testing.T) {
		db := &fakeDB{rows: map[string]string{}, execErr: errors.New("conn closed")}
		err := New(db).Delete(ctx, "test:a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delete acl")
	})
}
