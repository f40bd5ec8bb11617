package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bnema/rulekit/internal/store"
)

// KV is a store.KV backed by the kv table
type KV struct {
	db *sql.DB
}

var _ store.KV = (*KV)(nil)

// NewKV wraps an open connection from NewConnection
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Open opens (or creates) the database at path and returns a KV over it
func Open(ctx context.Context, path string) (*KV, error) {
	db, err := NewConnection(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewKV(db), nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection
func (k *KV) Close() error {
	if k.db == nil {
		return nil
	}
	return k.db.Close()
}
