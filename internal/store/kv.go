package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Bucket is a key-value namespace inside the store.
type Bucket struct {
	store *Store
	scope string
}

// Bucket returns the key-value namespace named scope.
func (s *Store) Bucket(scope string) *Bucket {
	return &Bucket{store: s, scope: scope}
}

// Get returns the value stored under key. The boolean is false when the key is absent.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b == nil || b.store == nil || b.store.db == nil {
		return nil, false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var value []byte
	err := b.store.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE scope = ? AND key = ?", b.scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", b.scope, key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (b *Bucket) Set(ctx context.Context, key string, value []byte) error {
	if b == nil || b.store == nil || b.store.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}
	if value == nil {
		value = []byte{}
	}

	_, err := b.store.db.ExecContext(ctx, `
		INSERT INTO kv (scope, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, b.scope, key, value, formatTime(b.store.now()))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", b.scope, key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if b == nil || b.store == nil || b.store.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := b.store.db.ExecContext(ctx, "DELETE FROM kv WHERE scope = ? AND key = ?", b.scope, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", b.scope, key, err)
	}
	return nil
}
