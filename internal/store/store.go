// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package store implements a key-value store backed in-memory, by SQLite or
// by PostgreSQL.
package store

import (
	"context"
	"strings"
)

// Store is a generic interface for a key-value store.
type Store interface {
	// Get retrieves a value for a given key.
	// It must return (nil, nil) if the key is not found.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value for a given key.
	Set(ctx context.Context, key string, value []byte) error
	// Update atomically replaces the value for a given key. The update
	// function receives the current value, or nil if the key is not set, and
	// returns the value to store. Concurrent updates of the same key must not
	// lose writes.
	Update(ctx context.Context, key string, f UpdateFunc) ([]byte, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Close closes the store and releases any resources.
	Close() error
}

// UpdateFunc computes a new value from the current one. See [Store.Update].
type UpdateFunc func(old []byte) ([]byte, error)

// Open connects to the store identified by dsn: "mem" selects the in-memory
// store, a "postgres://" or "postgresql://" URL selects PostgreSQL, anything
// else is treated as a path to a SQLite database file.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "mem":
		return NewMemStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn)
	default:
		return NewSQLiteStore(ctx, dsn)
	}
}
