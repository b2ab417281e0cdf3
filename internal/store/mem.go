// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"

	"go.astrophena.name/macrotrackr/internal/util/syncx"
)

// MemStore is an in-memory implementation of the [Store] interface.
type MemStore struct {
	vals *syncx.Protected[map[string][]byte]
}

// NewMemStore creates a new MemStore.
func NewMemStore() *MemStore {
	return &MemStore{vals: syncx.Protect(make(map[string][]byte))}
}

// Get retrieves a value for a given key.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	s.vals.RAccess(func(vals map[string][]byte) {
		if v, ok := vals[key]; ok {
			// Return a copy to prevent the caller from mutating the store.
			val = append([]byte(nil), v...)
		}
	})
	return val, nil
}

// Set stores a value for a given key.
func (s *MemStore) Set(_ context.Context, key string, value []byte) error {
	valueCopy := append([]byte(nil), value...)
	s.vals.Access(func(vals map[string][]byte) {
		vals[key] = valueCopy
	})
	return nil
}

// Update atomically replaces the value for a given key.
func (s *MemStore) Update(_ context.Context, key string, f UpdateFunc) ([]byte, error) {
	var (
		val []byte
		err error
	)
	s.vals.Access(func(vals map[string][]byte) {
		var old []byte
		if v, ok := vals[key]; ok {
			old = append([]byte(nil), v...)
		}
		val, err = f(old)
		if err != nil {
			return
		}
		vals[key] = append([]byte(nil), val...)
	})
	return val, err
}

// Ping reports whether the store is reachable. It always succeeds.
func (s *MemStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for MemStore.
func (s *MemStore) Close() error { return nil }
