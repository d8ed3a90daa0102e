// Copyright 2025 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package keyring

import (
	"context"
	"crypto/rand"
	"sync"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// Memory is an in-process Gateway backed by a mutex-guarded map. It is used
// by tests and by the "memory" keyring backend for local development; no
// key material survives process restart.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]memoryEntry
}

type memoryEntry struct {
	bytes []byte
	typ   KeyType
}

// NewMemory returns an empty in-memory Gateway.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]memoryEntry)}
}

// Generate implements Gateway.
func (m *Memory) Generate(_ context.Context, name string, algo KeyType, length int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[name]; ok {
		return nil
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	m.keys[name] = memoryEntry{bytes: buf, typ: algo}
	return nil
}

// Fetch implements Gateway.
func (m *Memory) Fetch(_ context.Context, name string) ([]byte, KeyType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.keys[name]
	if !ok {
		return nil, "", cerrors.ErrKeyNotFound.GenWithStackByArgs(name)
	}
	out := make([]byte, len(entry.bytes))
	copy(out, entry.bytes)
	return out, entry.typ, nil
}

// Remove implements Gateway.
func (m *Memory) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, name)
	return nil
}

// IsAlive implements Gateway.
func (m *Memory) IsAlive(ctx context.Context) bool {
	return IsAlive(ctx, m, "percona_keyring_test")
}

// Put seeds name directly with raw bytes, bypassing Generate's random-fill.
// Used by tests that need deterministic key material.
func (m *Memory) Put(name string, data []byte, typ KeyType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.keys[name] = memoryEntry{bytes: cp, typ: typ}
}

var _ Gateway = (*Memory)(nil)
