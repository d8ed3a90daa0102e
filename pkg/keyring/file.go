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
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// fileRecord is the on-disk JSON representation of one keyring entry.
type fileRecord struct {
	Bytes string  `json:"bytes"`
	Type  KeyType `json:"type"`
}

// File is a Gateway backed by a single JSON file on local disk. It exists
// for single-node deployments that want durable keys without standing up
// an external KMS; the file itself is not encrypted, so operators are
// expected to restrict its filesystem permissions.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a Gateway backed by the JSON file at path. The file is
// created on first write if absent.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) load() (map[string]fileRecord, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]fileRecord), nil
	}
	if err != nil {
		return nil, cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	if len(data) == 0 {
		return make(map[string]fileRecord), nil
	}
	records := make(map[string]fileRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	return records, nil
}

func (f *File) save(records map[string]fileRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
		}
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	return nil
}

// Generate implements Gateway.
func (f *File) Generate(_ context.Context, name string, algo KeyType, length int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := records[name]; ok {
		return nil
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	records[name] = fileRecord{Bytes: base64.StdEncoding.EncodeToString(buf), Type: algo}
	return f.save(records)
}

// Fetch implements Gateway.
func (f *File) Fetch(_ context.Context, name string) ([]byte, KeyType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return nil, "", err
	}
	record, ok := records[name]
	if !ok {
		return nil, "", cerrors.ErrKeyNotFound.GenWithStackByArgs(name)
	}
	raw, err := base64.StdEncoding.DecodeString(record.Bytes)
	if err != nil {
		return nil, "", cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	return raw, record.Type, nil
}

// Remove implements Gateway.
func (f *File) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return err
	}
	delete(records, name)
	return f.save(records)
}

// IsAlive implements Gateway.
func (f *File) IsAlive(ctx context.Context) bool {
	return IsAlive(ctx, f, "percona_keyring_test")
}

var _ Gateway = (*File)(nil)
