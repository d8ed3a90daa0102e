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

// Package keyring defines the Keyring Gateway capability and ships the
// concrete backends the rest of the encryption core is wired against. All
// key material enters and leaves the process through a Gateway.
package keyring

import (
	"context"
)

// KeyType describes the kind of key material a Fetch call returned.
type KeyType string

const (
	// KeyTypeAES marks a raw symmetric key.
	KeyTypeAES KeyType = "AES"
)

// Gateway is a thin capability over an external key-value keyring. No
// implementation caches results; callers that need caching (e.g. the
// master key manager) do it themselves.
type Gateway interface {
	// Generate creates a new random key of the given byte length under
	// name if one does not already exist. It must not silently overwrite
	// an existing key under the same name.
	Generate(ctx context.Context, name string, algo KeyType, length int) error

	// Fetch returns the raw bytes stored under name. Returns
	// cerrors.ErrKeyNotFound if absent.
	Fetch(ctx context.Context, name string) ([]byte, KeyType, error)

	// Remove deletes the key stored under name. Removing an absent key is
	// not an error.
	Remove(ctx context.Context, name string) error

	// IsAlive probes the backend by generating-or-fetching a fixed dummy
	// key name and removing it again.
	IsAlive(ctx context.Context) bool
}

// IsAlive is the shared generate-fetch-remove dummy-key probe used by every
// backend's IsAlive implementation, factored out so each backend only needs
// to supply Generate/Fetch/Remove correctly.
func IsAlive(ctx context.Context, gw Gateway, probeName string) bool {
	// Generate is a no-op if the probe key already exists from a prior
	// probe that failed to clean up; either way a subsequent Fetch must
	// succeed for the backend to be considered alive.
	_ = gw.Generate(ctx, probeName, KeyTypeAES, 32)
	if _, _, err := gw.Fetch(ctx, probeName); err != nil {
		return false
	}
	_ = gw.Remove(ctx, probeName)
	return true
}
