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

//go:build darwin && cgo

// Secrets are stored directly in the macOS Keychain under the service name
// com.percona.innodb-tde; the keyring name is stored as the account name.
package keyring

import (
	"context"
	"crypto/rand"

	keychain "github.com/keybase/go-keychain"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

const keychainService = "com.percona.innodb-tde"

// Keychain is a Gateway backed by the macOS Keychain, for local development
// on darwin hosts without a KMS or keyring server available.
type Keychain struct{}

// NewKeychain returns a Gateway backed by the macOS Keychain.
func NewKeychain() *Keychain {
	return &Keychain{}
}

// Generate implements Gateway.
func (k *Keychain) Generate(_ context.Context, name string, _ KeyType, length int) error {
	if _, err := keychain.GetGenericPassword(keychainService, name, "", ""); err == nil {
		return nil
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	item := keychain.NewGenericPassword(keychainService, name, "", buf, "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)
	if err := keychain.AddItem(item); err != nil {
		return cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	return nil
}

// Fetch implements Gateway.
func (k *Keychain) Fetch(_ context.Context, name string) ([]byte, KeyType, error) {
	data, err := keychain.GetGenericPassword(keychainService, name, "", "")
	if err == keychain.ErrorItemNotFound {
		return nil, "", cerrors.ErrKeyNotFound.GenWithStackByArgs(name)
	}
	if err != nil {
		return nil, "", cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	if data == nil {
		return nil, "", cerrors.ErrKeyNotFound.GenWithStackByArgs(name)
	}
	return data, KeyTypeAES, nil
}

// Remove implements Gateway.
func (k *Keychain) Remove(_ context.Context, name string) error {
	if err := keychain.DeleteGenericPasswordItem(keychainService, name); err != nil && err != keychain.ErrorItemNotFound {
		return cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	return nil
}

// IsAlive implements Gateway.
func (k *Keychain) IsAlive(ctx context.Context) bool {
	return IsAlive(ctx, k, "percona_keyring_test")
}

var _ Gateway = (*Keychain)(nil)

func newKeychainGateway() (Gateway, error) {
	return NewKeychain(), nil
}
