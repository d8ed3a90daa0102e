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

package masterkey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/percona/innodb-tde/pkg/keyname"
	"github.com/percona/innodb-tde/pkg/keyring"
)

func TestGetOrCreateMasterKeyLazilyCreatesFirstKey(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 7)

	require.Equal(t, keyname.DefaultMasterKeyID, m.CurrentMasterKeyID())

	id, key, err := m.GetOrCreateMasterKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1), id)
	require.Len(t, key, 32)
	require.Equal(t, uint32(1), m.CurrentMasterKeyID())
	require.Equal(t, "uuid-1", m.CurrentUUID())

	name, err := keyname.MasterKeyName("uuid-1", 1)
	require.NoError(t, err)
	stored, _, err := gw.Fetch(context.Background(), name)
	require.NoError(t, err)
	require.Equal(t, key, stored)
}

func TestGetOrCreateMasterKeyReturnsExistingKey(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 0)

	id1, key1, err := m.GetOrCreateMasterKey(context.Background())
	require.NoError(t, err)

	id2, key2, err := m.GetOrCreateMasterKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Equal(t, key1, key2)
}

func TestGetOrCreateMasterKeyFallsBackToLegacyName(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-missing", 42)
	m.currentID = 3
	m.currentUUID = "uuid-missing"

	legacyName, err := keyname.LegacyMasterKeyName(42, 3)
	require.NoError(t, err)
	legacyKey := make([]byte, 32)
	for i := range legacyKey {
		legacyKey[i] = 0x5C
	}
	gw.Put(legacyName, legacyKey, keyring.KeyTypeAES)

	id, key, err := m.GetOrCreateMasterKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(3), id)
	require.Equal(t, legacyKey, key)
}

func TestGetMasterKeyZeroIDReturnsDefaultMasterKey(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 0)

	key, err := m.GetMasterKey(context.Background(), keyname.DefaultMasterKeyID, "")
	require.NoError(t, err)
	require.Equal(t, []byte(keyname.DefaultMasterKey), key)
}

func TestGetMasterKeyEmptyUUIDUsesLegacyName(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 99)

	legacyName, err := keyname.LegacyMasterKeyName(99, 5)
	require.NoError(t, err)
	legacyKey := make([]byte, 32)
	for i := range legacyKey {
		legacyKey[i] = 0x11
	}
	gw.Put(legacyName, legacyKey, keyring.KeyTypeAES)

	key, err := m.GetMasterKey(context.Background(), 5, "")
	require.NoError(t, err)
	require.Equal(t, legacyKey, key)
}

// Rotation monotonicity (invariant 8): starting from the first master key
// (id 1), after k successive Rotate calls current_master_key_id == k+1.
func TestRotateIsMonotonic(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 0)

	id, _, err := m.GetOrCreateMasterKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1), id)

	for i := 1; i <= 4; i++ {
		require.NoError(t, m.Rotate(context.Background()))
		require.Equal(t, uint32(i+1), m.CurrentMasterKeyID())
	}
}

func TestRotateCreatesAFetchableKey(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 0)

	require.NoError(t, m.Rotate(context.Background()))
	name, err := keyname.MasterKeyName("uuid-1", 1)
	require.NoError(t, err)
	_, _, err = gw.Fetch(context.Background(), name)
	require.NoError(t, err)
}

func TestCheckAliveBeforeAnyKeyCreated(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 0)
	require.True(t, m.CheckAlive(context.Background()))
}

func TestCheckAliveAfterKeyCreated(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 0)
	_, _, err := m.GetOrCreateMasterKey(context.Background())
	require.NoError(t, err)
	require.True(t, m.CheckAlive(context.Background()))
}

func TestAdvanceForDecodeNeverRewinds(t *testing.T) {
	gw := keyring.NewMemory()
	m := NewManager(gw, "uuid-1", 0)

	m.AdvanceForDecode(5, "uuid-5")
	require.Equal(t, uint32(5), m.CurrentMasterKeyID())
	require.Equal(t, "uuid-5", m.CurrentUUID())

	m.AdvanceForDecode(2, "uuid-2")
	require.Equal(t, uint32(5), m.CurrentMasterKeyID())
	require.Equal(t, "uuid-5", m.CurrentUUID())

	m.AdvanceForDecode(9, "uuid-9")
	require.Equal(t, uint32(9), m.CurrentMasterKeyID())
	require.Equal(t, "uuid-9", m.CurrentUUID())
}
