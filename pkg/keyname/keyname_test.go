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

package keyname

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMasterKeyName(t *testing.T) {
	name, err := MasterKeyName("uuid-1", 7)
	require.NoError(t, err)
	require.Equal(t, "INNODBKey-uuid-1-7", name)
}

func TestMasterKeyNameRejectsEmptyUUID(t *testing.T) {
	_, err := MasterKeyName("", 1)
	require.Error(t, err)
}

func TestLegacyMasterKeyName(t *testing.T) {
	name, err := LegacyMasterKeyName(12345, 2)
	require.NoError(t, err)
	require.Equal(t, "INNODBKey-12345-2", name)
}

func TestLegacyMasterKeyNameAllowsZeroServerID(t *testing.T) {
	name, err := LegacyMasterKeyName(0, 1)
	require.NoError(t, err)
	require.Equal(t, "INNODBKey-0-1", name)
}

func TestSystemKeyName(t *testing.T) {
	name, err := SystemKeyName(3, "uuid-2")
	require.NoError(t, err)
	require.Equal(t, "percona_innodb-3-uuid-2", name)
}

func TestVersionedSystemKeyName(t *testing.T) {
	name, err := VersionedSystemKeyName(3, "uuid-2", 5)
	require.NoError(t, err)
	require.Equal(t, "percona_innodb-3-uuid-2:5", name)
}

func TestVersionedSystemKeyNameRejectsEmptyUUID(t *testing.T) {
	_, err := VersionedSystemKeyName(1, "", 1)
	require.Error(t, err)
}

func TestNamesAreBoundedByMaxLen(t *testing.T) {
	longUUID := strings.Repeat("a", MasterKeyNameMaxLen)
	_, err := MasterKeyName(longUUID, 1)
	require.Error(t, err)
}
