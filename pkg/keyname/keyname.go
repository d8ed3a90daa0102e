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

// Package keyname builds the canonical keyring names used by the master
// key, percona system key and versioned system key families. These names
// are the only identity keys have outside of the keyring, and the three
// grammars below must never change: doing so breaks on-disk compatibility
// for every tablespace created under the old grammar.
package keyname

import (
	"fmt"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

const (
	// MasterKeyPrefix namesakes master keys in the keyring.
	MasterKeyPrefix = "INNODBKey"

	// PerconaSystemKeyPrefix namesakes percona system keys (tablespace
	// keys stored in keyring mode).
	PerconaSystemKeyPrefix = "percona_innodb"

	// MasterKeyNameMaxLen bounds every name this package produces.
	MasterKeyNameMaxLen = 100

	// DefaultMasterKeyID is the sentinel meaning "no rotation has ever
	// happened on this instance".
	DefaultMasterKeyID uint32 = 0

	// DefaultMasterKey is the hard-coded key material used for bootstrap
	// tablespaces while DefaultMasterKeyID is in effect.
	DefaultMasterKey = "percona_default_master_key_00000"

	// KeyringAliveProbeName is the fixed name used by IsAlive() to
	// generate-or-fetch a dummy key as a keyring liveness probe.
	KeyringAliveProbeName = "percona_keyring_test"
)

// MasterKeyName builds the current-style master key name:
// "<prefix>-<server_uuid>-<master_key_id>".
func MasterKeyName(serverUUID string, masterKeyID uint32) (string, error) {
	if serverUUID == "" {
		return "", cerrors.ErrInvariantViolation.GenWithStackByArgs("server uuid must be non-empty to build a master key name")
	}
	name := fmt.Sprintf("%s-%s-%d", MasterKeyPrefix, serverUUID, masterKeyID)
	return boundsCheck(name)
}

// LegacyMasterKeyName builds the 5.7.11-compatible master key name used as
// a fallback when the uuid-scoped name is not found:
// "<prefix>-<server_id>-<master_key_id>".
func LegacyMasterKeyName(serverID uint64, masterKeyID uint32) (string, error) {
	name := fmt.Sprintf("%s-%d-%d", MasterKeyPrefix, serverID, masterKeyID)
	return boundsCheck(name)
}

// SystemKeyName builds the unversioned percona system key name:
// "<psprefix>-<key_id>-<uuid>".
func SystemKeyName(keyID uint32, serverUUID string) (string, error) {
	if serverUUID == "" {
		return "", cerrors.ErrInvariantViolation.GenWithStackByArgs("server uuid must be non-empty to build a system key name")
	}
	name := fmt.Sprintf("%s-%d-%s", PerconaSystemKeyPrefix, keyID, serverUUID)
	return boundsCheck(name)
}

// VersionedSystemKeyName builds the versioned percona system key name:
// "<psprefix>-<key_id>-<uuid>:<version>".
func VersionedSystemKeyName(keyID uint32, serverUUID string, version uint32) (string, error) {
	if serverUUID == "" {
		return "", cerrors.ErrInvariantViolation.GenWithStackByArgs("server uuid must be non-empty to build a versioned system key name")
	}
	name := fmt.Sprintf("%s-%d-%s:%d", PerconaSystemKeyPrefix, keyID, serverUUID, version)
	return boundsCheck(name)
}

func boundsCheck(name string) (string, error) {
	if len(name) > MasterKeyNameMaxLen {
		return "", cerrors.ErrInvariantViolation.GenWithStackByArgs(
			fmt.Sprintf("key name %q exceeds max length %d", name, MasterKeyNameMaxLen))
	}
	return name, nil
}
