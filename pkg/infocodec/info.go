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

package infocodec

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"strings"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
	"github.com/percona/innodb-tde/pkg/keyname"
)

// MasterKeyProvider is the subset of masterkey.Manager the codec needs.
// Declared here, rather than depending on the concrete type, so tests can
// supply a hand-written fake the way the teacher's encryption manager
// tests do.
type MasterKeyProvider interface {
	GetOrCreateMasterKey(ctx context.Context) (id uint32, key []byte, err error)
	GetMasterKey(ctx context.Context, id uint32, uuid string) ([]byte, error)
	CurrentUUID() string
	AdvanceForDecode(id uint32, uuid string)
}

// Encode always emits a V3 blob. If isBootstrap is set or serverUUID is
// empty, the blob is wrapped under the hard-coded DEFAULT_MASTER_KEY with
// master_key_id 0, bypassing the keyring entirely; otherwise mk resolves
// (and lazily creates) the current master key. encryptKey=false copies the
// key‖iv plaintext into the wrapped region instead of AES-ECB wrapping it;
// this exists only for the clone path, which re-wraps under the
// destination's own master key after transfer.
func Encode(ctx context.Context, mk MasterKeyProvider, serverUUID string, tablespaceKey, iv []byte, isBootstrap, encryptKey bool) ([]byte, error) {
	if len(tablespaceKey) != 32 || len(iv) != 32 {
		return nil, cerrors.ErrInvariantViolation.GenWithStackByArgs("tablespace key and iv must each be 32 bytes")
	}

	var masterKeyID uint32
	var masterKey []byte
	uuid := serverUUID

	if isBootstrap || serverUUID == "" {
		masterKeyID = keyname.DefaultMasterKeyID
		masterKey = []byte(keyname.DefaultMasterKey)
	} else {
		id, key, err := mk.GetOrCreateMasterKey(ctx)
		if err != nil {
			return nil, err
		}
		masterKeyID = id
		masterKey = key
		uuid = mk.CurrentUUID()
	}

	plain := make([]byte, KeyIVLen)
	copy(plain[:32], tablespaceKey)
	copy(plain[32:], iv)
	crc := crc32.ChecksumIEEE(plain)

	var wrapped []byte
	if encryptKey {
		w, err := wrapECB(masterKey, plain)
		if err != nil {
			return nil, err
		}
		wrapped = w
	} else {
		wrapped = plain
	}

	buf := make([]byte, Size)
	copy(buf[0:MagicSize], MagicV3)
	binary.BigEndian.PutUint32(buf[MagicSize:MagicSize+4], masterKeyID)
	copy(buf[MagicSize+4:MagicSize+4+ServerUUIDLen], uuid)
	wrappedOff := MagicSize + 4 + ServerUUIDLen
	copy(buf[wrappedOff:wrappedOff+KeyIVLen], wrapped)
	binary.BigEndian.PutUint32(buf[wrappedOff+KeyIVLen:wrappedOff+KeyIVLen+CRCLen], crc)
	return buf, nil
}

// Decode parses an EncryptionInfo blob of any of the three on-disk
// versions and recovers the plaintext tablespace key and IV. inRecovery
// relaxes "unrecognized magic" from a hard error to an (nil, nil, nil)
// no-op, since during log recovery an info page may simply not have been
// flushed yet.
func Decode(ctx context.Context, mk MasterKeyProvider, blob []byte, decryptKey, inRecovery bool) (key, iv []byte, err error) {
	if len(blob) < MagicSize {
		if inRecovery {
			return nil, nil, nil
		}
		return nil, nil, cerrors.ErrInfoCorrupt.GenWithStackByArgs("blob too short")
	}
	magic := string(blob[0:MagicSize])

	switch magic {
	case MagicV1:
		return decodeV1(ctx, mk, blob, decryptKey)
	case MagicV2:
		return decodeV2(ctx, mk, blob, decryptKey)
	case MagicV3:
		return decodeV3(ctx, mk, blob, decryptKey)
	default:
		if inRecovery {
			return nil, nil, nil
		}
		return nil, nil, cerrors.ErrInfoCorrupt.GenWithStackByArgs("unrecognized magic " + magic)
	}
}

func decodeV1(ctx context.Context, mk MasterKeyProvider, blob []byte, decryptKey bool) ([]byte, []byte, error) {
	var id uint32
	var wrappedOff int
	switch len(blob) {
	case CompactV1Size:
		id = binary.BigEndian.Uint32(blob[MagicSize : MagicSize+4])
		wrappedOff = MagicSize + 4
	case LegacyV1Size:
		id = binary.BigEndian.Uint32(blob[MagicSize : MagicSize+4])
		pad := blob[MagicSize+4 : MagicSize+4+legacyPadLen]
		for _, b := range pad {
			if b != 0 {
				return nil, nil, cerrors.ErrInfoCorrupt.GenWithStackByArgs("legacy v1 id padding not zero")
			}
		}
		wrappedOff = MagicSize + 4 + legacyPadLen
	default:
		return nil, nil, cerrors.ErrInfoCorrupt.GenWithStackByArgs("unexpected v1 blob size")
	}

	masterKey, err := mk.GetMasterKey(ctx, id, "")
	if err != nil {
		return nil, nil, err
	}
	key, iv, err := unwrapAndVerify(masterKey, blob, wrappedOff, decryptKey)
	if err != nil {
		return nil, nil, err
	}
	// Per the legacy-read-only decision in DESIGN.md: V1 carries no uuid,
	// so current_uuid is never touched here, even if id advances.
	return key, iv, nil
}

func decodeV2(ctx context.Context, mk MasterKeyProvider, blob []byte, decryptKey bool) ([]byte, []byte, error) {
	if len(blob) != V2V3Size {
		return nil, nil, cerrors.ErrInfoCorrupt.GenWithStackByArgs("unexpected v2 blob size")
	}
	id := binary.BigEndian.Uint32(blob[MagicSize : MagicSize+4])
	uuid := strings.TrimRight(string(blob[MagicSize+4:MagicSize+4+ServerUUIDLen]), "\x00")
	wrappedOff := MagicSize + 4 + ServerUUIDLen

	masterKey, err := mk.GetMasterKey(ctx, id, uuid)
	if err != nil {
		return nil, nil, err
	}
	key, iv, err := unwrapAndVerify(masterKey, blob, wrappedOff, decryptKey)
	if err != nil {
		return nil, nil, err
	}
	mk.AdvanceForDecode(id, uuid)
	return key, iv, nil
}

func decodeV3(ctx context.Context, mk MasterKeyProvider, blob []byte, decryptKey bool) ([]byte, []byte, error) {
	if len(blob) != V2V3Size {
		return nil, nil, cerrors.ErrInfoCorrupt.GenWithStackByArgs("unexpected v3 blob size")
	}
	id := binary.BigEndian.Uint32(blob[MagicSize : MagicSize+4])
	uuid := strings.TrimRight(string(blob[MagicSize+4:MagicSize+4+ServerUUIDLen]), "\x00")
	wrappedOff := MagicSize + 4 + ServerUUIDLen

	var masterKey []byte
	if id == keyname.DefaultMasterKeyID {
		masterKey = []byte(keyname.DefaultMasterKey)
	} else {
		mkey, err := mk.GetMasterKey(ctx, id, uuid)
		if err != nil {
			return nil, nil, err
		}
		masterKey = mkey
	}

	key, iv, err := unwrapAndVerify(masterKey, blob, wrappedOff, decryptKey)
	if err != nil {
		return nil, nil, err
	}
	if id != keyname.DefaultMasterKeyID {
		mk.AdvanceForDecode(id, uuid)
	}
	return key, iv, nil
}

// unwrapAndVerify unwraps the 64-byte region at wrappedOff (if decryptKey)
// and checks its trailing CRC32 against the plaintext key‖iv.
func unwrapAndVerify(masterKey, blob []byte, wrappedOff int, decryptKey bool) ([]byte, []byte, error) {
	wrapped := blob[wrappedOff : wrappedOff+KeyIVLen]
	storedCRC := binary.BigEndian.Uint32(blob[wrappedOff+KeyIVLen : wrappedOff+KeyIVLen+CRCLen])

	var plain []byte
	if decryptKey {
		p, err := unwrapECB(masterKey, wrapped)
		if err != nil {
			return nil, nil, err
		}
		plain = p
	} else {
		plain = wrapped
	}

	if crc32.ChecksumIEEE(plain) != storedCRC {
		return nil, nil, cerrors.ErrInfoCorrupt.GenWithStackByArgs("key/iv CRC mismatch, possible keyring tampering")
	}
	key := make([]byte, 32)
	iv := make([]byte, 32)
	copy(key, plain[:32])
	copy(iv, plain[32:])
	return key, iv, nil
}
