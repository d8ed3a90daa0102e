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
	"encoding/binary"
	"hash/crc32"
	"strings"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// RedoLogInfo is the decoded form of a RedoLogEncryptionInfo (RK_V2) blob:
// the redo log's own key-version/iv metadata, independent of any single
// tablespace's EncryptionInfo.
type RedoLogInfo struct {
	KeyVersion uint32
	ServerUUID string
	IV         []byte
}

// EncodeRedoLogInfo serializes a RedoLogInfo into its fixed-size RK_V2
// wire form: magic, key_version, uuid, iv, crc32 over everything that
// precedes it.
func EncodeRedoLogInfo(info RedoLogInfo) ([]byte, error) {
	if len(info.IV) != 32 {
		return nil, cerrors.ErrInvariantViolation.GenWithStackByArgs("redo log iv must be 32 bytes")
	}
	buf := make([]byte, RedoInfoSize)
	copy(buf[0:MagicSize], RedoMagicV2)
	binary.BigEndian.PutUint32(buf[MagicSize:MagicSize+4], info.KeyVersion)
	copy(buf[MagicSize+4:MagicSize+4+ServerUUIDLen], info.ServerUUID)
	ivOff := MagicSize + 4 + ServerUUIDLen
	copy(buf[ivOff:ivOff+32], info.IV)
	crc := crc32.ChecksumIEEE(buf[:ivOff+32])
	binary.BigEndian.PutUint32(buf[ivOff+32:ivOff+32+CRCLen], crc)
	return buf, nil
}

// DecodeRedoLogInfo parses a RK_V2 blob, verifying its CRC32.
func DecodeRedoLogInfo(blob []byte) (RedoLogInfo, error) {
	if len(blob) != RedoInfoSize {
		return RedoLogInfo{}, cerrors.ErrInfoCorrupt.GenWithStackByArgs("unexpected redo log info size")
	}
	if string(blob[0:MagicSize]) != RedoMagicV2 {
		return RedoLogInfo{}, cerrors.ErrInfoCorrupt.GenWithStackByArgs("bad redo log info magic")
	}
	ivOff := MagicSize + 4 + ServerUUIDLen
	storedCRC := binary.BigEndian.Uint32(blob[ivOff+32 : ivOff+32+CRCLen])
	if crc32.ChecksumIEEE(blob[:ivOff+32]) != storedCRC {
		return RedoLogInfo{}, cerrors.ErrInfoCorrupt.GenWithStackByArgs("redo log info CRC mismatch")
	}
	iv := make([]byte, 32)
	copy(iv, blob[ivOff:ivOff+32])
	return RedoLogInfo{
		KeyVersion: binary.BigEndian.Uint32(blob[MagicSize : MagicSize+4]),
		ServerUUID: strings.TrimRight(string(blob[MagicSize+4:MagicSize+4+ServerUUIDLen]), "\x00"),
		IV:         iv,
	}, nil
}
