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

// Package infocodec serializes and parses the per-tablespace
// EncryptionInfo blob (magic, master-key-id, server uuid, encrypted
// {tablespace-key ‖ iv}, CRC) stored in a tablespace's first page, and the
// sibling RedoLogEncryptionInfo blob used by the redo log. Three
// EncryptionInfo wire versions must be parseable (V1, V2, V3); only V3 is
// ever written by Encode. Changing any of the magics, field widths or
// field order below breaks on-disk compatibility for every existing
// tablespace — do not "clean up" these layouts.
package infocodec

const (
	// MagicSize is the width, in bytes, of every magic value below.
	MagicSize = 3

	// MagicV1 identifies the oldest EncryptionInfo layout: id, no uuid,
	// optionally an 8-byte legacy id representation.
	MagicV1 = "lCB"
	// MagicV2 identifies the layout that added the server uuid.
	MagicV2 = "lCC"
	// MagicV3 identifies the current, only-ever-written layout.
	MagicV3 = "lCA"

	// RedoMagicV2 identifies the redo-log keyring metadata blob.
	RedoMagicV2 = "lRK"

	// ServerUUIDLen is the on-disk width of a server uuid field.
	ServerUUIDLen = 36

	// KeyIVLen is the combined width of the wrapped tablespace key and IV.
	KeyIVLen = 64

	// MasterKeyIDLen is the width of a master_key_id field.
	MasterKeyIDLen = 4

	// CRCLen is the width of a trailing CRC32 field.
	CRCLen = 4

	// legacyPadLen is the width of the zero-filled legacy 8-byte id
	// representation's high half, present only in the legacy V1 layout.
	legacyPadLen = 4

	// CompactV1Size is the total size of a V1 blob with the 4-byte id and
	// no legacy padding: magic + id + wrapped + crc.
	CompactV1Size = MagicSize + MasterKeyIDLen + KeyIVLen + CRCLen

	// LegacyV1Size is the total size of a V1 blob using the legacy 8-byte
	// id representation: magic + id + pad + wrapped + crc.
	LegacyV1Size = MagicSize + MasterKeyIDLen + legacyPadLen + KeyIVLen + CRCLen

	// V2V3Size is the total size of a V2 or V3 blob; the two are
	// distinguished only by magic, never by size.
	V2V3Size = MagicSize + MasterKeyIDLen + ServerUUIDLen + KeyIVLen + CRCLen

	// Size is the size Encode always produces (V3).
	Size = V2V3Size

	// RedoInfoSize is the total size of a RedoLogEncryptionInfo blob.
	RedoInfoSize = MagicSize + 4 /* key_version */ + ServerUUIDLen + 32 /* iv */ + CRCLen
)
