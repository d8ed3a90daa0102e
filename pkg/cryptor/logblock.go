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

package cryptor

import (
	"encoding/binary"
	"hash/crc32"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
	"github.com/percona/innodb-tde/pkg/tdecontext"
)

// EncryptLogBlock transforms one plaintext OS_FILE_LOG_BLOCK_SIZE redo log
// block into its ciphertext form. The 12-byte header is left untouched
// except for its top "encrypted" bit, set on the block's sequence-number
// word; the body between header and trailer is run through the two-pass
// CBC trick keyed by tctx. For keyring mode the 4-byte trailer is
// overwritten with crc32(ciphertext) + KeyVersion so decrypt can recover
// the version a stale reader's context disagrees with; for master-key
// (AES) mode the trailer is left byte-identical to src, since AES mode
// has no key version to recover.
func EncryptLogBlock(tctx *tdecontext.Context, src, dst []byte) error {
	if tctx == nil || tctx.Mode == tdecontext.ModeNone {
		return cerrors.ErrUnsupportedMode.GenWithStackByArgs("cannot encrypt a log block with mode none")
	}
	if len(src) != LogBlockSize || len(dst) != LogBlockSize {
		return cerrors.ErrInvariantViolation.GenWithStackByArgs("log block must be exactly LogBlockSize bytes")
	}

	copy(dst[:LogBlockHdrSize], src[:LogBlockHdrSize])
	bodyLen := LogBlockSize - LogBlockHdrSize - LogBlockTrlSize

	ciphertext, err := twoPassEncrypt(tctx.Key, tctx.IV, src[LogBlockHdrSize:LogBlockHdrSize+bodyLen])
	if err != nil {
		return cerrors.ErrEncryptFail.GenWithStackByArgs(err.Error())
	}
	copy(dst[LogBlockHdrSize:LogBlockHdrSize+bodyLen], ciphertext)

	if isKeyring(tctx.Mode) {
		if tctx.KeyVersion == 0 {
			return cerrors.ErrInvariantViolation.GenWithStackByArgs("keyring mode requires a non-zero key version")
		}
		checksum := crc32.ChecksumIEEE(ciphertext) + tctx.KeyVersion
		binary.BigEndian.PutUint32(dst[LogBlockSize-LogBlockTrlSize:], checksum)
	} else {
		copy(dst[LogBlockSize-LogBlockTrlSize:], src[LogBlockSize-LogBlockTrlSize:])
	}

	hdrNo := binary.BigEndian.Uint32(dst[logBlockHdrNoOffset : logBlockHdrNoOffset+4])
	binary.BigEndian.PutUint32(dst[logBlockHdrNoOffset:logBlockHdrNoOffset+4], hdrNo|logBlockEncryptBit)

	return nil
}

// DecryptLogBlock reverses EncryptLogBlock. If the block's encrypted bit is
// not set, it is a no-op copy. For keyring mode, the stored checksum minus
// crc32(ciphertext) recovers the key version the block was encrypted
// under; if that differs from tctx's loaded KeyVersion, resolver supplies
// the matching historical key before the two-pass CBC decrypt runs, and the
// trailer is then rewritten to the plaintext block's own checksum, crc32
// over everything before the trailer. Master-key (AES) mode has no version
// to recover and decrypts directly under tctx's key, leaving the trailer
// untouched.
func DecryptLogBlock(tctx *tdecontext.Context, src, dst []byte, resolver tdecontext.RedoKeyVersionResolver) error {
	if len(src) != LogBlockSize || len(dst) != LogBlockSize {
		return cerrors.ErrInvariantViolation.GenWithStackByArgs("log block must be exactly LogBlockSize bytes")
	}

	hdrNo := binary.BigEndian.Uint32(src[logBlockHdrNoOffset : logBlockHdrNoOffset+4])
	if hdrNo&logBlockEncryptBit == 0 {
		copy(dst, src)
		return nil
	}
	if tctx == nil || tctx.Mode == tdecontext.ModeNone {
		return cerrors.ErrDecryptFail.GenWithStackByArgs("log block is encrypted but context has no key material")
	}

	copy(dst[:LogBlockHdrSize], src[:LogBlockHdrSize])
	binary.BigEndian.PutUint32(dst[logBlockHdrNoOffset:logBlockHdrNoOffset+4], hdrNo&^logBlockEncryptBit)

	bodyLen := LogBlockSize - LogBlockHdrSize - LogBlockTrlSize
	cipherBody := src[LogBlockHdrSize : LogBlockHdrSize+bodyLen]

	key, iv := tctx.Key, tctx.IV
	if isKeyring(tctx.Mode) {
		writtenChecksum := binary.BigEndian.Uint32(src[LogBlockSize-LogBlockTrlSize:])
		encKeyVersion := writtenChecksum - crc32.ChecksumIEEE(cipherBody)
		if encKeyVersion != tctx.KeyVersion {
			if resolver == nil {
				return cerrors.ErrDecryptFail.GenWithStackByArgs("log block was written under a different key version and no resolver was supplied")
			}
			k, v, err := resolver.KeyForVersion(encKeyVersion)
			if err != nil {
				return cerrors.ErrDecryptFail.GenWithStackByArgs(err.Error())
			}
			key, iv = k, v
		}
	} else {
		copy(dst[LogBlockSize-LogBlockTrlSize:], src[LogBlockSize-LogBlockTrlSize:])
	}

	plaintext, err := twoPassDecrypt(key, iv, cipherBody)
	if err != nil {
		return cerrors.ErrDecryptFail.GenWithStackByArgs(err.Error())
	}
	copy(dst[LogBlockHdrSize:LogBlockHdrSize+bodyLen], plaintext)
	if isKeyring(tctx.Mode) {
		binary.BigEndian.PutUint32(dst[LogBlockSize-LogBlockTrlSize:], crc32.ChecksumIEEE(dst[:LogBlockSize-LogBlockTrlSize]))
	}

	return nil
}
