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

// Package cryptor is the hot path of the encryption core: it transforms a
// single data page or redo-log block between plaintext and ciphertext in
// place, using AES-256-CBC with a two-pass tail trick for data lengths
// that are not a multiple of the AES block size. Every offset and magic
// number below is part of the on-disk format; changing one breaks every
// page and log block written under the old value. Grounded on
// original_source/storage/innobase/os/os0enc.cc.
package cryptor

import "crypto/aes"

// Page header field offsets, counted from the start of the page.
const (
	// FilPageType is the 2-byte page type discriminator.
	FilPageType = 24
	// FilPageLSN is the 8-byte log sequence number stamped on every page.
	FilPageLSN = 16
	// FilPageData is where the page header ends and the page's own data
	// region begins; also the offset FIL_PAGE_COMPRESS_SIZE_V1 and (for
	// keyring mode, non-zip) FIL_PAGE_ENCRYPTION_KEY_VERSION are read at.
	FilPageData = 38
	// FilPageOriginalTypeV1 stores the pre-encryption page type so
	// decrypt can restore it; unused for FIL_PAGE_COMPRESSED sources,
	// whose compression record already retains the original type.
	FilPageOriginalTypeV1 = 54
	// FilPageEncryptionKeyVersion is where the non-zero keyring-mode key
	// version is stamped; aliases FilPageData, the first 4 bytes of the
	// page's data region.
	FilPageEncryptionKeyVersion = FilPageData
	// FilPageCompressSizeV1 is the 2-byte stored-compressed-length field
	// for FIL_PAGE_COMPRESSED source pages.
	FilPageCompressSizeV1 = FilPageData
	// FilPageEndLSNOldChksum is the width of the page trailer.
	FilPageEndLSNOldChksum = 8
	// TrailingLSNMirrorLen is the width of the unencrypted duplicate of
	// the low 4 bytes of FIL_PAGE_LSN that keyring mode leaves at the very
	// end of a non-zip page.
	TrailingLSNMirrorLen = 4
)

// Page type discriminators.
const (
	FilPageRTree                  = 3
	FilPageCompressed             = 14
	FilPageEncrypted              = 15
	FilPageCompressedAndEncrypted = 16
	FilPageEncryptedRTree         = 17
)

// AESBlockSize is the AES block width the two-pass tail trick is built
// around; CBC demands block-aligned input, and pages/log blocks are not
// always block-aligned modulo this constant.
const AESBlockSize = aes.BlockSize

// MinEncryptionLen is two AES blocks (room for the tail trick's
// re-encrypted window) plus the page header. EncryptPage and DecryptPage
// do not consult it: they only require the data region to be at least
// 2*AESBlockSize bytes, and a shorter compressed payload is rejected
// rather than padded up to this length.
const MinEncryptionLen = 2*AESBlockSize + FilPageData

// Log block layout. A log block is a fixed OS_FILE_LOG_BLOCK_SIZE unit.
const (
	LogBlockSize    = 512
	LogBlockHdrSize = 12
	LogBlockTrlSize = 4

	// logBlockHdrNoOffset holds the block's sequence number; the top bit
	// doubles as the "this block is encrypted" flag, mirroring the
	// teacher stack's bit-packed header fields.
	logBlockHdrNoOffset = 0
	logBlockEncryptBit  = uint32(1) << 31

	// RedoLogEncryptNoVersion marks "this block carries no key-version
	// delta", i.e. it was encrypted with the context's current version.
	RedoLogEncryptNoVersion = 0
)

// isEncryptedPageType reports whether pt is one of the three encrypted
// page-type discriminators.
func isEncryptedPageType(pt uint16) bool {
	return pt == FilPageEncrypted || pt == FilPageEncryptedRTree || pt == FilPageCompressedAndEncrypted
}
