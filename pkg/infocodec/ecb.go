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
	"crypto/aes"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// wrapECB AES-256-ECB "wraps" a block-aligned plaintext under a 32-byte
// master key. crypto/cipher has no ECB mode by design (it is unsafe for
// general-purpose use since identical plaintext blocks produce identical
// ciphertext blocks), but here it wraps exactly one always-random 64-byte
// {key ‖ iv} pair that never repeats, which is the one place the teacher's
// stack and the wider ecosystem agree ECB is an acceptable, deliberate
// choice (see DESIGN.md). We therefore drive aes.NewCipher's Block
// directly, one 16-byte block at a time, rather than reaching for a
// third-party ECB package that exists almost exclusively for this exact
// legacy-interop use case.
func wrapECB(masterKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, cerrors.ErrEncryptFail.GenWithStackByArgs(err.Error())
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, cerrors.ErrEncryptFail.GenWithStackByArgs("ecb wrap input is not block-aligned")
	}
	out := make([]byte, len(plaintext))
	for off := 0; off < len(plaintext); off += aes.BlockSize {
		block.Encrypt(out[off:off+aes.BlockSize], plaintext[off:off+aes.BlockSize])
	}
	return out, nil
}

// unwrapECB reverses wrapECB.
func unwrapECB(masterKey, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, cerrors.ErrDecryptFail.GenWithStackByArgs(err.Error())
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, cerrors.ErrDecryptFail.GenWithStackByArgs("ecb unwrap input is not block-aligned")
	}
	out := make([]byte, len(ciphertext))
	for off := 0; off < len(ciphertext); off += aes.BlockSize {
		block.Decrypt(out[off:off+aes.BlockSize], ciphertext[off:off+aes.BlockSize])
	}
	return out, nil
}
