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
	"crypto/aes"
	"crypto/cipher"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// twoPassEncrypt implements the tail trick: the block-aligned prefix of
// plain is AES-256-CBC encrypted in one chained pass; if plain's length is
// not block-aligned, the final 2*AESBlockSize bytes (the end of the
// aligned prefix plus the raw residue) are re-encrypted as an independent
// CBC pass under the same key, restarting the chain from iv. This yields
// ciphertext the same length as plain for any length >= 2*AESBlockSize.
// Only the first AESBlockSize bytes of iv are used as the CBC IV. Do not
// replace with CTR or another chaining mode: on-disk compatibility depends
// on this exact scheme.
func twoPassEncrypt(key, iv, plain []byte) ([]byte, error) {
	if len(plain) < 2*AESBlockSize {
		return nil, cerrors.ErrEncryptFail.GenWithStackByArgs("data too short for two-pass cbc")
	}
	if len(iv) < AESBlockSize {
		return nil, cerrors.ErrEncryptFail.GenWithStackByArgs("iv shorter than one AES block")
	}
	iv = iv[:AESBlockSize]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cerrors.ErrEncryptFail.GenWithStackByArgs(err.Error())
	}

	chunkLen := (len(plain) / AESBlockSize) * AESBlockSize
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[:chunkLen], plain[:chunkLen])
	copy(out[chunkLen:], plain[chunkLen:])

	if remain := len(plain) - chunkLen; remain != 0 {
		trailerLen := 2 * AESBlockSize
		start := len(plain) - trailerLen
		tmp := make([]byte, trailerLen)
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(tmp, out[start:start+trailerLen])
		copy(out[start:start+trailerLen], tmp)
	}
	return out, nil
}

// twoPassDecrypt reverses twoPassEncrypt: the last 2*AESBlockSize bytes
// are decrypted first (independently, recovering the block-aligned
// ciphertext that pass one originally produced there, plus the final
// plaintext residue), then the full block-aligned prefix is decrypted with
// a fresh chained pass.
func twoPassDecrypt(key, iv, cipherText []byte) ([]byte, error) {
	if len(cipherText) < 2*AESBlockSize {
		return nil, cerrors.ErrDecryptFail.GenWithStackByArgs("data too short for two-pass cbc")
	}
	if len(iv) < AESBlockSize {
		return nil, cerrors.ErrDecryptFail.GenWithStackByArgs("iv shorter than one AES block")
	}
	iv = iv[:AESBlockSize]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cerrors.ErrDecryptFail.GenWithStackByArgs(err.Error())
	}

	chunkLen := (len(cipherText) / AESBlockSize) * AESBlockSize
	work := make([]byte, len(cipherText))
	copy(work, cipherText)

	if remain := len(cipherText) - chunkLen; remain != 0 {
		trailerLen := 2 * AESBlockSize
		start := len(cipherText) - trailerLen
		tmp := make([]byte, trailerLen)
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(tmp, cipherText[start:start+trailerLen])
		copy(work[start:start+trailerLen], tmp)
	}

	out := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out[:chunkLen], work[:chunkLen])
	if chunkLen < len(cipherText) {
		copy(out[chunkLen:], work[chunkLen:])
	}
	return out, nil
}
