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

// Package errors defines the RFC-coded error taxonomy for the encryption
// core. Every error a caller can observe from pkg/keyring, pkg/masterkey,
// pkg/infocodec, pkg/tdecontext or pkg/cryptor is one of the values below.
package errors

import "github.com/pingcap/errors"

// RFC error classes for the encryption core. Error message templates use
// %s/%v verbs consumed by GenWithStackByArgs.
var (
	// ErrKeyringUnavailable is returned when the configured Keyring Gateway
	// backend could not be reached or returned an unexpected failure.
	ErrKeyringUnavailable = errors.Normalize(
		"keyring unavailable: %s",
		errors.RFCCodeText("TDE:ErrKeyringUnavailable"),
	)

	// ErrKeyNotFound is returned when a named key does not exist in the
	// keyring.
	ErrKeyNotFound = errors.Normalize(
		"key not found: %s",
		errors.RFCCodeText("TDE:ErrKeyNotFound"),
	)

	// ErrInfoCorrupt is returned when an EncryptionInfo or
	// RedoLogEncryptionInfo blob fails its magic or CRC check.
	ErrInfoCorrupt = errors.Normalize(
		"encryption info corrupt: %s",
		errors.RFCCodeText("TDE:ErrInfoCorrupt"),
	)

	// ErrEncryptFail is returned when a page or log block fails to encrypt.
	ErrEncryptFail = errors.Normalize(
		"encrypt failed: %s",
		errors.RFCCodeText("TDE:ErrEncryptFail"),
	)

	// ErrDecryptFail is returned when a page or log block fails to decrypt.
	ErrDecryptFail = errors.Normalize(
		"decrypt failed: %s",
		errors.RFCCodeText("TDE:ErrDecryptFail"),
	)

	// ErrUnsupportedMode is returned when an operation is attempted against
	// an EncryptionContext whose mode does not support it.
	ErrUnsupportedMode = errors.Normalize(
		"unsupported encryption mode: %s",
		errors.RFCCodeText("TDE:ErrUnsupportedMode"),
	)

	// ErrInvariantViolation is returned when a caller violates a documented
	// precondition, e.g. encrypting an already-encrypted page.
	ErrInvariantViolation = errors.Normalize(
		"invariant violation: %s",
		errors.RFCCodeText("TDE:ErrInvariantViolation"),
	)
)
