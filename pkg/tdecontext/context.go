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

// Package tdecontext holds the per-tablespace EncryptionContext: the
// immutable, read-only-after-setup snapshot that pkg/cryptor consults on
// every page and log block. A Context is created once by the tablespace
// open path and published to I/O workers; rotation replaces it with a new
// Context rather than mutating the old one in place, so a worker mid-crypt
// never observes a half-updated key.
package tdecontext

import cerrors "github.com/percona/innodb-tde/pkg/errors"

// Mode is the encryption state machine for one tablespace.
type Mode int

const (
	// ModeNone means the tablespace carries no encryption at all. The
	// cryptor's EncryptPage, EncryptLogBlock and DecryptPage reject a
	// ModeNone context; DecryptLogBlock passes a block whose encrypted
	// bit is clear through unchanged.
	ModeNone Mode = iota
	// ModeAES is master-key mode (ENCRYPTION='Y'): pages are wrapped
	// directly under the current master key's tablespace key, with no
	// key version stamped.
	ModeAES
	// ModeKeyring is percona keyring mode (ENCRYPTION='KEYRING'): pages
	// carry a non-zero FIL_PAGE_ENCRYPTION_KEY_VERSION and the system key
	// backing them is independently versioned and rotatable.
	ModeKeyring
	// ModeKeyringRotatingFromMaster is a transient state entered by
	// ALTER INSTANCE ROTATE INNODB MASTER KEY when migrating a tablespace
	// that was previously in ModeAES into keyring-tracked versioning. New
	// writes of FIL_PAGE_COMPRESSED and zip-compressed pages stamp a CRC32
	// of the ciphertext in their 8-byte key-version reservation (see
	// cryptor.EncryptPage); other pages carry no such CRC.
	ModeKeyringRotatingFromMaster
)

// String implements fmt.Stringer for logging.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeAES:
		return "aes"
	case ModeKeyring:
		return "keyring"
	case ModeKeyringRotatingFromMaster:
		return "keyring-rotating-from-master"
	default:
		return "unknown"
	}
}

// KeySize is the width, in bytes, of a tablespace key and of its IV.
const KeySize = 32

// Context is the immutable per-tablespace encryption state. Zero value is
// a valid ModeNone context.
type Context struct {
	Mode Mode

	// Key and IV back AES-256-CBC for every page/log block belonging to
	// this tablespace. Both are KeySize bytes; empty in ModeNone.
	Key []byte
	IV  []byte

	// KeyVersion identifies which versioned system key Key/IV came from,
	// in ModeKeyring and ModeKeyringRotatingFromMaster. Zero means "no
	// version", which is only valid together with ModeNone or ModeAES.
	KeyVersion uint32

	// KeyID and UUID identify the system/master key Key/IV were unwrapped
	// from, for diagnostics and for re-fetching a specific key version on
	// the log decrypt path.
	KeyID uint32
	UUID  string

	// closed guards against double-zeroization.
	closed bool
}

// New builds a Context for the given mode and key material. The caller
// transfers ownership of key/iv to the Context; neither slice should be
// reused by the caller afterward.
func New(mode Mode, key, iv []byte, keyVersion, keyID uint32, uuid string) (*Context, error) {
	if mode != ModeNone {
		if len(key) != KeySize || len(iv) != KeySize {
			return nil, cerrors.ErrInvariantViolation.GenWithStackByArgs(
				"tablespace key and iv must each be 32 bytes")
		}
	}
	return &Context{
		Mode:       mode,
		Key:        key,
		IV:         iv,
		KeyVersion: keyVersion,
		KeyID:      keyID,
		UUID:       uuid,
	}, nil
}

// None returns a new "no encryption" context. It has no key material to
// zeroize so it is safe to reuse across tablespaces.
func None() *Context {
	return &Context{Mode: ModeNone}
}

// WithRotatedKey returns a new Context in ModeKeyringRotatingFromMaster
// carrying newKey/newIV/newVersion, leaving the receiver untouched. This
// implements the "write-then-publish of a new immutable context" rotation
// pattern: callers swap the tablespace handle's pointer to the returned
// Context and then Close() the old one once no in-flight crypt call can
// still observe it.
func (c *Context) WithRotatedKey(newKey, newIV []byte, newVersion, newKeyID uint32, newUUID string) (*Context, error) {
	return New(ModeKeyringRotatingFromMaster, newKey, newIV, newVersion, newKeyID, newUUID)
}

// Close zeroizes the key material. It is idempotent and safe to call on a
// ModeNone context.
func (c *Context) Close() {
	if c == nil || c.closed {
		return
	}
	zero(c.Key)
	zero(c.IV)
	c.closed = true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// RedoKeyVersionResolver is consulted by the log block decrypt path when
// the version stamped in a cipher block's checksum differs from the
// Context's loaded KeyVersion. It is the "redo-log key manager" of
// spec §4.5: an external collaborator, not owned by this package.
type RedoKeyVersionResolver interface {
	// KeyForVersion returns the tablespace key and iv for a specific
	// historical key version of this tablespace, so an older log block
	// can still be decrypted after the tablespace has rotated forward.
	KeyForVersion(version uint32) (key, iv []byte, err error)
}
