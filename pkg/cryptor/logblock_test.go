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
	"errors"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/percona/innodb-tde/pkg/tdecontext"
)

// newLogBlock returns a plaintext log block filled with fill, with the
// encrypted bit clear and the trailer holding the block's own checksum.
func newLogBlock(fill byte) []byte {
	block := make([]byte, LogBlockSize)
	for i := range block {
		block[i] = fill
	}
	hdrNo := binary.BigEndian.Uint32(block[logBlockHdrNoOffset : logBlockHdrNoOffset+4])
	binary.BigEndian.PutUint32(block[logBlockHdrNoOffset:logBlockHdrNoOffset+4], hdrNo&^logBlockEncryptBit)
	binary.BigEndian.PutUint32(block[LogBlockSize-LogBlockTrlSize:], crc32.ChecksumIEEE(block[:LogBlockSize-LogBlockTrlSize]))
	return block
}

func TestEncryptDecryptLogBlockAESRoundTrip(t *testing.T) {
	tctx, err := tdecontext.New(tdecontext.ModeAES, fill32(0x10), fill32(0x20), 0, 0, "")
	require.NoError(t, err)

	src := newLogBlock(0x5A)
	dst := make([]byte, LogBlockSize)
	require.NoError(t, EncryptLogBlock(tctx, src, dst))

	require.Equal(t, src[4:LogBlockHdrSize], dst[4:LogBlockHdrSize])
	hdrNo := binary.BigEndian.Uint32(dst[:4])
	require.NotZero(t, hdrNo&logBlockEncryptBit)
	require.Equal(t, src[LogBlockSize-LogBlockTrlSize:], dst[LogBlockSize-LogBlockTrlSize:])

	restored := make([]byte, LogBlockSize)
	require.NoError(t, DecryptLogBlock(tctx, dst, restored, nil))
	require.Equal(t, src, restored)

	restoredHdrNo := binary.BigEndian.Uint32(restored[:4])
	require.Zero(t, restoredHdrNo&logBlockEncryptBit)
}

func TestDecryptLogBlockPassthroughWhenNotEncrypted(t *testing.T) {
	tctx, err := tdecontext.New(tdecontext.ModeAES, fill32(0x01), fill32(0x02), 0, 0, "")
	require.NoError(t, err)

	src := newLogBlock(0x7E)
	dst := make([]byte, LogBlockSize)
	require.NoError(t, DecryptLogBlock(tctx, src, dst, nil))
	require.Equal(t, src, dst)
}

func TestEncryptLogBlockKeyringStampsVersionedChecksum(t *testing.T) {
	tctx, err := tdecontext.New(tdecontext.ModeKeyring, fill32(0x30), fill32(0x40), 5, 1, "u")
	require.NoError(t, err)

	src := newLogBlock(0x9C)
	dst := make([]byte, LogBlockSize)
	require.NoError(t, EncryptLogBlock(tctx, src, dst))

	bodyEnd := LogBlockSize - LogBlockTrlSize
	require.Equal(t, crc32.ChecksumIEEE(dst[LogBlockHdrSize:bodyEnd])+5, binary.BigEndian.Uint32(dst[bodyEnd:]))

	restored := make([]byte, LogBlockSize)
	require.NoError(t, DecryptLogBlock(tctx, dst, restored, nil))
	require.Equal(t, src, restored)
}

// S6: a block encrypted under key_version=5 must still decrypt when the
// reader's context is initialized to a different current version, by
// consulting the resolver for the stale version recovered from the
// checksum discrepancy.
func TestDecryptLogBlockRecoversStaleKeyVersion(t *testing.T) {
	oldKey, oldIV := fill32(0x50), fill32(0x60)
	newKey, newIV := fill32(0x70), fill32(0x80)

	writerCtx, err := tdecontext.New(tdecontext.ModeKeyring, oldKey, oldIV, 5, 1, "u")
	require.NoError(t, err)

	src := newLogBlock(0xA1)
	dst := make([]byte, LogBlockSize)
	require.NoError(t, EncryptLogBlock(writerCtx, src, dst))

	readerCtx, err := tdecontext.New(tdecontext.ModeKeyring, newKey, newIV, 3, 1, "u")
	require.NoError(t, err)

	resolver := &resolverTable{byVersion: map[uint32][2][]byte{
		5: {oldKey, oldIV},
	}}

	restored := make([]byte, LogBlockSize)
	require.NoError(t, DecryptLogBlock(readerCtx, dst, restored, resolver))
	require.Equal(t, src, restored)
}

type resolverTable struct {
	byVersion map[uint32][2][]byte
}

func (r *resolverTable) KeyForVersion(version uint32) ([]byte, []byte, error) {
	pair, ok := r.byVersion[version]
	if !ok {
		return nil, nil, errResolverMiss
	}
	return pair[0], pair[1], nil
}

var errResolverMiss = errors.New("resolver: no key for version")
