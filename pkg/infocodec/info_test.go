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
	"errors"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeMasterKeyProvider is a hand-written fake, not a mocking framework,
// matching the teacher's mockMetaManager pattern.
type fakeMasterKeyProvider struct {
	keys        map[uint32][]byte
	uuid        string
	currentID   uint32
	createCalls int
}

func newFakeProvider(uuid string) *fakeMasterKeyProvider {
	return &fakeMasterKeyProvider{keys: make(map[uint32][]byte), uuid: uuid}
}

func (f *fakeMasterKeyProvider) GetOrCreateMasterKey(ctx context.Context) (uint32, []byte, error) {
	f.createCalls++
	if f.currentID == 0 {
		f.currentID = 1
		f.keys[1] = bytes32('K')
	}
	return f.currentID, f.keys[f.currentID], nil
}

func (f *fakeMasterKeyProvider) GetMasterKey(ctx context.Context, id uint32, uuid string) ([]byte, error) {
	key, ok := f.keys[id]
	if !ok {
		return nil, errNotFound
	}
	return key, nil
}

func (f *fakeMasterKeyProvider) CurrentUUID() string { return f.uuid }

func (f *fakeMasterKeyProvider) AdvanceForDecode(id uint32, uuid string) {
	if id > f.currentID {
		f.currentID = id
		f.uuid = uuid
	}
}

var errNotFound = errors.New("master key not found")

func bytes32(fill byte) []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	provider := newFakeProvider("00000000-0000-0000-0000-000000000001")
	tsKey := bytes32(0xAB)
	iv := bytes32(0xCD)

	blob, err := Encode(context.Background(), provider, provider.uuid, tsKey, iv, false, true)
	require.NoError(t, err)
	require.Len(t, blob, Size)
	require.Equal(t, MagicV3, string(blob[0:MagicSize]))

	key, decIV, err := Decode(context.Background(), provider, blob, true, false)
	require.NoError(t, err)
	require.Equal(t, tsKey, key)
	require.Equal(t, iv, decIV)
}

func TestEncodeBootstrapUsesDefaultMasterKey(t *testing.T) {
	provider := newFakeProvider("")
	tsKey := bytes32(0x11)
	iv := bytes32(0x22)

	blob, err := Encode(context.Background(), provider, "", tsKey, iv, true, true)
	require.NoError(t, err)
	id := binary.BigEndian.Uint32(blob[MagicSize : MagicSize+4])
	require.Zero(t, id)
	require.Equal(t, 0, provider.createCalls)

	key, decIV, err := Decode(context.Background(), provider, blob, true, false)
	require.NoError(t, err)
	require.Equal(t, tsKey, key)
	require.Equal(t, iv, decIV)
}

func TestDecodeCRCMismatchIsInfoCorrupt(t *testing.T) {
	provider := newFakeProvider("00000000-0000-0000-0000-000000000002")
	tsKey := bytes32(0x01)
	iv := bytes32(0x02)

	blob, err := Encode(context.Background(), provider, provider.uuid, tsKey, iv, false, true)
	require.NoError(t, err)

	wrappedOff := MagicSize + 4 + ServerUUIDLen
	blob[wrappedOff] ^= 0x01

	_, _, err = Decode(context.Background(), provider, blob, true, false)
	require.Error(t, err)
}

func TestDecodeAdvancesCurrentMasterKeyID(t *testing.T) {
	writer := newFakeProvider("00000000-0000-0000-0000-000000000003")
	tsKey := bytes32(0x33)
	iv := bytes32(0x44)
	blob, err := Encode(context.Background(), writer, writer.uuid, tsKey, iv, false, true)
	require.NoError(t, err)

	reader := newFakeProvider("")
	reader.keys[1] = writer.keys[1]
	require.Zero(t, reader.currentID)

	_, _, err = Decode(context.Background(), reader, blob, true, false)
	require.NoError(t, err)
	require.Equal(t, uint32(1), reader.currentID)
	require.Equal(t, writer.uuid, reader.uuid)
}

func TestUnrecognizedMagicNoOpDuringRecovery(t *testing.T) {
	provider := newFakeProvider("uuid")
	blob := make([]byte, Size)
	copy(blob[0:MagicSize], "zzz")

	key, iv, err := Decode(context.Background(), provider, blob, true, true)
	require.NoError(t, err)
	require.Nil(t, key)
	require.Nil(t, iv)

	_, _, err = Decode(context.Background(), provider, blob, true, false)
	require.Error(t, err)
}

func TestLegacyV1RoundTrip(t *testing.T) {
	provider := newFakeProvider("")
	masterKey := bytes32(0x77)
	provider.keys[7] = masterKey

	tsKey := bytes32(0x88)
	iv := bytes32(0x99)
	plain := append(append([]byte{}, tsKey...), iv...)
	wrapped, err := wrapECB(masterKey, plain)
	require.NoError(t, err)

	blob := make([]byte, LegacyV1Size)
	copy(blob[0:MagicSize], MagicV1)
	binary.BigEndian.PutUint32(blob[MagicSize:MagicSize+4], 7)
	// legacyPadLen zero bytes already present from make()
	off := MagicSize + 4 + legacyPadLen
	copy(blob[off:off+KeyIVLen], wrapped)
	crc := crc32.ChecksumIEEE(plain)
	binary.BigEndian.PutUint32(blob[off+KeyIVLen:off+KeyIVLen+CRCLen], crc)

	key, decIV, err := Decode(context.Background(), provider, blob, true, false)
	require.NoError(t, err)
	require.Equal(t, tsKey, key)
	require.Equal(t, iv, decIV)
	// V1 decode never touches current_uuid (legacy read-only decision).
	require.Equal(t, "", provider.uuid)
}
