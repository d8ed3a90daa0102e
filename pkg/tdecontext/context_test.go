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

package tdecontext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func key32(fill byte) []byte {
	b := make([]byte, KeySize)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestNewRejectsShortKeyMaterial(t *testing.T) {
	_, err := New(ModeAES, []byte{1, 2, 3}, key32(1), 0, 0, "")
	require.Error(t, err)
}

func TestNoneContextHasNoKeyMaterial(t *testing.T) {
	c := None()
	require.Equal(t, ModeNone, c.Mode)
	require.Nil(t, c.Key)
	c.Close() // must not panic on a key-less context
}

func TestCloseZeroizesKeyMaterial(t *testing.T) {
	c, err := New(ModeAES, key32(0xAA), key32(0xBB), 0, 0, "")
	require.NoError(t, err)

	c.Close()
	for _, b := range c.Key {
		require.Zero(t, b)
	}
	for _, b := range c.IV {
		require.Zero(t, b)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := New(ModeAES, key32(1), key32(2), 0, 0, "")
	require.NoError(t, err)
	c.Close()
	require.NotPanics(t, func() { c.Close() })
}

func TestWithRotatedKeyLeavesReceiverUntouched(t *testing.T) {
	original, err := New(ModeAES, key32(1), key32(2), 0, 0, "")
	require.NoError(t, err)

	rotated, err := original.WithRotatedKey(key32(3), key32(4), 9, 1, "uuid-9")
	require.NoError(t, err)

	require.Equal(t, ModeKeyringRotatingFromMaster, rotated.Mode)
	require.Equal(t, uint32(9), rotated.KeyVersion)
	require.Equal(t, ModeAES, original.Mode)
	require.Equal(t, key32(1), original.Key)
}

func TestModeStringIsStable(t *testing.T) {
	require.Equal(t, "none", ModeNone.String())
	require.Equal(t, "aes", ModeAES.String())
	require.Equal(t, "keyring", ModeKeyring.String())
	require.Equal(t, "keyring-rotating-from-master", ModeKeyringRotatingFromMaster.String())
}
