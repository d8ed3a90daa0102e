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

package keyring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryGenerateFetchRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Generate(ctx, "k1", KeyTypeAES, 32))
	bytes1, typ, err := m.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.Len(t, bytes1, 32)
	require.Equal(t, KeyTypeAES, typ)
}

func TestMemoryGenerateDoesNotOverwriteExisting(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Generate(ctx, "k1", KeyTypeAES, 32))
	first, _, err := m.Fetch(ctx, "k1")
	require.NoError(t, err)

	require.NoError(t, m.Generate(ctx, "k1", KeyTypeAES, 32))
	second, _, err := m.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestMemoryFetchMissingReturnsError(t *testing.T) {
	m := NewMemory()
	_, _, err := m.Fetch(context.Background(), "missing")
	require.Error(t, err)
}

func TestMemoryRemoveThenFetchFails(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Generate(ctx, "k1", KeyTypeAES, 32))
	require.NoError(t, m.Remove(ctx, "k1"))
	_, _, err := m.Fetch(ctx, "k1")
	require.Error(t, err)
}

func TestMemoryRemoveOfMissingKeyIsNotError(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Remove(context.Background(), "never-existed"))
}

func TestMemoryIsAlive(t *testing.T) {
	m := NewMemory()
	require.True(t, m.IsAlive(context.Background()))
}

func TestMemoryPutSeedsDeterministicMaterial(t *testing.T) {
	m := NewMemory()
	seed := []byte{1, 2, 3, 4}
	m.Put("seeded", seed, KeyTypeAES)

	got, typ, err := m.Fetch(context.Background(), "seeded")
	require.NoError(t, err)
	require.Equal(t, seed, got)
	require.Equal(t, KeyTypeAES, typ)
}
