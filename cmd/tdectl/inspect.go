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

package main

import (
	"context"

	"github.com/percona/innodb-tde/pkg/infocodec"
	"github.com/percona/innodb-tde/pkg/masterkey"
)

// inspectBlob decodes an EncryptionInfo blob using mgr to resolve whichever
// master key the blob's magic and master_key_id point at. decrypt controls
// whether the wrapped region is actually AES-ECB unwrapped, or merely CRC
// checked against the ciphertext bytes the caller already has on hand.
func inspectBlob(ctx context.Context, mgr *masterkey.Manager, blob []byte, decrypt bool) (key, iv []byte, err error) {
	return infocodec.Decode(ctx, mgr, blob, decrypt, false)
}
