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

//go:build !(darwin && cgo)

package keyring

import cerrors "github.com/percona/innodb-tde/pkg/errors"

func newKeychainGateway() (Gateway, error) {
	return nil, cerrors.ErrUnsupportedMode.GenWithStackByArgs("keychain backend requires darwin+cgo build")
}
