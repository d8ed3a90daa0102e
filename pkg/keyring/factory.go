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
	"runtime"

	"github.com/percona/innodb-tde/pkg/config"
	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// New builds the Gateway selected by cfg.Backend.
func New(cfg *config.KeyringConfig) (Gateway, error) {
	switch cfg.Backend {
	case config.KeyringBackendMemory:
		return NewMemory(), nil
	case config.KeyringBackendFile:
		return NewFile(cfg.FilePath), nil
	case config.KeyringBackendAWSKMS:
		return NewAWSKMS(cfg.KMS.AWS), nil
	case config.KeyringBackendGCPKMS:
		return NewGCPKMS(cfg.KMS.GCP), nil
	case config.KeyringBackendKeychain:
		if runtime.GOOS != "darwin" {
			return nil, cerrors.ErrUnsupportedMode.GenWithStackByArgs("keychain backend is only available on darwin")
		}
		return newKeychainGateway()
	default:
		return nil, cerrors.ErrUnsupportedMode.GenWithStackByArgs(string(cfg.Backend))
	}
}
