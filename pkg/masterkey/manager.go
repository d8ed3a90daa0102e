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

// Package masterkey implements the process-wide master key lifecycle: lazy
// first-key creation, fetch-by-id, rotation, and a keyring liveness probe.
// All state lives behind a single mutex-guarded Manager value; there is no
// package-level mutable global.
package masterkey

import (
	"context"
	"sync"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	cerrors "github.com/percona/innodb-tde/pkg/errors"
	"github.com/percona/innodb-tde/pkg/keyname"
	"github.com/percona/innodb-tde/pkg/keyring"
)

// Manager owns the process-wide current_master_key_id/current_uuid pair
// and mediates every master key creation, fetch and rotation.
type Manager struct {
	gw       keyring.Gateway
	serverID uint64

	mu               sync.Mutex
	currentID        uint32
	currentUUID      string
	serverUUIDPrefix string // the uuid used to name the *next* generated key
}

// NewManager returns a Manager with no master key yet created
// (current_master_key_id == keyname.DefaultMasterKeyID). serverUUID is the
// uuid new keys are scoped under; serverID is consulted only for the
// legacy 5.7.11 name fallback.
func NewManager(gw keyring.Gateway, serverUUID string, serverID uint64) *Manager {
	return &Manager{
		gw:               gw,
		serverID:         serverID,
		serverUUIDPrefix: serverUUID,
	}
}

// CurrentMasterKeyID returns the current process-wide master key id without
// touching the keyring.
func (m *Manager) CurrentMasterKeyID() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// CurrentUUID returns the uuid the current master key is scoped under.
func (m *Manager) CurrentUUID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentUUID
}

// GetOrCreateMasterKey returns the current master key, generating the
// first one (id 1) if none has ever been created on this instance.
func (m *Manager) GetOrCreateMasterKey(ctx context.Context) (uint32, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentID == keyname.DefaultMasterKeyID {
		name, err := keyname.MasterKeyName(m.serverUUIDPrefix, 1)
		if err != nil {
			return 0, nil, err
		}
		if err := m.gw.Generate(ctx, name, keyring.KeyTypeAES, 32); err != nil {
			return 0, nil, cerrors.ErrKeyringUnavailable.Wrap(err)
		}
		key, _, err := m.gw.Fetch(ctx, name)
		if err != nil {
			return 0, nil, cerrors.ErrKeyringUnavailable.Wrap(err)
		}
		m.currentID = 1
		m.currentUUID = m.serverUUIDPrefix
		return m.currentID, key, nil
	}

	name, err := keyname.MasterKeyName(m.currentUUID, m.currentID)
	if err != nil {
		return 0, nil, err
	}
	key, _, err := m.gw.Fetch(ctx, name)
	if err != nil {
		legacyName, lerr := keyname.LegacyMasterKeyName(m.serverID, m.currentID)
		if lerr != nil {
			return 0, nil, cerrors.ErrKeyringUnavailable.Wrap(err)
		}
		key, _, err = m.gw.Fetch(ctx, legacyName)
		if err != nil {
			log.Warn("master key fetch failed on both uuid and legacy names",
				zap.Uint32("masterKeyID", m.currentID), zap.String("uuid", m.currentUUID))
			return 0, nil, cerrors.ErrKeyringUnavailable.Wrap(err)
		}
	}
	return m.currentID, key, nil
}

// GetMasterKey fetches a specific master key by id and uuid. An empty uuid
// triggers the legacy server_id-scoped name.
func (m *Manager) GetMasterKey(ctx context.Context, id uint32, uuid string) ([]byte, error) {
	if id == keyname.DefaultMasterKeyID {
		return []byte(keyname.DefaultMasterKey), nil
	}
	var name string
	var err error
	if uuid == "" {
		name, err = keyname.LegacyMasterKeyName(m.serverID, id)
	} else {
		name, err = keyname.MasterKeyName(uuid, id)
	}
	if err != nil {
		return nil, err
	}
	key, _, ferr := m.gw.Fetch(ctx, name)
	if ferr != nil {
		return nil, cerrors.ErrKeyringUnavailable.Wrap(ferr)
	}
	return key, nil
}

// Rotate generates a new master key one id past the current one, confirms
// it was written, then advances current_master_key_id. The id never
// rewinds: a failure after generation but before the confirming fetch
// leaves the old id in effect.
func (m *Manager) Rotate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nextID := m.currentID + 1
	name, err := keyname.MasterKeyName(m.serverUUIDPrefix, nextID)
	if err != nil {
		return err
	}
	if err := m.gw.Generate(ctx, name, keyring.KeyTypeAES, 32); err != nil {
		return cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	if _, _, err := m.gw.Fetch(ctx, name); err != nil {
		return cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	m.currentID = nextID
	m.currentUUID = m.serverUUIDPrefix
	log.Info("master key rotated", zap.Uint32("masterKeyID", m.currentID))
	return nil
}

// CheckAlive probes the keyring: if no master key has ever been created it
// runs the generate/fetch/remove dummy-key dance; otherwise it fetches the
// current master key.
func (m *Manager) CheckAlive(ctx context.Context) bool {
	m.mu.Lock()
	id := m.currentID
	m.mu.Unlock()

	if id == keyname.DefaultMasterKeyID {
		return m.gw.IsAlive(ctx)
	}
	_, err := m.GetMasterKey(ctx, id, m.CurrentUUID())
	return err == nil
}

// AdvanceForDecode is called by the info codec after decoding a blob whose
// master_key_id is greater than the currently known one, catching the
// process-wide state up after a restart. It never rewinds.
func (m *Manager) AdvanceForDecode(id uint32, uuid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id > m.currentID {
		m.currentID = id
		m.currentUUID = uuid
	}
}
