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
	"crypto/rand"
	"net/url"
	"strings"
	"sync"

	cloudkms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/percona/innodb-tde/pkg/config"
	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// GCPKMS is a Gateway that envelope-wraps locally-generated key material
// under a single Cloud KMS crypto key. Generate draws random bytes and
// encrypts them via KMS; Fetch decrypts the indexed ciphertext back to
// plaintext. Mirrors AWSKMS's envelope shape, generalized from the
// teacher's decrypt-only gcp_kms.go client.
type GCPKMS struct {
	cfg *config.GCPKMSConfig

	clientMu sync.Mutex
	client   *cloudkms.KeyManagementClient

	indexMu sync.RWMutex
	index   map[string][]byte // name -> KMS ciphertext
}

// NewGCPKMS returns a Gateway backed by Cloud KMS using cfg for endpoint
// and credential overrides.
func NewGCPKMS(cfg *config.GCPKMSConfig) *GCPKMS {
	return &GCPKMS{cfg: cfg, index: make(map[string][]byte)}
}

func (g *GCPKMS) getClient(ctx context.Context) (*cloudkms.KeyManagementClient, error) {
	g.clientMu.Lock()
	defer g.clientMu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	var opts []option.ClientOption
	if g.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(normalizeGCPEndpoint(g.cfg.Endpoint)))
	}
	if g.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.cfg.CredentialsFile))
	}
	if g.cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(g.cfg.CredentialsJSON)))
	}
	client, err := cloudkms.NewKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	g.client = client
	return client, nil
}

func normalizeGCPEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}
	return endpoint
}

// Generate implements Gateway.
func (g *GCPKMS) Generate(ctx context.Context, name string, _ KeyType, length int) error {
	g.indexMu.RLock()
	_, exists := g.index[name]
	g.indexMu.RUnlock()
	if exists {
		return nil
	}
	plaintext := make([]byte, length)
	if _, err := rand.Read(plaintext); err != nil {
		return cerrors.ErrKeyringUnavailable.GenWithStackByArgs(err.Error())
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return err
	}
	resp, err := client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      g.cfg.KeyName,
		Plaintext: plaintext,
	})
	if err != nil {
		log.Warn("gcp kms encrypt failed", zap.String("name", name), zap.Error(err))
		return cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	g.indexMu.Lock()
	g.index[name] = resp.Ciphertext
	g.indexMu.Unlock()
	return nil
}

// Fetch implements Gateway.
func (g *GCPKMS) Fetch(ctx context.Context, name string) ([]byte, KeyType, error) {
	g.indexMu.RLock()
	ciphertext, ok := g.index[name]
	g.indexMu.RUnlock()
	if !ok {
		return nil, "", cerrors.ErrKeyNotFound.GenWithStackByArgs(name)
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       g.cfg.KeyName,
		Ciphertext: ciphertext,
	})
	if err != nil {
		log.Warn("gcp kms decrypt failed", zap.String("name", name), zap.Error(err))
		return nil, "", cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	return resp.Plaintext, KeyTypeAES, nil
}

// Remove implements Gateway.
func (g *GCPKMS) Remove(_ context.Context, name string) error {
	g.indexMu.Lock()
	defer g.indexMu.Unlock()
	delete(g.index, name)
	return nil
}

// IsAlive implements Gateway.
func (g *GCPKMS) IsAlive(ctx context.Context) bool {
	return IsAlive(ctx, g, "percona_keyring_test")
}

var _ Gateway = (*GCPKMS)(nil)
