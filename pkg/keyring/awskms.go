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
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssdkconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awskms "github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/percona/innodb-tde/pkg/config"
	cerrors "github.com/percona/innodb-tde/pkg/errors"
)

// AWSKMS is a Gateway that envelope-wraps every key under a single AWS KMS
// customer master key. Generate asks KMS for a new data key and remembers
// its ciphertext blob under name; Fetch asks KMS to decrypt that blob back
// to plaintext. Name->ciphertext mappings live in an in-memory index, since
// KMS itself has no notion of "named" data keys; a real deployment is
// expected to pair this backend with durable storage for that index (the
// File backend's on-disk map is a natural fit and is wired the same way the
// teacher wires its KMS client cache).
type AWSKMS struct {
	cfg *config.AWSKMSConfig

	clientMu sync.Mutex
	client   *awskms.Client

	indexMu sync.RWMutex
	index   map[string][]byte // name -> KMS ciphertext blob
}

// NewAWSKMS returns a Gateway backed by AWS KMS using cfg for region,
// endpoint and credential overrides.
func NewAWSKMS(cfg *config.AWSKMSConfig) *AWSKMS {
	return &AWSKMS{cfg: cfg, index: make(map[string][]byte)}
}

func (g *AWSKMS) getClient(ctx context.Context) (*awskms.Client, error) {
	g.clientMu.Lock()
	defer g.clientMu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	opts := []func(*awssdkconfig.LoadOptions) error{}
	if g.cfg.Region != "" {
		opts = append(opts, awssdkconfig.WithRegion(g.cfg.Region))
	}
	if g.cfg.Profile != "" {
		opts = append(opts, awssdkconfig.WithSharedConfigProfile(g.cfg.Profile))
	}
	if g.cfg.AccessKey != "" {
		opts = append(opts, awssdkconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(g.cfg.AccessKey, g.cfg.SecretAccessKey, g.cfg.SessionToken),
		))
	}
	if g.cfg.Endpoint != "" {
		endpointURL := normalizeAWSEndpoint(g.cfg.Endpoint)
		region := g.cfg.Region
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
			if service != awskms.ServiceID {
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}
			return aws.Endpoint{URL: endpointURL, SigningRegion: region, HostnameImmutable: true}, nil
		})
		opts = append(opts, awssdkconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awssdkconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	g.client = awskms.NewFromConfig(awsCfg)
	return g.client, nil
}

func normalizeAWSEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// Generate implements Gateway by requesting a new data key from KMS and
// indexing its ciphertext blob under name.
func (g *AWSKMS) Generate(ctx context.Context, name string, _ KeyType, length int) error {
	g.indexMu.RLock()
	_, exists := g.index[name]
	g.indexMu.RUnlock()
	if exists {
		return nil
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return err
	}
	out, err := client.GenerateDataKey(ctx, &awskms.GenerateDataKeyInput{
		KeyId:         aws.String(g.cfg.KeyID),
		NumberOfBytes: aws.Int32(int32(length)),
	})
	if err != nil {
		log.Warn("aws kms generate data key failed", zap.String("name", name), zap.Error(err))
		return cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	g.indexMu.Lock()
	g.index[name] = out.CiphertextBlob
	g.indexMu.Unlock()
	return nil
}

// Fetch implements Gateway by decrypting the ciphertext blob indexed under
// name back to plaintext via KMS.
func (g *AWSKMS) Fetch(ctx context.Context, name string) ([]byte, KeyType, error) {
	g.indexMu.RLock()
	blob, ok := g.index[name]
	g.indexMu.RUnlock()
	if !ok {
		return nil, "", cerrors.ErrKeyNotFound.GenWithStackByArgs(name)
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, "", err
	}
	input := &awskms.DecryptInput{CiphertextBlob: blob}
	if g.cfg.KeyID != "" {
		input.KeyId = aws.String(g.cfg.KeyID)
	}
	out, err := client.Decrypt(ctx, input)
	if err != nil {
		log.Warn("aws kms decrypt failed", zap.String("name", name), zap.Error(err))
		return nil, "", cerrors.ErrKeyringUnavailable.Wrap(err)
	}
	return out.Plaintext, KeyTypeAES, nil
}

// Remove implements Gateway.
func (g *AWSKMS) Remove(_ context.Context, name string) error {
	g.indexMu.Lock()
	defer g.indexMu.Unlock()
	delete(g.index, name)
	return nil
}

// IsAlive implements Gateway.
func (g *AWSKMS) IsAlive(ctx context.Context) bool {
	return IsAlive(ctx, g, "percona_keyring_test")
}

var _ Gateway = (*AWSKMS)(nil)
