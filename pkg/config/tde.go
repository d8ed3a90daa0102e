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

// Package config holds the TOML-decodable configuration surface for the
// transparent data encryption core: which keyring backend to talk to, the
// server identity keys are scoped under, and per-vendor KMS overrides.
package config

import (
	"time"

	"github.com/pingcap/errors"
)

// EncryptionMode selects the per-tablespace encryption state at create time.
type EncryptionMode string

const (
	// EncryptionModeNone disables encryption for new tablespaces.
	EncryptionModeNone EncryptionMode = "N"
	// EncryptionModeMasterKey encrypts new tablespaces with the current
	// master key (AES mode).
	EncryptionModeMasterKey EncryptionMode = "Y"
	// EncryptionModeKeyring encrypts new tablespaces with a versioned
	// percona-system key (KEYRING mode).
	EncryptionModeKeyring EncryptionMode = "KEYRING"
)

// KeyringBackend selects which Gateway implementation the process uses.
type KeyringBackend string

const (
	KeyringBackendMemory   KeyringBackend = "memory"
	KeyringBackendFile     KeyringBackend = "file"
	KeyringBackendAWSKMS   KeyringBackend = "aws-kms"
	KeyringBackendGCPKMS   KeyringBackend = "gcp-kms"
	KeyringBackendKeychain KeyringBackend = "keychain"
)

// TDEConfig is the top-level configuration for the encryption core.
type TDEConfig struct {
	// EncryptionMode is the default mode new tablespaces are created in.
	EncryptionMode EncryptionMode `toml:"encryption-mode" json:"encryption_mode"`

	// ServerUUID scopes every keyring name this process creates. Changing
	// it orphans keys created under the previous value.
	ServerUUID string `toml:"server-uuid" json:"server_uuid"`

	// ServerID is consulted only for the legacy 5.7.11 master key name
	// fallback; it has no effect on new key creation.
	ServerID uint64 `toml:"server-id" json:"server_id"`

	// Keyring selects and configures the Keyring Gateway backend.
	Keyring *KeyringConfig `toml:"keyring" json:"keyring"`

	// AllowDegradeOnError permits tablespace open paths to fall back to
	// unencrypted access when the keyring is unavailable, rather than
	// failing outright. Mirrors the teacher's AllowDegradeOnError knob.
	AllowDegradeOnError bool `toml:"allow-degrade-on-error" json:"allow_degrade_on_error"`

	// MasterKeyCheckInterval is how often a background prober calls
	// Manager.CheckAlive to surface keyring outages before a rotation is
	// attempted under pressure.
	MasterKeyCheckInterval TomlDuration `toml:"master-key-check-interval" json:"master_key_check_interval"`
}

// KeyringConfig selects and configures the Keyring Gateway backend.
type KeyringConfig struct {
	Backend KeyringBackend `toml:"backend" json:"backend"`

	// FilePath is the path to the JSON keyring file when Backend == file.
	FilePath string `toml:"file-path" json:"file_path"`

	// KMS contains optional KMS client overrides. If unset, the default
	// credential chain of the corresponding cloud provider is used.
	KMS *KMSConfig `toml:"kms" json:"kms"`
}

// KMSConfig contains KMS configuration for different cloud providers.
type KMSConfig struct {
	AWS *AWSKMSConfig `toml:"aws" json:"aws"`
	GCP *GCPKMSConfig `toml:"gcp" json:"gcp"`
}

// AWSKMSConfig configures the AWS KMS-backed Keyring Gateway.
type AWSKMSConfig struct {
	// Region is the AWS region the KMS key lives in.
	Region string `toml:"region" json:"region"`
	// Endpoint overrides the default KMS endpoint (e.g. for localstack).
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// KeyID is the ARN or alias of the customer master key used to wrap
	// data keys generated by this gateway.
	KeyID string `toml:"key-id" json:"key_id"`

	// Profile configures the AWS shared config profile to use.
	Profile string `toml:"profile" json:"profile"`

	// Static credentials. If AccessKey is set, SecretAccessKey must also
	// be set.
	AccessKey       string `toml:"access-key" json:"access_key"`
	SecretAccessKey string `toml:"secret-access-key" json:"secret_access_key"`
	SessionToken    string `toml:"session-token" json:"session_token"`
}

// GCPKMSConfig configures the GCP Cloud KMS-backed Keyring Gateway.
type GCPKMSConfig struct {
	// Endpoint overrides the default Cloud KMS endpoint.
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// KeyName is the full resource name of the Cloud KMS crypto key used
	// to wrap data keys generated by this gateway, e.g.
	// projects/p/locations/l/keyRings/r/cryptoKeys/k.
	KeyName string `toml:"key-name" json:"key_name"`

	// CredentialsFile specifies a service account JSON file path.
	CredentialsFile string `toml:"credentials-file" json:"credentials_file"`
	// CredentialsJSON specifies a service account JSON content.
	CredentialsJSON string `toml:"credentials-json" json:"credentials_json"`
}

// ValidateAndAdjust validates the configuration and fills in defaults for
// unset sub-configurations.
func (c *TDEConfig) ValidateAndAdjust() error {
	if c.EncryptionMode == "" {
		c.EncryptionMode = EncryptionModeNone
	}
	switch c.EncryptionMode {
	case EncryptionModeNone, EncryptionModeMasterKey, EncryptionModeKeyring:
	default:
		return errors.Errorf("invalid encryption-mode %q", c.EncryptionMode)
	}
	if c.Keyring == nil {
		c.Keyring = NewDefaultKeyringConfig()
	}
	if err := c.Keyring.ValidateAndAdjust(); err != nil {
		return errors.Trace(err)
	}
	if c.MasterKeyCheckInterval == 0 {
		c.MasterKeyCheckInterval = TomlDuration(5 * time.Minute)
	}
	if c.EncryptionMode != EncryptionModeNone && c.ServerUUID == "" {
		return errors.Errorf("server-uuid must be set when encryption-mode is %q", c.EncryptionMode)
	}
	return nil
}

// ValidateAndAdjust validates the keyring configuration and fills in
// defaults for unset sub-configurations.
func (c *KeyringConfig) ValidateAndAdjust() error {
	if c.Backend == "" {
		c.Backend = KeyringBackendMemory
	}
	switch c.Backend {
	case KeyringBackendMemory, KeyringBackendFile, KeyringBackendAWSKMS, KeyringBackendGCPKMS, KeyringBackendKeychain:
	default:
		return errors.Errorf("invalid keyring backend %q", c.Backend)
	}
	if c.Backend == KeyringBackendFile && c.FilePath == "" {
		return errors.Errorf("file-path is required for the file keyring backend")
	}
	if c.KMS == nil {
		c.KMS = &KMSConfig{AWS: &AWSKMSConfig{}, GCP: &GCPKMSConfig{}}
	}
	if c.Backend == KeyringBackendAWSKMS && c.KMS.AWS.KeyID == "" {
		return errors.Errorf("kms.aws.key-id is required for the aws-kms keyring backend")
	}
	if c.Backend == KeyringBackendGCPKMS && c.KMS.GCP.KeyName == "" {
		return errors.Errorf("kms.gcp.key-name is required for the gcp-kms keyring backend")
	}
	return nil
}

// NewDefaultTDEConfig returns the default encryption core configuration.
func NewDefaultTDEConfig() *TDEConfig {
	return &TDEConfig{
		EncryptionMode:         EncryptionModeNone,
		Keyring:                NewDefaultKeyringConfig(),
		AllowDegradeOnError:    true,
		MasterKeyCheckInterval: TomlDuration(5 * time.Minute),
	}
}

// NewDefaultKeyringConfig returns the default keyring backend configuration.
func NewDefaultKeyringConfig() *KeyringConfig {
	return &KeyringConfig{
		Backend: KeyringBackendMemory,
		KMS: &KMSConfig{
			AWS: &AWSKMSConfig{},
			GCP: &GCPKMSConfig{},
		},
	}
}
