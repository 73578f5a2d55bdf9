// Package secretstore resolves runtime secrets — the HTTP API auth token,
// chat-bot tokens, signer material handed opaquely to the Chain Adapter —
// from HashiCorp Vault when configured, falling back to environment
// variables otherwise. Adapted from a VaultClient shape: the same KV-v2
// read path and token authentication, narrowed from a broader set of
// exchange/database/LLM secret loaders to the handful of secrets this
// core actually consumes.
package secretstore

import (
	"context"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"

	"github.com/chainarb/core/internal/config"
)

// Store resolves named secrets. A nil client is valid — every lookup
// falls back to the environment in that case, so a deployment without
// Vault still runs (spec.md §9: fail closed on missing data, never
// fabricate it — here that means returning an error, not a zero-value
// secret, when neither source has the key).
type Store struct {
	client     *vault.Client
	mountPath  string
	secretPath string
}

// New builds a Store from cfg. If cfg.Enabled is false, New returns a
// Store that only reads from the environment.
func New(cfg config.VaultConfig) (*Store, error) {
	if !cfg.Enabled {
		return &Store{}, nil
	}

	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("secretstore: create vault client: %w", err)
	}

	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("secretstore: vault enabled but no token configured")
	}
	client.SetToken(token)

	return &Store{client: client, mountPath: cfg.MountPath, secretPath: cfg.SecretPath}, nil
}

// GetString resolves key at path (relative to the configured SecretPath)
// from Vault, falling back to the environment variable envFallback when
// Vault is not configured or the key is absent from the returned secret.
func (s *Store) GetString(ctx context.Context, path, key, envFallback string) (string, error) {
	if s.client != nil {
		if v, err := s.readVault(ctx, path, key); err == nil {
			return v, nil
		}
	}
	if envFallback != "" {
		if v := os.Getenv(envFallback); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("secretstore: secret %q/%q not found in vault or environment %q", path, key, envFallback)
}

func (s *Store) readVault(ctx context.Context, path, key string) (string, error) {
	fullPath := fmt.Sprintf("%s/data/%s/%s", s.mountPath, s.secretPath, path)
	secret, err := s.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return "", fmt.Errorf("secretstore: read %s: %w", fullPath, err)
	}
	if secret == nil {
		return "", fmt.Errorf("secretstore: secret not found at %s", fullPath)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}
	v, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("secretstore: key %q not found at %s", key, fullPath)
	}
	return v, nil
}
