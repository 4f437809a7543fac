package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/observability"
)

// Client reads secrets from a KV v2 mount.
type Client struct {
	api    *vaultapi.Client
	mount  string
	logger observability.Logger
}

// New creates a Client from cfg. The token falls back to VAULT_TOKEN via
// the Vault API defaults when cfg.Token is empty.
func New(cfg *config.VaultConfig, logger observability.Logger) (*Client, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, newVaultError("init", "", apiConfig.Error)
	}
	apiConfig.Address = cfg.Address
	if cfg.Timeout > 0 {
		apiConfig.Timeout = cfg.Timeout.Duration()
	}
	apiConfig.MaxRetries = 0

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, newVaultError("init", "", err)
	}
	if cfg.Token != "" {
		api.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}

	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = config.DefaultVaultMount
	}

	return &Client{
		api:    api,
		mount:  mount,
		logger: logger.With(observability.String("component", "vault")),
	}, nil
}

// Read returns the data of the latest version of the secret at path.
func (c *Client) Read(ctx context.Context, path string) (map[string]any, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, newVaultError("kv_read", "", fmt.Errorf("%w: path is required", ErrInvalidReference))
	}

	secret, err := c.api.KVv2(c.mount).Get(ctx, path)
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, newVaultError("kv_read", c.mount+"/"+path, ErrSecretNotFound)
		}
		return nil, newVaultError("kv_read", c.mount+"/"+path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, newVaultError("kv_read", c.mount+"/"+path, ErrSecretNotFound)
	}

	c.logger.Debug("secret read", observability.String("path", c.mount+"/"+path))
	return secret.Data, nil
}

// ReadKey returns one string value from the secret at path.
func (c *Client) ReadKey(ctx context.Context, path, key string) (string, error) {
	data, err := c.Read(ctx, path)
	if err != nil {
		return "", err
	}

	raw, ok := data[key]
	if !ok || raw == nil {
		return "", newVaultError("kv_read", c.mount+"/"+path, fmt.Errorf("%w: key %q", ErrSecretNotFound, key))
	}
	value, ok := raw.(string)
	if !ok {
		return "", newVaultError("kv_read", c.mount+"/"+path, fmt.Errorf("key %q is not a string", key))
	}
	return value, nil
}
