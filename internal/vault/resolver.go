package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avafx/internal/config"
)

// ReferencePrefix marks a configuration value that is read from Vault.
const ReferencePrefix = "vault:"

// SecretReader reads a single string value from a secret.
type SecretReader interface {
	ReadKey(ctx context.Context, path, key string) (string, error)
}

// IsReference reports whether value is a vault: reference.
func IsReference(value string) bool {
	return strings.HasPrefix(value, ReferencePrefix)
}

// ParseReference splits "vault:path/to/secret#key" into path and key.
func ParseReference(value string) (path, key string, err error) {
	rest, ok := strings.CutPrefix(value, ReferencePrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: missing %q prefix", ErrInvalidReference, ReferencePrefix)
	}

	path, key, ok = strings.Cut(rest, "#")
	path = strings.Trim(path, "/")
	if !ok || path == "" || key == "" {
		return "", "", fmt.Errorf("%w: want vault:<path>#<key>", ErrInvalidReference)
	}
	return path, key, nil
}

// secretFields lists the configuration values that may hold references.
func secretFields(cfg *config.FXGatewayConfig) map[string]*string {
	fields := map[string]*string{
		"spec.upstream.username":              &cfg.Spec.Upstream.Username,
		"spec.upstream.password":              &cfg.Spec.Upstream.Password,
		"spec.upstream.clientCert.passphrase": &cfg.Spec.Upstream.ClientCert.Passphrase,
	}
	if cfg.Spec.Audit != nil {
		fields["spec.audit.databaseUrl"] = &cfg.Spec.Audit.DatabaseURL
	}
	return fields
}

// HasReferences reports whether any secret field of cfg is a reference.
func HasReferences(cfg *config.FXGatewayConfig) bool {
	for _, field := range secretFields(cfg) {
		if IsReference(*field) {
			return true
		}
	}
	return false
}

// Resolve replaces every reference in cfg with the value read through r.
// Plain values are left untouched. A nil reader is only valid when cfg
// holds no references.
func Resolve(ctx context.Context, cfg *config.FXGatewayConfig, r SecretReader) error {
	for name, field := range secretFields(cfg) {
		if !IsReference(*field) {
			continue
		}
		if r == nil {
			return fmt.Errorf("%s: %w: vault is not enabled", name, ErrInvalidConfig)
		}

		path, key, err := ParseReference(*field)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		value, err := r.ReadKey(ctx, path, key)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field = value
	}
	return nil
}
