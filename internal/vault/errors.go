package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrSecretNotFound indicates the secret or key does not exist.
	ErrSecretNotFound = errors.New("vault: secret not found")

	// ErrInvalidReference indicates a malformed vault: reference.
	ErrInvalidReference = errors.New("vault: invalid secret reference")

	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("vault: invalid configuration")
)

// VaultError represents a failed Vault operation.
type VaultError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vault %s on path %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("vault %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *VaultError) Unwrap() error {
	return e.Err
}

func newVaultError(op, path string, err error) *VaultError {
	return &VaultError{Op: op, Path: path, Err: err}
}
