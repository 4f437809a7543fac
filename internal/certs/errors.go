package certs

import (
	"errors"
	"fmt"
)

// Sentinel errors for certificate loading.
var (
	// ErrCertificateNotFound indicates that a configured certificate file does not exist.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrInvalidClientIdentity indicates that the client keystore could not be
	// decrypted or does not contain a usable certificate and private key.
	ErrInvalidClientIdentity = errors.New("invalid client identity")

	// ErrMalformedBundle indicates that a PEM trust bundle could not be parsed.
	ErrMalformedBundle = errors.New("malformed certificate bundle")

	// ErrEmptyTrustBundle indicates that a configured trust bundle holds no certificates.
	ErrEmptyTrustBundle = errors.New("trust bundle contains no certificates")
)

// CertificateError describes a failure to load a certificate file.
type CertificateError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CertificateError) Error() string {
	if e.Path != "" {
		if e.Cause != nil {
			return fmt.Sprintf("certificate error at %s: %s: %v", e.Path, e.Message, e.Cause)
		}
		return fmt.Sprintf("certificate error at %s: %s", e.Path, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("certificate error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("certificate error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *CertificateError) Unwrap() error {
	return e.Cause
}

func newCertificateError(path, message string, cause error) *CertificateError {
	return &CertificateError{Path: path, Message: message, Cause: cause}
}
