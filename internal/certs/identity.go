package certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// ClientIdentity is the certificate and private key presented to the
// upstream during the TLS handshake. Its String form never includes key
// material.
type ClientIdentity struct {
	certificate tls.Certificate
	source      string
}

// LoadClientIdentity reads a PKCS#12 keystore protected by passphrase.
// A missing file yields ErrCertificateNotFound before any decoding is
// attempted; decoding failures wrap ErrInvalidClientIdentity.
func LoadClientIdentity(path, passphrase string) (*ClientIdentity, error) {
	if err := requireFile(path, "client certificate"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newCertificateError(path, "failed to read client certificate", err)
	}

	cert, err := DecodePKCS12(data, passphrase)
	if err != nil {
		return nil, newCertificateError(path, "failed to load client certificate", err)
	}

	return &ClientIdentity{certificate: cert, source: path}, nil
}

// LoadClientIdentityPEM reads a PEM encoded certificate chain and its
// private key.
func LoadClientIdentityPEM(certPath, keyPath string) (*ClientIdentity, error) {
	if err := requireFile(certPath, "client certificate"); err != nil {
		return nil, err
	}
	if err := requireFile(keyPath, "client key"); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, newCertificateError(certPath, "failed to load client certificate",
			fmt.Errorf("%w: %w", ErrInvalidClientIdentity, err))
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, newCertificateError(certPath, "failed to parse client certificate",
			fmt.Errorf("%w: %w", ErrInvalidClientIdentity, err))
	}
	cert.Leaf = leaf

	return &ClientIdentity{certificate: cert, source: certPath}, nil
}

// DecodePKCS12 decodes a keystore into a tls.Certificate. Both the
// legacy 3DES/RC2 encodings and the PBES2/AES encodings written by
// OpenSSL 3 are accepted. The leaf is the certificate whose public key
// matches the private key; any other certificates follow it as the chain.
func DecodePKCS12(data []byte, passphrase string) (tls.Certificate, error) {
	rawKey, first, rest, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %w", ErrInvalidClientIdentity, err)
	}

	key, ok := rawKey.(crypto.Signer)
	if !ok || key == nil {
		return tls.Certificate{}, fmt.Errorf("%w: unsupported private key type %T", ErrInvalidClientIdentity, rawKey)
	}

	certs := make([]*x509.Certificate, 0, 1+len(rest))
	if first != nil {
		certs = append(certs, first)
	}
	certs = append(certs, rest...)
	if len(certs) == 0 {
		return tls.Certificate{}, fmt.Errorf("%w: keystore holds no certificate", ErrInvalidClientIdentity)
	}

	leafIdx := -1
	for i, cert := range certs {
		if publicKeysEqual(key.Public(), cert.PublicKey) {
			leafIdx = i
			break
		}
	}
	if leafIdx < 0 {
		return tls.Certificate{}, fmt.Errorf("%w: no certificate matches the private key", ErrInvalidClientIdentity)
	}

	chain := make([][]byte, 0, len(certs))
	chain = append(chain, certs[leafIdx].Raw)
	for i, cert := range certs {
		if i != leafIdx {
			chain = append(chain, cert.Raw)
		}
	}

	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        certs[leafIdx],
	}, nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	switch k := a.(type) {
	case *rsa.PublicKey:
		return k.Equal(b)
	case *ecdsa.PublicKey:
		return k.Equal(b)
	}
	if eq, ok := a.(interface{ Equal(crypto.PublicKey) bool }); ok {
		return eq.Equal(b)
	}
	return false
}

func requireFile(path, what string) error {
	if path == "" {
		return newCertificateError("", what+" path is empty", ErrCertificateNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newCertificateError(path, what+" not found", ErrCertificateNotFound)
		}
		return newCertificateError(path, "failed to stat "+what, err)
	}
	if info.IsDir() {
		return newCertificateError(path, what+" is a directory", ErrCertificateNotFound)
	}
	return nil
}

// TLSCertificate returns the identity in the form tls.Config expects.
func (c *ClientIdentity) TLSCertificate() tls.Certificate {
	return c.certificate
}

// Leaf returns the end-entity certificate.
func (c *ClientIdentity) Leaf() *x509.Certificate {
	return c.certificate.Leaf
}

// Source returns the file the identity was loaded from.
func (c *ClientIdentity) Source() string {
	return c.source
}

// Expired reports whether the leaf certificate is outside its validity
// window at now.
func (c *ClientIdentity) Expired(now time.Time) bool {
	leaf := c.Leaf()
	return now.Before(leaf.NotBefore) || now.After(leaf.NotAfter)
}

// String describes the identity without exposing key material.
func (c *ClientIdentity) String() string {
	leaf := c.Leaf()
	if leaf == nil {
		return "ClientIdentity{}"
	}
	return fmt.Sprintf("ClientIdentity{subject=%q serial=%s notAfter=%s}",
		leaf.Subject.String(), leaf.SerialNumber.String(), leaf.NotAfter.UTC().Format(time.RFC3339))
}
