package certs

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const (
	beginCertificate = "-----BEGIN CERTIFICATE-----"
	endCertificate   = "-----END CERTIFICATE-----"
)

// TrustBundle is an immutable, ordered set of trust anchors read from a
// PEM file.
type TrustBundle struct {
	path  string
	certs []*x509.Certificate
}

// NewTrustBundle builds a bundle from already parsed certificates.
func NewTrustBundle(certs ...*x509.Certificate) *TrustBundle {
	return &TrustBundle{certs: append([]*x509.Certificate(nil), certs...)}
}

// LoadTrustBundle reads and parses the PEM bundle at path. A file holding
// no certificate blocks yields an empty bundle.
func LoadTrustBundle(path string) (*TrustBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newCertificateError(path, "CA bundle not found", ErrCertificateNotFound)
		}
		return nil, newCertificateError(path, "failed to read CA bundle", err)
	}

	certs, err := ParseTrustBundle(data)
	if err != nil {
		return nil, newCertificateError(path, "failed to parse CA bundle", err)
	}

	return &TrustBundle{path: path, certs: certs}, nil
}

// ParseTrustBundle splits concatenated PEM certificates on the END
// delimiter and decodes each block in order. Text ahead of a BEGIN marker
// is ignored; anything else that does not form a complete block is an
// error wrapping ErrMalformedBundle.
func ParseTrustBundle(data []byte) ([]*x509.Certificate, error) {
	fragments := strings.Split(string(data), endCertificate)
	last := len(fragments) - 1

	var certs []*x509.Certificate
	for i, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}

		block := len(certs) + 1
		if i == last {
			if strings.Contains(fragment, beginCertificate) {
				return nil, fmt.Errorf("%w: block %d: missing %q delimiter", ErrMalformedBundle, block, endCertificate)
			}
			return nil, fmt.Errorf("%w: unexpected data after final %q delimiter", ErrMalformedBundle, endCertificate)
		}

		cert, err := parseBlock(fragment + "\n" + endCertificate)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrMalformedBundle, block, err)
		}
		certs = append(certs, cert)
	}

	return certs, nil
}

func parseBlock(block string) (*x509.Certificate, error) {
	start := strings.Index(block, beginCertificate)
	if start < 0 {
		return nil, fmt.Errorf("missing %q delimiter", beginCertificate)
	}

	body := block[start+len(beginCertificate) : len(block)-len(endCertificate)]
	if strings.Contains(body, beginCertificate) {
		return nil, fmt.Errorf("missing %q delimiter before next certificate", endCertificate)
	}

	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(body), ""))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 body: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate: %w", err)
	}
	return cert, nil
}

// Path returns the file the bundle was loaded from, if any.
func (b *TrustBundle) Path() string {
	return b.path
}

// Len returns the number of certificates in the bundle.
func (b *TrustBundle) Len() int {
	return len(b.certs)
}

// Empty reports whether the bundle holds no certificates.
func (b *TrustBundle) Empty() bool {
	return len(b.certs) == 0
}

// Certificates returns a copy of the bundle's certificates in file order.
func (b *TrustBundle) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), b.certs...)
}

// Pool returns a new certificate pool holding the bundle's certificates.
func (b *TrustBundle) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	for _, cert := range b.certs {
		pool.AddCert(cert)
	}
	return pool
}
