// Package trust decides whether an upstream server's certificate chain is
// acceptable using only a configured set of root certificates.
package trust

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/vyrodovalexey/avafx/internal/certs"
)

// ErrUntrusted is returned when a presented chain does not terminate at
// one of the validator's roots or fails hostname verification.
var ErrUntrusted = errors.New("server certificate not trusted")

// Validator verifies server chains against a fixed trust bundle. The
// platform trust store is never consulted and revocation is not checked.
// A Validator is immutable and safe for concurrent use.
type Validator struct {
	roots *x509.CertPool
	count int
	now   func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time used for validity checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a validator anchored at the bundle's certificates.
// An empty bundle is rejected since it could never accept a chain.
func NewValidator(bundle *certs.TrustBundle, opts ...Option) (*Validator, error) {
	if bundle == nil || bundle.Empty() {
		return nil, certs.ErrEmptyTrustBundle
	}

	v := &Validator{
		roots: bundle.Pool(),
		count: bundle.Len(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Roots returns the number of trust anchors.
func (v *Validator) Roots() int {
	return v.count
}

// Validate reports whether leaf chains to one of the validator's roots,
// using chain as candidate intermediates. Hostnames are not checked.
func (v *Validator) Validate(leaf *x509.Certificate, chain []*x509.Certificate) bool {
	return v.Verify(leaf, chain, "") == nil
}

// Verify checks leaf against the roots and, when serverName is non-empty,
// against the expected host name.
func (v *Validator) Verify(leaf *x509.Certificate, chain []*x509.Certificate, serverName string) error {
	if leaf == nil {
		return fmt.Errorf("%w: no certificate presented", ErrUntrusted)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range chain {
		if cert != nil && !cert.Equal(leaf) {
			intermediates.AddCert(cert)
		}
	}

	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		DNSName:       serverName,
		CurrentTime:   v.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUntrusted, err)
	}

	return nil
}

// VerifyConnection returns a tls.Config VerifyConnection hook that checks
// the peer chain and pins the host name to serverName.
func (v *Validator) VerifyConnection(serverName string) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return fmt.Errorf("%w: no certificate presented", ErrUntrusted)
		}
		return v.Verify(cs.PeerCertificates[0], cs.PeerCertificates[1:], serverName)
	}
}
