package transport

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// ErrTLSVersionInvalid indicates an unknown or disallowed minimum TLS version.
var ErrTLSVersionInvalid = errors.New("invalid TLS version")

// buildTLSConfig assembles the client TLS configuration for serverName.
func (b *builder) buildTLSConfig(serverName string) (*tls.Config, error) {
	minVersion, err := ParseTLSVersion(b.cfg.MinTLSVersion)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		MinVersion: minVersion,
		ServerName: serverName,
	}

	if b.cfg.Identity != nil {
		cfg.Certificates = []tls.Certificate{b.cfg.Identity.TLSCertificate()}
	}

	if b.cfg.Validator != nil {
		// Chain and host name checks run in VerifyConnection against the
		// custom roots only.
		cfg.InsecureSkipVerify = true //nolint:gosec // verification delegated to the trust validator
		cfg.VerifyConnection = b.cfg.Validator.VerifyConnection(serverName)
	}

	b.logger.Debug("built upstream TLS config",
		observability.String("serverName", serverName),
		observability.String("minVersion", tlsVersionName(minVersion)),
		observability.Bool("customTrust", b.cfg.Validator != nil),
		observability.Bool("clientCertificate", b.cfg.Identity != nil),
	)

	return cfg, nil
}

// ParseTLSVersion parses a minimum TLS version. Only TLS 1.2 and 1.3 are
// accepted; an empty string means TLS 1.2.
func ParseTLSVersion(version string) (uint16, error) {
	switch version {
	case "TLS12", "":
		return tls.VersionTLS12, nil
	case "TLS13":
		return tls.VersionTLS13, nil
	case "TLS10", "TLS11":
		return 0, fmt.Errorf("%w: %s is below the TLS 1.2 floor", ErrTLSVersionInvalid, version)
	default:
		return 0, fmt.Errorf("%w: unknown TLS version: %s", ErrTLSVersionInvalid, version)
	}
}

func tlsVersionName(v uint16) string {
	if v == tls.VersionTLS13 {
		return "TLS13"
	}
	return "TLS12"
}
