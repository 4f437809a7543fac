package testutil

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Keystore fixtures under internal/certs/testdata.
const (
	KeystorePassphrase = "changeit"
	keystoreFile       = "client.p12"
	keystoreCAFile     = "ca.pem"
)

// KeystorePath returns the absolute path of the RSA client keystore fixture.
func KeystorePath() string {
	return filepath.Join(fixtureDir(), keystoreFile)
}

// KeystoreCAPool returns a pool holding the CA that issued the keystore
// fixture's certificate.
func KeystoreCAPool(t testing.TB) *x509.CertPool {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(fixtureDir(), keystoreCAFile))
	if err != nil {
		t.Fatalf("read keystore CA: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		t.Fatalf("keystore CA fixture holds no certificates")
	}
	return pool
}

func fixtureDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "certs", "testdata")
}

// NewTLSServer starts an HTTPS test server whose certificate is issued by
// ca for 127.0.0.1 and localhost. When clientCAs is non-nil the server
// requires a client certificate chaining to it.
func NewTLSServer(t testing.TB, ca *CA, clientCAs *x509.CertPool, handler http.Handler) *httptest.Server {
	t.Helper()

	srv := httptest.NewUnstartedServer(handler)
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{ca.IssueServer(t, "127.0.0.1", "localhost")},
		MinVersion:   tls.VersionTLS12,
	}
	if clientCAs != nil {
		srv.TLS.ClientCAs = clientCAs
		srv.TLS.ClientAuth = tls.RequireAndVerifyClientCert
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	return srv
}
