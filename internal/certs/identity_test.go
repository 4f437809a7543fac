package certs

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avafx/internal/testutil"
)

const fixturePassphrase = "changeit"

func TestLoadClientIdentity_PKCS12(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		wantCN    string
		chainLen  int
		keyIsRSA  bool
		keyIsECDS bool
	}{
		{
			name:     "rsa keystore with issuing CA",
			path:     filepath.Join("testdata", "client.p12"),
			wantCN:   "avafx test client",
			chainLen: 2,
			keyIsRSA: true,
		},
		{
			name:     "openssl 3 default keystore with AES-256 and SHA-256 MAC",
			path:     filepath.Join("testdata", "client-aes.p12"),
			wantCN:   "avafx test client",
			chainLen: 2,
			keyIsRSA: true,
		},
		{
			name:      "ecdsa keystore without chain",
			path:      filepath.Join("testdata", "client-ec.p12"),
			wantCN:    "avafx test ec client",
			chainLen:  1,
			keyIsECDS: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, err := LoadClientIdentity(tt.path, fixturePassphrase)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCN, id.Leaf().Subject.CommonName)
			assert.Equal(t, tt.path, id.Source())

			cert := id.TLSCertificate()
			assert.Len(t, cert.Certificate, tt.chainLen)
			assert.Equal(t, id.Leaf().Raw, cert.Certificate[0])

			_, isRSA := cert.PrivateKey.(*rsa.PrivateKey)
			_, isEC := cert.PrivateKey.(*ecdsa.PrivateKey)
			assert.Equal(t, tt.keyIsRSA, isRSA)
			assert.Equal(t, tt.keyIsECDS, isEC)

			assert.False(t, id.Expired(time.Now()))
		})
	}
}

func TestLoadClientIdentity_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		passphrase string
		wantErr    error
	}{
		{
			name:       "file does not exist",
			path:       filepath.Join("testdata", "missing.p12"),
			passphrase: fixturePassphrase,
			wantErr:    ErrCertificateNotFound,
		},
		{
			name:       "empty path",
			path:       "",
			passphrase: fixturePassphrase,
			wantErr:    ErrCertificateNotFound,
		},
		{
			name:       "directory instead of file",
			path:       "testdata",
			passphrase: fixturePassphrase,
			wantErr:    ErrCertificateNotFound,
		},
		{
			name:       "wrong passphrase",
			path:       filepath.Join("testdata", "client.p12"),
			passphrase: "wrong",
			wantErr:    ErrInvalidClientIdentity,
		},
		{
			name:       "wrong passphrase on aes keystore",
			path:       filepath.Join("testdata", "client-aes.p12"),
			passphrase: "wrong",
			wantErr:    ErrInvalidClientIdentity,
		},
		{
			name:       "not a keystore",
			path:       filepath.Join("testdata", "garbage.p12"),
			passphrase: fixturePassphrase,
			wantErr:    ErrInvalidClientIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, err := LoadClientIdentity(tt.path, tt.passphrase)
			require.Error(t, err)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadClientIdentity_MissingFileChecksBeforeParsing(t *testing.T) {
	t.Parallel()

	_, err := LoadClientIdentity(filepath.Join(t.TempDir(), "client.p12"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCertificateNotFound)
	assert.NotErrorIs(t, err, ErrInvalidClientIdentity)
}

func TestLoadClientIdentityPEM(t *testing.T) {
	t.Parallel()

	t.Run("fixture pair", func(t *testing.T) {
		t.Parallel()

		id, err := LoadClientIdentityPEM(filepath.Join("testdata", "client.pem"), filepath.Join("testdata", "client.key"))
		require.NoError(t, err)
		assert.Equal(t, "avafx test client", id.Leaf().Subject.CommonName)
	})

	t.Run("generated ecdsa pair", func(t *testing.T) {
		t.Parallel()

		ca := testutil.NewCA(t, "client CA")
		cert := ca.IssueClient(t, "generated client")
		dir := t.TempDir()
		certPath := testutil.WriteFile(t, dir, "client.pem", testutil.CertPEM(cert.Leaf))
		keyPath := testutil.WriteFile(t, dir, "client.key", testutil.KeyPEM(t, cert))

		id, err := LoadClientIdentityPEM(certPath, keyPath)
		require.NoError(t, err)
		assert.Equal(t, "generated client", id.Leaf().Subject.CommonName)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		_, err := LoadClientIdentityPEM(filepath.Join("testdata", "client.pem"), filepath.Join(t.TempDir(), "none.key"))
		assert.ErrorIs(t, err, ErrCertificateNotFound)
	})

	t.Run("mismatched key", func(t *testing.T) {
		t.Parallel()

		ca := testutil.NewCA(t, "client CA")
		other := ca.IssueClient(t, "other")
		keyPath := testutil.WriteFile(t, t.TempDir(), "other.key", testutil.KeyPEM(t, other))

		_, err := LoadClientIdentityPEM(filepath.Join("testdata", "client.pem"), keyPath)
		assert.ErrorIs(t, err, ErrInvalidClientIdentity)
	})
}

func TestClientIdentity_StringHidesKey(t *testing.T) {
	t.Parallel()

	id, err := LoadClientIdentity(filepath.Join("testdata", "client.p12"), fixturePassphrase)
	require.NoError(t, err)

	keyPEM, err := os.ReadFile(filepath.Join("testdata", "client.key"))
	require.NoError(t, err)

	s := id.String()
	assert.Contains(t, s, "avafx test client")
	assert.Contains(t, s, "serial=")
	assert.NotContains(t, s, "PRIVATE KEY")
	assert.NotContains(t, s, string(keyPEM[28:60]))
}

func TestClientIdentity_Expired(t *testing.T) {
	t.Parallel()

	id, err := LoadClientIdentity(filepath.Join("testdata", "client-ec.p12"), fixturePassphrase)
	require.NoError(t, err)

	assert.True(t, id.Expired(id.Leaf().NotBefore.Add(-time.Second)))
	assert.True(t, id.Expired(id.Leaf().NotAfter.Add(time.Second)))
	assert.False(t, id.Expired(id.Leaf().NotBefore.Add(time.Minute)))
}

func TestCertificateError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "certificate error at a.pem: broken", (&CertificateError{Path: "a.pem", Message: "broken"}).Error())
	assert.Equal(t, "certificate error: broken: certificate not found",
		(&CertificateError{Message: "broken", Cause: ErrCertificateNotFound}).Error())
	assert.Equal(t, "certificate error: broken", (&CertificateError{Message: "broken"}).Error())
}
