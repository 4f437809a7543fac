package certs

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avafx/internal/testutil"
)

func TestParseTrustBundle_Counts(t *testing.T) {
	t.Parallel()

	ca1 := testutil.NewCA(t, "root one")
	ca2 := testutil.NewCA(t, "root two")
	ca3 := testutil.NewCA(t, "root three")

	tests := []struct {
		name  string
		input []byte
		want  []string
	}{
		{name: "empty file", input: nil},
		{name: "whitespace only", input: []byte("  \n\t\r\n  ")},
		{name: "single block", input: ca1.PEM(), want: []string{"root one"}},
		{
			name:  "three blocks in order",
			input: testutil.CertPEM(ca1.Cert, ca2.Cert, ca3.Cert),
			want:  []string{"root one", "root two", "root three"},
		},
		{
			name:  "comments between blocks",
			input: []byte("# DigiCert roots\n" + string(ca1.PEM()) + "\nSubject: root two\n" + string(ca2.PEM()) + "\n\n"),
			want:  []string{"root one", "root two"},
		},
		{
			name:  "CRLF line endings",
			input: []byte(strings.ReplaceAll(string(testutil.CertPEM(ca2.Cert, ca3.Cert)), "\n", "\r\n")),
			want:  []string{"root two", "root three"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			certs, err := ParseTrustBundle(tt.input)
			require.NoError(t, err)
			require.Len(t, certs, len(tt.want))
			for i, cn := range tt.want {
				assert.Equal(t, cn, certs[i].Subject.CommonName)
			}
		})
	}
}

func TestParseTrustBundle_Malformed(t *testing.T) {
	t.Parallel()

	ca := testutil.NewCA(t, "root")
	valid := string(ca.PEM())
	body := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(valid), beginCertificate), endCertificate)

	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "missing end delimiter",
			input:   valid + beginCertificate + body,
			wantMsg: "block 2: missing",
		},
		{
			name:    "missing begin delimiter",
			input:   body + endCertificate + "\n",
			wantMsg: "block 1: missing \"-----BEGIN CERTIFICATE-----\"",
		},
		{
			name:    "truncated base64",
			input:   beginCertificate + "\n" + body[:len(body)/2] + "!!\n" + endCertificate + "\n",
			wantMsg: "invalid base64 body",
		},
		{
			name:    "valid base64 but not a certificate",
			input:   beginCertificate + "\n" + base64.StdEncoding.EncodeToString([]byte("hello world")) + "\n" + endCertificate,
			wantMsg: "invalid certificate",
		},
		{
			name:    "two begins before one end",
			input:   beginCertificate + body + valid,
			wantMsg: "before next certificate",
		},
		{
			name:    "trailing garbage",
			input:   valid + "garbage",
			wantMsg: "unexpected data after final",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			certs, err := ParseTrustBundle([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, certs)
			assert.ErrorIs(t, err, ErrMalformedBundle)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadTrustBundle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ca1 := testutil.NewCA(t, "one")
	ca2 := testutil.NewCA(t, "two")

	t.Run("loads file", func(t *testing.T) {
		t.Parallel()

		path := testutil.WriteFile(t, dir, "bundle.pem", testutil.CertPEM(ca1.Cert, ca2.Cert))
		bundle, err := LoadTrustBundle(path)
		require.NoError(t, err)

		assert.Equal(t, path, bundle.Path())
		assert.Equal(t, 2, bundle.Len())
		assert.False(t, bundle.Empty())
		assert.True(t, bundle.Certificates()[0].Equal(ca1.Cert))
		assert.NotNil(t, bundle.Pool())
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		path := testutil.WriteFile(t, dir, "empty.pem", []byte("\n"))
		bundle, err := LoadTrustBundle(path)
		require.NoError(t, err)
		assert.True(t, bundle.Empty())
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadTrustBundle(filepath.Join(dir, "absent.pem"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCertificateNotFound)

		var certErr *CertificateError
		require.ErrorAs(t, err, &certErr)
		assert.Contains(t, certErr.Path, "absent.pem")
	})

	t.Run("malformed file", func(t *testing.T) {
		t.Parallel()

		path := testutil.WriteFile(t, dir, "bad.pem", []byte(beginCertificate+"\nAAAA"))
		_, err := LoadTrustBundle(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedBundle)
		assert.Contains(t, err.Error(), "bad.pem")
	})
}

func TestTrustBundle_CertificatesIsCopy(t *testing.T) {
	t.Parallel()

	ca := testutil.NewCA(t, "root")
	bundle := NewTrustBundle(ca.Cert)

	certs := bundle.Certificates()
	certs[0] = nil

	assert.NotNil(t, bundle.Certificates()[0])
}
