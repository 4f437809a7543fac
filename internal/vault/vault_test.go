package vault

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/observability"
)

// kvServer serves KV v2 reads for the given secrets under mount "secret".
// Requests without the test token are rejected.
func kvServer(t *testing.T, secrets map[string]map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "s.test-token" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}

		path, ok := strings.CutPrefix(r.URL.Path, "/v1/secret/data/")
		data, found := secrets[path]
		if !ok || !found {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": data,
				"metadata": map[string]any{
					"created_time": "2026-01-01T00:00:00Z",
					"version":      1,
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, addr string) *Client {
	t.Helper()

	c, err := New(&config.VaultConfig{
		Enabled: true,
		Address: addr,
		Token:   "s.test-token",
		Mount:   "/secret/",
	}, observability.NopLogger())
	require.NoError(t, err)
	return c
}

func TestNew_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&config.VaultConfig{Enabled: true}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClient_ReadKey(t *testing.T) {
	t.Parallel()

	srv := kvServer(t, map[string]map[string]any{
		"fx/visa": {"password": "s3cret", "retries": 3},
	})
	c := newClient(t, srv.URL)

	value, err := c.ReadKey(context.Background(), "fx/visa", "password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)

	_, err = c.ReadKey(context.Background(), "fx/visa", "username")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = c.ReadKey(context.Background(), "fx/visa", "retries")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "retries" is not a string`)
}

func TestClient_ReadMissingSecret(t *testing.T) {
	t.Parallel()

	srv := kvServer(t, nil)
	c := newClient(t, srv.URL)

	_, err := c.Read(context.Background(), "fx/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	var verr *VaultError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "kv_read", verr.Op)
	assert.Equal(t, "secret/fx/missing", verr.Path)

	_, err = c.Read(context.Background(), "/")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestParseReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		wantPath string
		wantKey  string
		wantErr  bool
	}{
		{value: "vault:fx/visa#password", wantPath: "fx/visa", wantKey: "password"},
		{value: "vault:/fx/visa/#passphrase", wantPath: "fx/visa", wantKey: "passphrase"},
		{value: "vault:fx/visa", wantErr: true},
		{value: "vault:#password", wantErr: true},
		{value: "vault:fx/visa#", wantErr: true},
		{value: "plain-secret", wantErr: true},
	}

	for _, tt := range tests {
		path, key, err := ParseReference(tt.value)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidReference, tt.value)
			continue
		}
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.wantPath, path, tt.value)
		assert.Equal(t, tt.wantKey, key, tt.value)
	}
}

type fakeReader map[string]string

func (f fakeReader) ReadKey(_ context.Context, path, key string) (string, error) {
	v, ok := f[path+"#"+key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cfg := &config.FXGatewayConfig{}
	cfg.Spec.Upstream.Username = "visa-user"
	cfg.Spec.Upstream.Password = "vault:fx/visa#password"
	cfg.Spec.Upstream.ClientCert.Passphrase = "vault:fx/visa#keystore"
	cfg.Spec.Audit = &config.AuditConfig{Enabled: true, DatabaseURL: "vault:fx/audit#url"}

	require.True(t, HasReferences(cfg))

	err := Resolve(context.Background(), cfg, fakeReader{
		"fx/visa#password": "p@ss",
		"fx/visa#keystore": "changeit",
		"fx/audit#url":     "postgres://audit@db/fx",
	})
	require.NoError(t, err)

	assert.Equal(t, "visa-user", cfg.Spec.Upstream.Username)
	assert.Equal(t, "p@ss", cfg.Spec.Upstream.Password)
	assert.Equal(t, "changeit", cfg.Spec.Upstream.ClientCert.Passphrase)
	assert.Equal(t, "postgres://audit@db/fx", cfg.Spec.Audit.DatabaseURL)
	assert.False(t, HasReferences(cfg))
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	plain := &config.FXGatewayConfig{}
	plain.Spec.Upstream.Password = "literal"
	require.NoError(t, Resolve(context.Background(), plain, nil))
	assert.Equal(t, "literal", plain.Spec.Upstream.Password)

	noVault := &config.FXGatewayConfig{}
	noVault.Spec.Upstream.Password = "vault:fx/visa#password"
	err := Resolve(context.Background(), noVault, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "spec.upstream.password")

	malformed := &config.FXGatewayConfig{}
	malformed.Spec.Upstream.ClientCert.Passphrase = "vault:fx/visa"
	assert.ErrorIs(t, Resolve(context.Background(), malformed, fakeReader{}), ErrInvalidReference)

	missing := &config.FXGatewayConfig{}
	missing.Spec.Upstream.Password = "vault:fx/visa#password"
	assert.ErrorIs(t, Resolve(context.Background(), missing, fakeReader{}), ErrSecretNotFound)
}

func TestClient_PermissionDenied(t *testing.T) {
	t.Parallel()

	srv := kvServer(t, map[string]map[string]any{"fx/visa": {"password": "x"}})
	c, err := New(&config.VaultConfig{Enabled: true, Address: srv.URL, Token: "s.wrong"}, nil)
	require.NoError(t, err)

	_, err = c.ReadKey(context.Background(), "fx/visa", "password")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
	assert.Contains(t, err.Error(), "permission denied")
}
