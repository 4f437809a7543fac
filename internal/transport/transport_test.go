package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avafx/internal/certs"
	"github.com/vyrodovalexey/avafx/internal/testutil"
	"github.com/vyrodovalexey/avafx/internal/trust"
)

func loadIdentity(t *testing.T) *certs.ClientIdentity {
	t.Helper()

	id, err := certs.LoadClientIdentity(testutil.KeystorePath(), testutil.KeystorePassphrase)
	require.NoError(t, err)
	return id
}

func newValidator(t *testing.T, ca *testutil.CA) *trust.Validator {
	t.Helper()

	v, err := trust.NewValidator(certs.NewTrustBundle(ca.Cert))
	require.NoError(t, err)
	return v
}

func get(t *testing.T, tr *Transport, rawURL string) (*http.Response, error) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	return tr.Do(req)
}

func TestTransport_MutualTLS(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "upstream root")

	var gotAuth, gotClientCN, gotTraceparent atomic.Value
	srv := testutil.NewTLSServer(t, serverCA, testutil.KeystoreCAPool(t), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotTraceparent.Store(r.Header.Get("traceparent"))
		gotClientCN.Store(r.TLS.PeerCertificates[0].Subject.CommonName)
		w.WriteHeader(http.StatusOK)
	}))

	tr, err := New(Config{
		BaseURL:   srv.URL,
		Identity:  loadIdentity(t),
		Validator: newValidator(t, serverCA),
		Username:  "user",
		Password:  "p@ss:word",
	})
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	resp, err := get(t, tr, srv.URL+"/vdp/helloworld")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("user:p@ss:word")), gotAuth.Load())
	assert.Equal(t, "avafx test client", gotClientCN.Load())
	assert.Equal(t, DefaultTimeout, tr.Timeout())
	assert.Equal(t, "disabled", tr.BreakerState())
}

func TestTransport_NoBasicAuthWithoutUsername(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "upstream root")
	var hadAuth atomic.Bool
	srv := testutil.NewTLSServer(t, serverCA, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadAuth.Store(r.Header.Get("Authorization") != "")
	}))

	tr, err := New(Config{BaseURL: srv.URL, Validator: newValidator(t, serverCA)})
	require.NoError(t, err)

	resp, err := get(t, tr, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.False(t, hadAuth.Load())
}

func TestTransport_RejectsUntrustedServer(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "upstream root")
	otherCA := testutil.NewCA(t, "unrelated root")

	var hits atomic.Int32
	srv := testutil.NewTLSServer(t, serverCA, nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))

	tr, err := New(Config{BaseURL: srv.URL, Identity: loadIdentity(t), Validator: newValidator(t, otherCA)})
	require.NoError(t, err)

	_, err = get(t, tr, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, trust.ErrUntrusted)
	assert.Zero(t, hits.Load())
}

func TestTransport_HostnamePinnedToBaseURL(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "upstream root")
	srv := serveTLS(t, &tls.Config{
		Certificates: []tls.Certificate{serverCA.IssueServer(t, "api.other.example")},
		MinVersion:   tls.VersionTLS12,
	})

	tr, err := New(Config{BaseURL: srv, Validator: newValidator(t, serverCA)})
	require.NoError(t, err)

	_, err = get(t, tr, srv)
	require.Error(t, err)
	assert.ErrorIs(t, err, trust.ErrUntrusted)
}

func TestTransport_PlatformTrustWithoutValidator(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "private root")
	srv := testutil.NewTLSServer(t, serverCA, nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tr, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = get(t, tr, srv.URL)
	require.Error(t, err)

	var verifyErr *tls.CertificateVerificationError
	assert.ErrorAs(t, err, &verifyErr)
}

func TestTransport_MinTLSVersion(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "upstream root")
	srv := serveTLS(t, &tls.Config{
		Certificates: []tls.Certificate{serverCA.IssueServer(t, "127.0.0.1")},
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
	})

	tr, err := New(Config{BaseURL: srv, Validator: newValidator(t, serverCA), MinTLSVersion: "TLS13"})
	require.NoError(t, err)

	_, err = get(t, tr, srv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls:")
}

func TestTransport_Timeout(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "upstream root")
	release := make(chan struct{})
	srv := testutil.NewTLSServer(t, serverCA, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(release) })

	tr, err := New(Config{BaseURL: srv.URL, Validator: newValidator(t, serverCA), Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = get(t, tr, srv.URL)
	require.Error(t, err)

	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	assert.True(t, urlErr.Timeout())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTransport_CircuitBreaker(t *testing.T) {
	t.Parallel()

	serverCA := testutil.NewCA(t, "upstream root")
	var hits atomic.Int32
	srv := testutil.NewTLSServer(t, serverCA, nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	var lastState atomic.Int32
	tr, err := New(Config{
		BaseURL:   srv.URL,
		Validator: newValidator(t, serverCA),
		CircuitBreaker: BreakerConfig{
			Enabled:   true,
			Threshold: 2,
			Interval:  time.Minute,
			Timeout:   time.Minute,
		},
	}, WithBreakerStateCallback(func(_ string, state int) {
		lastState.Store(int32(state))
	}))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, callErr := get(t, tr, srv.URL)
		require.NoError(t, callErr)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}

	_, err = get(t, tr, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(2), lastState.Load())
	assert.Equal(t, "open", tr.BreakerState())
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "plain http", cfg: Config{BaseURL: "http://sandbox.api.visa.com"}, wantErr: ErrInvalidConfig},
		{name: "relative url", cfg: Config{BaseURL: "/vdp"}, wantErr: ErrInvalidConfig},
		{name: "unparsable url", cfg: Config{BaseURL: "https://[::1"}, wantErr: ErrInvalidConfig},
		{name: "tls below floor", cfg: Config{BaseURL: "https://sandbox.api.visa.com", MinTLSVersion: "TLS11"}, wantErr: ErrTLSVersionInvalid},
		{name: "unknown tls version", cfg: Config{BaseURL: "https://sandbox.api.visa.com", MinTLSVersion: "SSL3"}, wantErr: ErrTLSVersionInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, err := New(tt.cfg)
			assert.Nil(t, tr)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParseTLSVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{in: "", want: tls.VersionTLS12},
		{in: "TLS12", want: tls.VersionTLS12},
		{in: "TLS13", want: tls.VersionTLS13},
		{in: "TLS10", wantErr: true},
		{in: "tls12", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTLSVersion(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTLSVersionInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// serveTLS starts a server with an explicit TLS config and returns its
// https URL.
func serveTLS(t *testing.T, cfg *tls.Config) string {
	t.Helper()

	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	require.NoError(t, err)

	srv := &http.Server{
		Handler:           http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
		ReadHeaderTimeout: time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return "https://" + ln.Addr().(*net.TCPAddr).String()
}
