package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleConfig = `
apiVersion: fx.avafx.io/v1
kind: FXGateway
metadata:
  name: visa-sandbox
spec:
  server:
    address: ":8081"
  upstream:
    baseUrl: https://sandbox.api.visa.com
    helloWorldPath: /vdp/helloworld
    fxPath: /forexrates/v2/foreignexchangerates
    username: ${AVAFX_TEST_USERNAME}
    password: ${AVAFX_TEST_PASSWORD:-fallback-secret}
    clientCert:
      path: certs/client.p12
      passphrase: "pa$$word"
    caBundlePath: certs/DigiCertGlobalRootCA.pem
    timeout: 15s
    defaults:
      acquirerBin: 408999
      rateProductCode: B
  currencies:
    - name: US Dollar
      shortName: USD
      isoCode: "840"
    - name: Euro
      shortName: EUR
      isoCode: "978"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fxgateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("AVAFX_TEST_USERNAME", "visa-user")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "visa-sandbox", cfg.Metadata.Name)
	assert.Equal(t, ":8081", cfg.Spec.Server.Address)

	up := cfg.Spec.Upstream
	assert.Equal(t, "https://sandbox.api.visa.com", up.BaseURL)
	assert.Equal(t, "visa-user", up.Username)
	assert.Equal(t, "fallback-secret", up.Password)
	assert.Equal(t, "pa$word", up.ClientCert.Passphrase)
	assert.Equal(t, 15*time.Second, up.Timeout.Duration())
	assert.Equal(t, "B", up.Defaults.RateProductCode)
	assert.Equal(t, DefaultMarkupRate, up.Defaults.MarkupRate)
	assert.Equal(t, DefaultMinTLSVersion, up.MinTLSVersion)
	assert.Len(t, cfg.Spec.Currencies, 2)

	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeConfig(t, "spec: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = LoadConfig(writeConfig(t, "spec:\n  upstream:\n    baseURL: https://typo.example\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = LoadConfig(writeConfig(t, "spec:\n  upstream:\n    timeout: soon\n"))
	assert.Error(t, err)
}

func TestLoadConfigFromReader_EmptyDocumentGetsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddress, cfg.Spec.Server.Address)
	assert.Equal(t, DefaultAcquirerBIN, cfg.Spec.Upstream.Defaults.AcquirerBIN)
	assert.Equal(t, DefaultUpstreamTimeout, cfg.Spec.Upstream.Timeout.Duration())
}

func TestLoadAndValidate(t *testing.T) {
	t.Parallel()

	_, err := LoadAndValidate(writeConfig(t, "apiVersion: fx.avafx.io/v1\nkind: FXGateway\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "metadata.name")
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("AVAFX_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{in: "${AVAFX_SET}", want: "value"},
		{in: "${AVAFX_UNSET_VAR}", want: ""},
		{in: "${AVAFX_UNSET_VAR:-dflt}", want: "dflt"},
		{in: "${AVAFX_SET:-dflt}", want: "value"},
		{in: "$${AVAFX_SET}", want: "${AVAFX_SET}"},
		{in: "plain", want: "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in), tt.in)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, DefaultKind, cfg.Kind)
	assert.Equal(t, DefaultRateProductCode, cfg.Spec.Upstream.Defaults.RateProductCode)
	assert.Equal(t, "json", cfg.Spec.Observability.Logging.Format)
	assert.Equal(t, DefaultMetricsPath, cfg.Spec.Observability.Metrics.Path)
}

func TestApplyDefaults_OptionalSections(t *testing.T) {
	t.Parallel()

	cfg := &FXGatewayConfig{Spec: Spec{
		Upstream: FXConfig{CircuitBreaker: &CircuitBreakerConfig{Enabled: true}},
		Audit:    &AuditConfig{Enabled: true},
		Vault:    &VaultConfig{Enabled: true},
	}}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultBreakerThreshold, cfg.Spec.Upstream.CircuitBreaker.Threshold)
	assert.Equal(t, DefaultBreakerTimeout, cfg.Spec.Upstream.CircuitBreaker.Timeout.Duration())
	assert.Equal(t, DefaultAuditWriteTimeout, cfg.Spec.Audit.WriteTimeout.Duration())
	assert.Equal(t, DefaultAuditBufferSize, cfg.Spec.Audit.BufferSize)
	assert.Equal(t, DefaultVaultMount, cfg.Spec.Vault.Mount)
}

func TestFXConfig_WatchedFiles(t *testing.T) {
	t.Parallel()

	c := FXConfig{ClientCert: ClientCertConfig{Path: "a.p12"}, CABundlePath: "ca.pem"}
	assert.Equal(t, []string{"a.p12", "ca.pem"}, c.WatchedFiles())
	assert.False(t, c.UsesPEMIdentity())

	c.ClientCert.KeyPath = "a.key"
	assert.Equal(t, []string{"a.p12", "a.key", "ca.pem"}, c.WatchedFiles())
	assert.True(t, c.UsesPEMIdentity())
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.Zero(t, d)

	assert.Error(t, d.UnmarshalJSON([]byte(`"later"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	require.NoError(t, d.UnmarshalJSON([]byte(`45`)))
	assert.Equal(t, 45*time.Second, d.Duration())
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "timeout: 30s", want: 30 * time.Second},
		{raw: "timeout: 30", want: 30 * time.Second},
		{raw: "timeout: 1m30s", want: 90 * time.Second},
		{raw: "timeout:", want: 0},
		{raw: `timeout: ""`, want: 0},
		{raw: "timeout: soon", wantErr: true},
		{raw: "timeout: [1, 2]", wantErr: true},
	}

	for _, tt := range tests {
		var out struct {
			Timeout Duration `yaml:"timeout"`
		}
		err := yaml.Unmarshal([]byte(tt.raw), &out)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, out.Timeout.Duration(), tt.raw)
	}

	data, err := yaml.Marshal(struct {
		Timeout Duration `yaml:"timeout"`
	}{Timeout: Duration(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "timeout: 2m0s\n", string(data))
}

func TestLoadAndValidate_ShippedExample(t *testing.T) {
	t.Setenv("VISA_USERNAME", "sandbox-user")
	t.Setenv("VISA_KEYSTORE_PATH", "/tmp/client.p12")

	cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", "fxgateway.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://sandbox.api.visa.com", cfg.Spec.Upstream.BaseURL)
	assert.Equal(t, "sandbox-user", cfg.Spec.Upstream.Username)
	assert.Equal(t, "/tmp/client.p12", cfg.Spec.Upstream.ClientCert.Path)
	assert.Len(t, cfg.Spec.Currencies, 4)
	assert.True(t, cfg.Spec.RateLimit.IsEnabled())
	assert.False(t, cfg.Spec.Vault.IsEnabled())
}
