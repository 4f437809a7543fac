// Package config provides configuration management for the FX gateway.
// Configuration is read from a YAML document with ${VAR} environment
// substitution, completed with defaults and validated before use.
package config

// FXGatewayConfig is the root configuration document.
type FXGatewayConfig struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       Spec     `yaml:"spec" json:"spec"`
}

// Metadata identifies a gateway instance.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Spec holds the gateway settings.
type Spec struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Upstream      FXConfig            `yaml:"upstream" json:"upstream"`
	Currencies    []Currency          `yaml:"currencies,omitempty" json:"currencies,omitempty"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	RateLimit     *RateLimitConfig    `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	Audit         *AuditConfig        `yaml:"audit,omitempty" json:"audit,omitempty"`
	Vault         *VaultConfig        `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// ServerConfig configures the inbound HTTP API.
type ServerConfig struct {
	Address         string   `yaml:"address" json:"address"`
	Mode            string   `yaml:"mode,omitempty" json:"mode,omitempty"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// FXConfig is the connection profile for the FX provider. A gateway is
// built from one immutable FXConfig; changing it means building a new
// gateway.
type FXConfig struct {
	BaseURL        string `yaml:"baseUrl" json:"baseUrl"`
	HelloWorldPath string `yaml:"helloWorldPath" json:"helloWorldPath"`
	FXPath         string `yaml:"fxPath" json:"fxPath"`

	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`

	ClientCert ClientCertConfig `yaml:"clientCert" json:"clientCert"`

	// CABundlePath points at a PEM bundle of trust anchors. When empty the
	// platform trust store is used.
	CABundlePath string `yaml:"caBundlePath,omitempty" json:"caBundlePath,omitempty"`

	// AllowEmptyCABundle falls back to platform trust when the configured
	// bundle holds no certificates instead of failing.
	AllowEmptyCABundle bool `yaml:"allowEmptyCABundle,omitempty" json:"allowEmptyCABundle,omitempty"`

	MinTLSVersion string   `yaml:"minTLSVersion,omitempty" json:"minTLSVersion,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	Defaults       QuoteDefaults         `yaml:"defaults" json:"defaults"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// ClientCertConfig locates the client identity. Path is a PKCS#12
// keystore unless KeyPath is set, in which case Path and KeyPath are a PEM
// certificate and key.
type ClientCertConfig struct {
	Path       string `yaml:"path" json:"path"`
	Passphrase string `yaml:"passphrase,omitempty" json:"-"`
	KeyPath    string `yaml:"keyPath,omitempty" json:"keyPath,omitempty"`
}

// QuoteDefaults are stamped onto quote requests that leave the field empty.
type QuoteDefaults struct {
	AcquirerBIN int `yaml:"acquirerBin" json:"acquirerBin"`

	// SettlementCurrencyCode falls back to the request's source currency
	// when empty.
	SettlementCurrencyCode string `yaml:"settlementCurrencyCode,omitempty" json:"settlementCurrencyCode,omitempty"`

	RateProductCode string `yaml:"rateProductCode" json:"rateProductCode"`
	MarkupRate      string `yaml:"markupRate" json:"markupRate"`
}

// CircuitBreakerConfig configures the optional upstream circuit breaker.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Interval  Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Currency is one entry of the reference currency list.
type Currency struct {
	Name      string `yaml:"name" json:"name"`
	ShortName string `yaml:"shortName" json:"shortName"`
	ISOCode   string `yaml:"isoCode" json:"isoCode"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// RateLimitConfig configures inbound request throttling.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
	PerClient         bool    `yaml:"perClient,omitempty" json:"perClient,omitempty"`
}

// AuditConfig configures the FX call audit trail.
type AuditConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	DatabaseURL  string   `yaml:"databaseUrl,omitempty" json:"-"`
	AutoMigrate  bool     `yaml:"autoMigrate,omitempty" json:"autoMigrate,omitempty"`
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	// BufferSize is the number of events queued for the database before new
	// ones are dropped.
	BufferSize int `yaml:"bufferSize,omitempty" json:"bufferSize,omitempty"`
}

// VaultConfig configures secret resolution from HashiCorp Vault.
type VaultConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Address   string   `yaml:"address" json:"address"`
	Token     string   `yaml:"token,omitempty" json:"-"`
	Namespace string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Mount     string   `yaml:"mount,omitempty" json:"mount,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// IsEnabled reports whether the circuit breaker is configured and enabled.
func (c *CircuitBreakerConfig) IsEnabled() bool {
	return c != nil && c.Enabled
}

// IsEnabled reports whether rate limiting is configured and enabled.
func (c *RateLimitConfig) IsEnabled() bool {
	return c != nil && c.Enabled
}

// IsEnabled reports whether auditing is configured and enabled.
func (c *AuditConfig) IsEnabled() bool {
	return c != nil && c.Enabled
}

// IsEnabled reports whether Vault is configured and enabled.
func (c *VaultConfig) IsEnabled() bool {
	return c != nil && c.Enabled
}

// UsesPEMIdentity reports whether the client identity is a PEM pair.
func (c *FXConfig) UsesPEMIdentity() bool {
	return c.ClientCert.KeyPath != ""
}

// WatchedFiles returns the certificate files whose change requires a new
// gateway.
func (c *FXConfig) WatchedFiles() []string {
	var files []string
	for _, p := range []string{c.ClientCert.Path, c.ClientCert.KeyPath, c.CABundlePath} {
		if p != "" {
			files = append(files, p)
		}
	}
	return files
}
