package config

import "time"

// Default values.
const (
	DefaultAPIVersion = "fx.avafx.io/v1"
	DefaultKind       = "FXGateway"

	DefaultServerAddress   = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 45 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultUpstreamTimeout = 30 * time.Second
	DefaultMinTLSVersion   = "TLS12"

	DefaultAcquirerBIN     = 408999
	DefaultRateProductCode = "A"
	DefaultMarkupRate      = "1"

	DefaultBreakerThreshold = 5
	DefaultBreakerInterval  = 60 * time.Second
	DefaultBreakerTimeout   = 30 * time.Second

	DefaultMetricsAddress = ":9090"
	DefaultMetricsPath    = "/metrics"
	DefaultServiceName    = "avafx"

	DefaultAuditWriteTimeout = 2 * time.Second
	DefaultAuditBufferSize   = 1024

	DefaultVaultMount   = "secret"
	DefaultVaultTimeout = 10 * time.Second
)

// DefaultConfig returns a configuration with every default applied and
// no upstream endpoint.
func DefaultConfig() *FXGatewayConfig {
	cfg := &FXGatewayConfig{
		APIVersion: DefaultAPIVersion,
		Kind:       DefaultKind,
		Metadata:   Metadata{Name: "fxgateway"},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *FXGatewayConfig) {
	applyServerDefaults(&cfg.Spec.Server)
	applyUpstreamDefaults(&cfg.Spec.Upstream)
	applyObservabilityDefaults(&cfg.Spec.Observability)

	if a := cfg.Spec.Audit; a != nil {
		if a.WriteTimeout == 0 {
			a.WriteTimeout = Duration(DefaultAuditWriteTimeout)
		}
		if a.BufferSize == 0 {
			a.BufferSize = DefaultAuditBufferSize
		}
	}

	if v := cfg.Spec.Vault; v != nil {
		if v.Mount == "" {
			v.Mount = DefaultVaultMount
		}
		if v.Timeout == 0 {
			v.Timeout = Duration(DefaultVaultTimeout)
		}
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Address == "" {
		s.Address = DefaultServerAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
}

func applyUpstreamDefaults(u *FXConfig) {
	if u.MinTLSVersion == "" {
		u.MinTLSVersion = DefaultMinTLSVersion
	}
	if u.Timeout == 0 {
		u.Timeout = Duration(DefaultUpstreamTimeout)
	}
	if u.Defaults.AcquirerBIN == 0 {
		u.Defaults.AcquirerBIN = DefaultAcquirerBIN
	}
	if u.Defaults.RateProductCode == "" {
		u.Defaults.RateProductCode = DefaultRateProductCode
	}
	if u.Defaults.MarkupRate == "" {
		u.Defaults.MarkupRate = DefaultMarkupRate
	}

	if cb := u.CircuitBreaker; cb != nil {
		if cb.Threshold == 0 {
			cb.Threshold = DefaultBreakerThreshold
		}
		if cb.Interval == 0 {
			cb.Interval = Duration(DefaultBreakerInterval)
		}
		if cb.Timeout == 0 {
			cb.Timeout = Duration(DefaultBreakerTimeout)
		}
	}
}

func applyObservabilityDefaults(o *ObservabilityConfig) {
	if o.Logging.Level == "" {
		o.Logging.Level = "info"
	}
	if o.Logging.Format == "" {
		o.Logging.Format = "json"
	}
	if o.Logging.Output == "" {
		o.Logging.Output = "stdout"
	}
	if o.Metrics.Address == "" {
		o.Metrics.Address = DefaultMetricsAddress
	}
	if o.Metrics.Path == "" {
		o.Metrics.Path = DefaultMetricsPath
	}
	if o.Tracing.ServiceName == "" {
		o.Tracing.ServiceName = DefaultServiceName
	}
}
