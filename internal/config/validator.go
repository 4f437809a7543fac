package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(config *FXGatewayConfig) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *FXGatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(config)
	v.validateServer(&config.Spec.Server)
	v.validateUpstream(&config.Spec.Upstream)
	v.validateCurrencies(config.Spec.Currencies)
	v.validateObservability(&config.Spec.Observability)

	if config.Spec.RateLimit.IsEnabled() {
		v.validateRateLimit(config.Spec.RateLimit)
	}
	if config.Spec.Vault.IsEnabled() && config.Spec.Vault.Address == "" {
		v.addError("spec.vault.address", "address is required when vault is enabled")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRoot(config *FXGatewayConfig) {
	if config.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(config.APIVersion, "fx.avafx.io/") {
		v.addError("apiVersion", "apiVersion must start with 'fx.avafx.io/'")
	}

	if config.Kind != DefaultKind {
		v.addError("kind", fmt.Sprintf("kind must be '%s'", DefaultKind))
	}

	if config.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.Address == "" {
		v.addError("spec.server.address", "address is required")
	}
	switch s.Mode {
	case "", "debug", "release", "test":
	default:
		v.addError("spec.server.mode", "mode must be one of debug, release, test")
	}
}

func (v *Validator) validateUpstream(u *FXConfig) {
	const path = "spec.upstream"

	if u.BaseURL == "" {
		v.addError(path+".baseUrl", "baseUrl is required")
	} else if parsed, err := url.Parse(u.BaseURL); err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		v.addError(path+".baseUrl", "baseUrl must be an absolute https URL")
	}

	v.validateRelativePath(path+".helloWorldPath", u.HelloWorldPath)
	v.validateRelativePath(path+".fxPath", u.FXPath)

	if u.ClientCert.Path == "" {
		v.addError(path+".clientCert.path", "client certificate path is required")
	}

	switch u.MinTLSVersion {
	case "TLS12", "TLS13":
	default:
		v.addError(path+".minTLSVersion", "minTLSVersion must be TLS12 or TLS13")
	}

	if u.Timeout <= 0 {
		v.addError(path+".timeout", "timeout must be positive")
	}

	if bin := int64(u.Defaults.AcquirerBIN); bin < 100000 || bin > 99999999999 {
		v.addError(path+".defaults.acquirerBin", "acquirerBin must have 6 to 11 digits")
	}
	if c := u.Defaults.SettlementCurrencyCode; c != "" && !ValidCurrencyCode(c) {
		v.addError(path+".defaults.settlementCurrencyCode", fmt.Sprintf("invalid currency code %q", c))
	}
	if u.Defaults.MarkupRate == "" {
		v.addError(path+".defaults.markupRate", "markupRate is required")
	}
	if u.Defaults.RateProductCode == "" {
		v.addError(path+".defaults.rateProductCode", "rateProductCode is required")
	}

	if cb := u.CircuitBreaker; cb.IsEnabled() {
		if cb.Threshold <= 0 {
			v.addError(path+".circuitBreaker.threshold", "threshold must be positive")
		}
		if cb.Timeout <= 0 {
			v.addError(path+".circuitBreaker.timeout", "timeout must be positive")
		}
	}
}

func (v *Validator) validateRelativePath(field, p string) {
	if p == "" {
		v.addError(field, "path is required")
		return
	}
	if !strings.HasPrefix(p, "/") {
		v.addError(field, "path must start with '/'")
	}
}

func (v *Validator) validateCurrencies(currencies []Currency) {
	seen := make(map[string]bool, len(currencies))
	for i, c := range currencies {
		path := fmt.Sprintf("spec.currencies[%d]", i)

		if c.Name == "" {
			v.addError(path+".name", "name is required")
		}
		if !ValidAlphaCurrencyCode(c.ShortName) {
			v.addError(path+".shortName", fmt.Sprintf("%q is not an ISO 4217 currency code", c.ShortName))
		}
		if !isNumericCode(c.ISOCode) {
			v.addError(path+".isoCode", "isoCode must be a three digit numeric code")
		}
		if seen[c.ShortName] {
			v.addError(path+".shortName", fmt.Sprintf("duplicate currency %q", c.ShortName))
		}
		seen[c.ShortName] = true
	}
}

func (v *Validator) validateObservability(o *ObservabilityConfig) {
	switch strings.ToLower(o.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.addError("spec.observability.logging.level", "level must be one of debug, info, warn, error")
	}
	switch o.Logging.Format {
	case "json", "console":
	default:
		v.addError("spec.observability.logging.format", "format must be json or console")
	}
	if o.Metrics.Enabled && !strings.HasPrefix(o.Metrics.Path, "/") {
		v.addError("spec.observability.metrics.path", "path must start with '/'")
	}
	if r := o.Tracing.SamplingRate; r < 0 || r > 1 {
		v.addError("spec.observability.tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

func (v *Validator) validateRateLimit(rl *RateLimitConfig) {
	if rl.RequestsPerSecond <= 0 {
		v.addError("spec.rateLimit.requestsPerSecond", "requestsPerSecond must be positive")
	}
	if rl.Burst <= 0 {
		v.addError("spec.rateLimit.burst", "burst must be positive")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
