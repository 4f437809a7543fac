// Package transport builds the HTTP client used for calls to the FX
// provider: mutual TLS with a custom trust validator, a minimum TLS
// version, a fixed per-call timeout, and static Basic credentials.
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avafx/internal/certs"
	"github.com/vyrodovalexey/avafx/internal/observability"
	"github.com/vyrodovalexey/avafx/internal/trust"
)

// DefaultTimeout bounds every upstream call end to end.
const DefaultTimeout = 30 * time.Second

// ErrInvalidConfig indicates that the transport configuration is unusable.
var ErrInvalidConfig = errors.New("invalid transport configuration")

// Config describes a Transport.
type Config struct {
	// BaseURL is the upstream origin; its host pins TLS server name checks.
	BaseURL string

	// Identity is the client certificate presented during the handshake.
	Identity *certs.ClientIdentity

	// Validator replaces platform trust when set.
	Validator *trust.Validator

	// MinTLSVersion is "TLS12" (default) or "TLS13".
	MinTLSVersion string

	// Timeout bounds each call; zero means DefaultTimeout.
	Timeout time.Duration

	// Username and Password are sent as Basic credentials when Username is set.
	Username string
	Password string

	CircuitBreaker BreakerConfig
}

// Transport is a configured client for one upstream origin. It is safe for
// concurrent use; each Do is a single attempt with no retry.
type Transport struct {
	client  *http.Client
	base    *http.Transport
	breaker *circuitBreaker
	timeout time.Duration
}

// Option configures Transport construction.
type Option func(*builder)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// WithTracer sets the tracer used for client spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *builder) {
		b.tracer = tracer
	}
}

// WithBreakerStateCallback registers a callback for circuit breaker
// state changes.
func WithBreakerStateCallback(fn BreakerStateFunc) Option {
	return func(b *builder) {
		b.stateCallback = fn
	}
}

type builder struct {
	cfg           Config
	logger        observability.Logger
	tracer        trace.Tracer
	stateCallback BreakerStateFunc
}

// New builds a Transport. Configuration problems are returned as errors
// and no partially configured transport is produced.
func New(cfg Config, opts ...Option) (*Transport, error) {
	b := &builder{
		cfg:    cfg,
		logger: observability.NopLogger(),
		tracer: otel.Tracer("avafx/transport"),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b.build()
}

func (b *builder) build() (*Transport, error) {
	base, err := url.Parse(b.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %w", ErrInvalidConfig, err)
	}
	if base.Scheme != "https" || base.Hostname() == "" {
		return nil, fmt.Errorf("%w: base URL must be an absolute https URL: %q", ErrInvalidConfig, b.cfg.BaseURL)
	}

	tlsConfig, err := b.buildTLSConfig(base.Hostname())
	if err != nil {
		return nil, err
	}

	timeout := b.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpTransport := http.DefaultTransport.(*http.Transport).Clone()
	httpTransport.TLSClientConfig = tlsConfig
	httpTransport.TLSHandshakeTimeout = timeout

	var rt http.RoundTripper = httpTransport
	if b.cfg.Username != "" {
		rt = newBasicAuthRoundTripper(rt, b.cfg.Username, b.cfg.Password)
	}

	var breaker *circuitBreaker
	if b.cfg.CircuitBreaker.Enabled {
		breaker = newCircuitBreaker(base.Host, b.cfg.CircuitBreaker, b.logger, b.stateCallback)
		rt = &breakerRoundTripper{next: rt, breaker: breaker}
	}

	rt = &tracingRoundTripper{next: rt, tracer: b.tracer}

	b.logger.Info("upstream transport configured",
		observability.String("baseUrl", base.Redacted()),
		observability.Duration("timeout", timeout),
		observability.Bool("basicAuth", b.cfg.Username != ""),
		observability.Bool("circuitBreaker", breaker != nil),
	)

	return &Transport{
		client: &http.Client{
			Transport: rt,
			Timeout:   timeout,
		},
		base:    httpTransport,
		breaker: breaker,
		timeout: timeout,
	}, nil
}

// Do sends req once.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

// Client returns the underlying HTTP client.
func (t *Transport) Client() *http.Client {
	return t.client
}

// Timeout returns the per-call timeout.
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// BreakerState returns the circuit breaker state name, or "disabled".
func (t *Transport) BreakerState() string {
	if t.breaker == nil {
		return "disabled"
	}
	return t.breaker.cb.State().String()
}

// Close releases idle connections.
func (t *Transport) Close() {
	t.base.CloseIdleConnections()
}
