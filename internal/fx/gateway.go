package fx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avafx/internal/audit"
	"github.com/vyrodovalexey/avafx/internal/certs"
	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/observability"
	"github.com/vyrodovalexey/avafx/internal/transport"
	"github.com/vyrodovalexey/avafx/internal/trust"
)

// maxResponseBody caps how much of an upstream response is read.
const maxResponseBody = 1 << 20

// MetricsRecorder receives gateway metrics. *observability.Metrics
// implements it.
type MetricsRecorder interface {
	RecordUpstreamCall(operation, code, outcome string, duration time.Duration)
	SetCertificateExpiry(subject, certType string, notAfter time.Time)
	SetCircuitBreakerState(name string, state int)
}

type noopMetrics struct{}

func (noopMetrics) RecordUpstreamCall(string, string, string, time.Duration) {}

func (noopMetrics) SetCertificateExpiry(string, string, time.Time) {}

func (noopMetrics) SetCircuitBreakerState(string, int) {}

// Gateway calls the FX provider. It holds no mutable state across calls
// and is safe for concurrent use.
type Gateway struct {
	transport *transport.Transport
	probeURL  string
	quoteURL  string
	defaults  config.QuoteDefaults
	identity  *certs.ClientIdentity
	bundle    *certs.TrustBundle

	validate *validator.Validate
	logger   observability.Logger
	metrics  MetricsRecorder
	auditor  audit.Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

// WithAuditor sets the audit recorder.
func WithAuditor(auditor audit.Recorder) Option {
	return func(g *Gateway) {
		g.auditor = auditor
	}
}

// WithTracer sets the tracer for gateway and transport spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// WithClock overrides the clock used for probe timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New loads the client identity and trust bundle named by cfg and builds
// the transport. Any failure is returned and no gateway is produced.
func New(cfg config.FXConfig, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		logger:  observability.NopLogger(),
		metrics: noopMetrics{},
		auditor: audit.NewNoopRecorder(),
		tracer:  otel.Tracer("avafx/fx"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	identity, err := loadIdentity(cfg)
	if err != nil {
		return nil, err
	}
	g.identity = identity

	trustValidator, err := g.loadTrust(cfg)
	if err != nil {
		return nil, err
	}

	g.observeCertificates()

	tr, err := transport.New(transport.Config{
		BaseURL:        cfg.BaseURL,
		Identity:       identity,
		Validator:      trustValidator,
		MinTLSVersion:  cfg.MinTLSVersion,
		Timeout:        cfg.Timeout.Duration(),
		Username:       cfg.Username,
		Password:       cfg.Password,
		CircuitBreaker: breakerConfig(cfg.CircuitBreaker),
	},
		transport.WithLogger(g.logger),
		transport.WithTracer(g.tracer),
		transport.WithBreakerStateCallback(g.metrics.SetCircuitBreakerState),
	)
	if err != nil {
		return nil, err
	}
	g.transport = tr

	if g.probeURL, err = joinURL(cfg.BaseURL, cfg.HelloWorldPath); err != nil {
		return nil, err
	}
	if g.quoteURL, err = joinURL(cfg.BaseURL, cfg.FXPath); err != nil {
		return nil, err
	}

	g.defaults = completeDefaults(cfg.Defaults)
	g.validate = newRequestValidator()

	g.logger.Info("fx gateway ready",
		observability.String("probeUrl", g.probeURL),
		observability.String("quoteUrl", g.quoteURL),
		observability.String("clientCertificate", identity.String()),
		observability.Bool("customTrust", trustValidator != nil),
	)

	return g, nil
}

func loadIdentity(cfg config.FXConfig) (*certs.ClientIdentity, error) {
	if cfg.UsesPEMIdentity() {
		return certs.LoadClientIdentityPEM(cfg.ClientCert.Path, cfg.ClientCert.KeyPath)
	}
	return certs.LoadClientIdentity(cfg.ClientCert.Path, cfg.ClientCert.Passphrase)
}

// loadTrust returns the custom trust validator, or nil for platform trust
// when no bundle is configured or an empty bundle is explicitly allowed.
func (g *Gateway) loadTrust(cfg config.FXConfig) (*trust.Validator, error) {
	if cfg.CABundlePath == "" {
		g.logger.Warn("no CA bundle configured, using platform trust store")
		return nil, nil
	}

	bundle, err := certs.LoadTrustBundle(cfg.CABundlePath)
	if err != nil {
		return nil, err
	}
	g.bundle = bundle

	if bundle.Empty() {
		if !cfg.AllowEmptyCABundle {
			return nil, fmt.Errorf("%w: %s", certs.ErrEmptyTrustBundle, cfg.CABundlePath)
		}
		g.logger.Warn("CA bundle holds no certificates, falling back to platform trust store",
			observability.String("path", cfg.CABundlePath),
		)
		return nil, nil
	}

	return trust.NewValidator(bundle)
}

func (g *Gateway) observeCertificates() {
	now := g.now()

	leaf := g.identity.Leaf()
	if leaf != nil {
		g.metrics.SetCertificateExpiry(leaf.Subject.String(), "client", leaf.NotAfter)
	}
	if g.identity.Expired(now) {
		g.logger.Warn("client certificate has expired",
			observability.String("certificate", g.identity.String()),
		)
	}

	if g.bundle == nil {
		return
	}
	for _, c := range g.bundle.Certificates() {
		g.metrics.SetCertificateExpiry(c.Subject.String(), "ca", c.NotAfter)
		if now.After(c.NotAfter) {
			g.logger.Warn("trust anchor has expired",
				observability.String("subject", c.Subject.String()),
				observability.Time("notAfter", c.NotAfter),
			)
		}
	}
}

func breakerConfig(cb *config.CircuitBreakerConfig) transport.BreakerConfig {
	if !cb.IsEnabled() {
		return transport.BreakerConfig{}
	}
	return transport.BreakerConfig{
		Enabled:   true,
		Threshold: cb.Threshold,
		Interval:  cb.Interval.Duration(),
		Timeout:   cb.Timeout.Duration(),
	}
}

func completeDefaults(d config.QuoteDefaults) config.QuoteDefaults {
	if d.AcquirerBIN == 0 {
		d.AcquirerBIN = config.DefaultAcquirerBIN
	}
	if d.RateProductCode == "" {
		d.RateProductCode = config.DefaultRateProductCode
	}
	if d.MarkupRate == "" {
		d.MarkupRate = config.DefaultMarkupRate
	}
	return d
}

func joinURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", fmt.Errorf("%w: invalid upstream path %q: %w", transport.ErrInvalidConfig, path, err)
	}
	return u.String(), nil
}

// Probe checks connectivity with the provider's hello-world endpoint. The
// returned timestamp is the call time, not the provider's.
func (g *Gateway) Probe(ctx context.Context) Envelope[ProbeResponse] {
	c := g.begin(ctx, OperationProbe, http.MethodGet, g.probeURL)
	defer c.end()

	var env Envelope[ProbeResponse]
	data, callErr := g.roundTrip(c, nil)
	if callErr == nil {
		var out *ProbeResponse
		out, callErr = decode[ProbeResponse](c, data)
		if callErr == nil {
			out.Timestamp = g.now().UTC().Format(time.RFC3339Nano)
			env = Envelope[ProbeResponse]{
				ResponseCode:    CodeSuccess,
				ResponseMessage: MessageProbeSuccess,
				Result:          out,
			}
		}
	}
	if callErr != nil {
		env = failure[ProbeResponse](callErr)
	}

	g.finish(c, env.ResponseCode, callErr)
	return env
}

// Quote requests an FX quote. Empty rate product code, markup rate, BIN
// and settlement currency are filled from the configured defaults before
// the request is validated and sent.
func (g *Gateway) Quote(ctx context.Context, req QuoteRequest) Envelope[QuoteResponse] {
	c := g.begin(ctx, OperationQuote, http.MethodPost, g.quoteURL)
	defer c.end()

	req = g.prepare(req)
	c.event.WithQuote(req.SourceCurrencyCode, req.DestinationCurrencyCode, req.SourceAmount)
	c.span.SetAttributes(
		attribute.String("fx.source_currency", req.SourceCurrencyCode),
		attribute.String("fx.destination_currency", req.DestinationCurrencyCode),
	)

	var env Envelope[QuoteResponse]
	callErr := g.validateRequest(c, req)
	if callErr == nil {
		var data []byte
		data, callErr = g.roundTrip(c, req)
		if callErr == nil {
			var out *QuoteResponse
			out, callErr = decode[QuoteResponse](c, data)
			if callErr == nil {
				c.event.WithDestinationAmount(out.DestinationAmount.String())
				env = Envelope[QuoteResponse]{
					ResponseCode:    CodeSuccess,
					ResponseMessage: MessageQuoteSuccess,
					Result:          out,
				}
			}
		}
	}
	if callErr != nil {
		env = failure[QuoteResponse](callErr)
	}

	g.finish(c, env.ResponseCode, callErr)
	return env
}

// Close releases idle upstream connections.
func (g *Gateway) Close() {
	g.transport.Close()
}

// BreakerState reports the circuit breaker state, or "disabled".
func (g *Gateway) BreakerState() string {
	return g.transport.BreakerState()
}

// Identity returns the loaded client identity.
func (g *Gateway) Identity() *certs.ClientIdentity {
	return g.identity
}

// prepare stamps defaults and normalises currency codes.
func (g *Gateway) prepare(req QuoteRequest) QuoteRequest {
	req.SourceCurrencyCode = normalizeCurrency(req.SourceCurrencyCode)
	req.DestinationCurrencyCode = normalizeCurrency(req.DestinationCurrencyCode)
	req.SourceAmount = strings.TrimSpace(req.SourceAmount)

	if req.AcquirerDetails.Bin == 0 {
		req.AcquirerDetails.Bin = g.defaults.AcquirerBIN
	}
	settlement := &req.AcquirerDetails.Settlement
	if settlement.CurrencyCode == "" {
		settlement.CurrencyCode = g.defaults.SettlementCurrencyCode
	}
	if settlement.CurrencyCode == "" {
		settlement.CurrencyCode = req.SourceCurrencyCode
	}
	settlement.CurrencyCode = normalizeCurrency(settlement.CurrencyCode)

	if req.RateProductCode == "" {
		req.RateProductCode = g.defaults.RateProductCode
	}
	if req.MarkupRate == "" {
		req.MarkupRate = g.defaults.MarkupRate
	}
	return req
}

func (g *Gateway) validateRequest(c *call, req QuoteRequest) *CallError {
	if err := g.validate.Struct(req); err != nil {
		return c.fail(KindValidation, describeValidation(err))
	}
	return nil
}

// call carries the per-call state shared by the gateway helpers.
type call struct {
	ctx    context.Context
	op     string
	method string
	url    string
	start  time.Time
	status int
	span   trace.Span
	event  *audit.Event
}

func (g *Gateway) begin(ctx context.Context, op, method, target string) *call {
	ctx, span := g.tracer.Start(ctx, "fx."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("fx.operation", op),
			attribute.String("url.full", target),
		),
	)

	start := g.now()
	return &call{
		ctx:    ctx,
		op:     op,
		method: method,
		url:    target,
		start:  start,
		span:   span,
		event:  audit.NewEvent(op, start).WithURL(target),
	}
}

func (c *call) end() {
	c.span.End()
}

func (c *call) fail(kind ErrorKind, err error) *CallError {
	return &CallError{Op: c.op, URL: c.url, Kind: kind, Status: c.status, Err: err}
}

// roundTrip sends one request and returns the body of a 2xx response.
func (g *Gateway) roundTrip(c *call, payload any) ([]byte, *CallError) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, c.fail(KindValidation, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(c.ctx, c.method, c.url, body)
	if err != nil {
		return nil, c.fail(KindNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := observability.RequestIDFromContext(c.ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	g.logger.WithContext(c.ctx).Debug("sending upstream request",
		observability.Operation(c.op),
		observability.String("method", c.method),
		observability.UpstreamURL(c.url),
	)

	resp, err := g.transport.Do(req)
	if err != nil {
		return nil, c.fail(classify(err), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.status = resp.StatusCode
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, c.fail(classify(err), fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		callErr := c.fail(KindStatus, nil)
		callErr.Body = string(data)
		return nil, callErr
	}

	return data, nil
}

func decode[T any](c *call, data []byte) (*T, *CallError) {
	var out *T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, c.fail(KindDecode, fmt.Errorf("decode response: %w", err))
	}
	if out == nil {
		return nil, c.fail(KindDecode, ErrEmptyResponse)
	}
	return out, nil
}

// finish logs, measures, traces and audits a completed call.
func (g *Gateway) finish(c *call, code string, callErr *CallError) {
	duration := g.now().Sub(c.start)

	kind := KindSuccess
	var err error
	if callErr != nil {
		kind = callErr.Kind
		err = callErr
	}

	logger := g.logger.WithContext(c.ctx).With(
		observability.Operation(c.op),
		observability.UpstreamURL(c.url),
		observability.ResponseCode(code),
		observability.Outcome(string(kind)),
		observability.Duration("duration", duration),
	)
	if c.status != 0 {
		logger = logger.With(observability.Int("status", c.status))
	}

	switch {
	case callErr == nil:
		logger.Info("upstream call succeeded")
	case kind == KindStatus:
		logger.Warn("upstream returned error status", observability.Body(callErr.Body))
	default:
		logger.Error("upstream call failed", observability.Error(callErr.Err))
	}

	g.metrics.RecordUpstreamCall(c.op, code, string(kind), duration)

	c.span.SetAttributes(
		attribute.String("fx.response_code", code),
		attribute.String("fx.outcome", string(kind)),
	)
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, string(kind))
	} else {
		c.span.SetStatus(codes.Ok, "")
	}

	c.event.
		WithResult(string(kind), code, c.status).
		WithDuration(duration).
		WithCorrelation(
			observability.RequestIDFromContext(c.ctx),
			observability.TraceIDFromContext(c.ctx),
		).
		WithError(err)
	g.auditor.Record(c.ctx, c.event)
}
