package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call
// without contacting the upstream.
var ErrCircuitOpen = errors.New("circuit breaker open")

var cbTracer = otel.Tracer("avafx/circuitbreaker")

// BreakerConfig configures the optional upstream circuit breaker.
type BreakerConfig struct {
	Enabled bool

	// Threshold is the minimum number of requests in an interval before
	// the failure ratio can trip the breaker.
	Threshold int

	// Interval is the closed-state window after which counts reset.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// BreakerStateFunc is called when the circuit breaker changes state.
// State values are 0=closed, 1=half-open, 2=open.
type BreakerStateFunc func(name string, state int)

type circuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func newCircuitBreaker(
	name string,
	cfg BreakerConfig,
	logger observability.Logger,
	callback BreakerStateFunc,
) *circuitBreaker {
	threshold := safeIntToUint32(cfg.Threshold)
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)

			_, span := cbTracer.Start(context.Background(),
				"circuitbreaker.state_change",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			span.AddEvent("state_change", trace.WithAttributes(
				attribute.String("circuitbreaker.name", name),
				attribute.String("circuitbreaker.from", from.String()),
				attribute.String("circuitbreaker.to", to.String()),
			))
			span.End()

			if callback != nil {
				callback(name, int(to))
			}
		},
	}

	return &circuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// errUpstreamServer marks a 5xx response as a breaker failure while the
// response itself is still returned to the caller.
type errUpstreamServer struct {
	status int
}

func (e errUpstreamServer) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

type breakerRoundTripper struct {
	next    http.RoundTripper
	breaker *circuitBreaker
}

// RoundTrip implements http.RoundTripper.
func (rt *breakerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	_, err := rt.breaker.cb.Execute(func() (interface{}, error) {
		var rtErr error
		resp, rtErr = rt.next.RoundTrip(req)
		if rtErr != nil {
			return nil, rtErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, errUpstreamServer{status: resp.StatusCode}
		}
		return nil, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	case resp != nil:
		return resp, nil
	default:
		return nil, err
	}
}
