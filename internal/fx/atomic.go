package fx

import (
	"context"
	"sync/atomic"
)

// Service is the call surface shared by Gateway and AtomicGateway.
type Service interface {
	Probe(ctx context.Context) Envelope[ProbeResponse]
	Quote(ctx context.Context, req QuoteRequest) Envelope[QuoteResponse]
}

var (
	_ Service = (*Gateway)(nil)
	_ Service = (*AtomicGateway)(nil)
)

// AtomicGateway delegates to the current Gateway and lets a reload swap
// in a new one without locking. Calls already running keep the gateway
// they started on.
type AtomicGateway struct {
	current atomic.Pointer[Gateway]
}

// NewAtomicGateway creates an AtomicGateway holding g.
func NewAtomicGateway(g *Gateway) *AtomicGateway {
	a := &AtomicGateway{}
	a.current.Store(g)
	return a
}

// Swap stores g and returns the previous gateway. The caller decides when
// to Close the previous one.
func (a *AtomicGateway) Swap(g *Gateway) *Gateway {
	return a.current.Swap(g)
}

// Load returns the current gateway.
func (a *AtomicGateway) Load() *Gateway {
	return a.current.Load()
}

// Probe delegates to the current gateway.
func (a *AtomicGateway) Probe(ctx context.Context) Envelope[ProbeResponse] {
	return a.Load().Probe(ctx)
}

// Quote delegates to the current gateway.
func (a *AtomicGateway) Quote(ctx context.Context, req QuoteRequest) Envelope[QuoteResponse] {
	return a.Load().Quote(ctx, req)
}
