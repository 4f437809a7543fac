package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// DefaultBufferSize is the queue length used when none is given.
const DefaultBufferSize = 1024

type queuedEvent struct {
	ctx   context.Context
	event *Event
}

// AsyncRecorder queues events for a single background worker that hands
// them to the wrapped recorder, so Record never waits on it. When the
// queue is full the event is dropped and logged.
type AsyncRecorder struct {
	next    Recorder
	logger  observability.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan queuedEvent

	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// AsyncOption configures an AsyncRecorder.
type AsyncOption func(*AsyncRecorder)

// WithAsyncLogger sets the logger used to report dropped events.
func WithAsyncLogger(logger observability.Logger) AsyncOption {
	return func(r *AsyncRecorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDropMetrics counts dropped events.
func WithDropMetrics(metrics *Metrics) AsyncOption {
	return func(r *AsyncRecorder) {
		r.metrics = metrics
	}
}

// NewAsyncRecorder starts the worker that drains up to size queued events
// into next. A size below one means DefaultBufferSize.
func NewAsyncRecorder(next Recorder, size int, opts ...AsyncOption) *AsyncRecorder {
	if size < 1 {
		size = DefaultBufferSize
	}
	r := &AsyncRecorder{
		next:   next,
		logger: observability.NopLogger(),
		queue:  make(chan queuedEvent, size),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.run()
	return r
}

// Record implements Recorder. The event is queued with ctx detached from
// its cancellation, keeping the values used for tracing.
func (r *AsyncRecorder) Record(ctx context.Context, event *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(event, "audit recorder closed, event dropped")
		return
	}

	select {
	case r.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		r.drop(event, "audit queue full, event dropped")
	}
}

// Dropped returns the number of events discarded so far.
func (r *AsyncRecorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events, waits for the queued ones to be written
// and then closes the wrapped recorder.
func (r *AsyncRecorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()

		<-r.done
		r.closeErr = r.next.Close()
	})
	return r.closeErr
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for q := range r.queue {
		r.next.Record(q.ctx, q.event)
	}
}

func (r *AsyncRecorder) drop(event *Event, msg string) {
	r.dropped.Add(1)
	r.metrics.RecordDropped()
	r.logger.Warn(msg,
		observability.String("event_id", event.ID),
		observability.String("operation", event.Operation),
		observability.String("outcome", event.Outcome),
	)
}
