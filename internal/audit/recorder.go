package audit

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// Recorder receives audit events. Implementations must be safe for
// concurrent use and must not fail the call being audited.
type Recorder interface {
	// Record stores or emits the event.
	Record(ctx context.Context, event *Event)

	// Close releases resources held by the recorder.
	Close() error
}

type noopRecorder struct{}

// NewNoopRecorder returns a recorder that discards events.
func NewNoopRecorder() Recorder {
	return noopRecorder{}
}

func (noopRecorder) Record(context.Context, *Event) {}

func (noopRecorder) Close() error { return nil }

// Metrics contains audit metrics.
type Metrics struct {
	eventsTotal  *prometheus.CounterVec
	droppedTotal prometheus.Counter
}

// NewMetrics creates audit metrics registered with registerer. Duplicate
// registration is ignored.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fxgateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "dropped_events_total",
				Help:      "Total number of audit events dropped because the write queue was full",
			},
		),
	}

	if err := registerer.Register(m.eventsTotal); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				m.eventsTotal = existing
			}
		}
	}
	if err := registerer.Register(m.droppedTotal); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				m.droppedTotal = existing
			}
		}
	}

	return m
}

// RecordDropped counts an event lost to a full queue.
func (m *Metrics) RecordDropped() {
	if m == nil || m.droppedTotal == nil {
		return
	}
	m.droppedTotal.Inc()
}

// RecordEvent counts an event.
func (m *Metrics) RecordEvent(event *Event) {
	if m == nil || m.eventsTotal == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event.Operation, event.Outcome).Inc()
}

// LogRecorder writes audit events to the structured logger.
type LogRecorder struct {
	logger  observability.Logger
	metrics *Metrics
}

// LogRecorderOption configures a LogRecorder.
type LogRecorderOption func(*LogRecorder)

// WithMetrics counts recorded events.
func WithMetrics(metrics *Metrics) LogRecorderOption {
	return func(r *LogRecorder) {
		r.metrics = metrics
	}
}

// NewLogRecorder creates a recorder that logs each event tagged with
// component=audit.
func NewLogRecorder(logger observability.Logger, opts ...LogRecorderOption) *LogRecorder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	r := &LogRecorder{
		logger: logger.With(observability.String("component", "audit")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements Recorder.
func (r *LogRecorder) Record(_ context.Context, event *Event) {
	r.metrics.RecordEvent(event)

	fields := []observability.Field{
		observability.String("event_id", event.ID),
		observability.String("operation", event.Operation),
		observability.String("outcome", event.Outcome),
		observability.String("response_code", event.ResponseCode),
		observability.String("url", event.URL),
		observability.Duration("duration", event.Duration),
	}
	if event.HTTPStatus != 0 {
		fields = append(fields, observability.Int("http_status", event.HTTPStatus))
	}
	if event.RequestID != "" {
		fields = append(fields, observability.String("request_id", event.RequestID))
	}
	if event.TraceID != "" {
		fields = append(fields, observability.String("trace_id", event.TraceID))
	}
	if event.SourceCurrency != "" {
		fields = append(fields,
			observability.String("source_currency", event.SourceCurrency),
			observability.String("destination_currency", event.DestinationCurrency),
			observability.String("source_amount", event.SourceAmount),
		)
	}
	if event.DestinationAmount != "" {
		fields = append(fields, observability.String("destination_amount", event.DestinationAmount))
	}
	if event.Error != "" {
		fields = append(fields, observability.String("error", event.Error))
	}

	if event.Succeeded() {
		r.logger.Info("fx call audited", fields...)
		return
	}
	r.logger.Warn("fx call audited", fields...)
}

// Close implements Recorder.
func (r *LogRecorder) Close() error {
	return nil
}

type multiRecorder struct {
	recorders []Recorder
}

// Multi fans events out to every recorder in order. Nil recorders are
// skipped.
func Multi(recorders ...Recorder) Recorder {
	rs := make([]Recorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return &multiRecorder{recorders: rs}
}

func (m *multiRecorder) Record(ctx context.Context, event *Event) {
	for _, r := range m.recorders {
		r.Record(ctx, event)
	}
}

func (m *multiRecorder) Close() error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
