package audit

import (
	"time"

	"github.com/google/uuid"
)

// Outcome values other than OutcomeSuccess name the failure class of the
// call, for example "handshake" or "status".
const OutcomeSuccess = "success"

// Event records one FX gateway call.
type Event struct {
	// ID is a unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the call started.
	Timestamp time.Time `json:"timestamp"`

	// Operation is "probe" or "quote".
	Operation string `json:"operation"`

	// Outcome is OutcomeSuccess or the failure class.
	Outcome string `json:"outcome"`

	// ResponseCode is the envelope code returned to the caller.
	ResponseCode string `json:"response_code"`

	// HTTPStatus is the upstream status, zero when no response arrived.
	HTTPStatus int `json:"http_status,omitempty"`

	// URL is the upstream URL without credentials.
	URL string `json:"url"`

	Duration time.Duration `json:"duration"`

	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`

	SourceCurrency      string `json:"source_currency,omitempty"`
	DestinationCurrency string `json:"destination_currency,omitempty"`
	SourceAmount        string `json:"source_amount,omitempty"`
	DestinationAmount   string `json:"destination_amount,omitempty"`

	// Error is the failure description, empty on success.
	Error string `json:"error,omitempty"`
}

// NewEvent creates an event for operation stamped with a fresh ID and the
// given start time.
func NewEvent(operation string, start time.Time) *Event {
	return &Event{
		ID:        generateEventID(),
		Timestamp: start.UTC(),
		Operation: operation,
	}
}

// WithResult sets the outcome, envelope code and HTTP status.
func (e *Event) WithResult(outcome, responseCode string, httpStatus int) *Event {
	e.Outcome = outcome
	e.ResponseCode = responseCode
	e.HTTPStatus = httpStatus
	return e
}

// WithURL sets the upstream URL.
func (e *Event) WithURL(url string) *Event {
	e.URL = url
	return e
}

// WithDuration sets the duration.
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.Duration = duration
	return e
}

// WithCorrelation sets the request and trace IDs.
func (e *Event) WithCorrelation(requestID, traceID string) *Event {
	e.RequestID = requestID
	e.TraceID = traceID
	return e
}

// WithQuote sets the currencies and amounts of a quote call.
func (e *Event) WithQuote(sourceCurrency, destinationCurrency, sourceAmount string) *Event {
	e.SourceCurrency = sourceCurrency
	e.DestinationCurrency = destinationCurrency
	e.SourceAmount = sourceAmount
	return e
}

// WithDestinationAmount sets the quoted destination amount.
func (e *Event) WithDestinationAmount(amount string) *Event {
	e.DestinationAmount = amount
	return e
}

// WithError sets the failure description.
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Succeeded reports whether the call succeeded.
func (e *Event) Succeeded() bool {
	return e.Outcome == OutcomeSuccess
}

func generateEventID() string {
	return uuid.New().String()
}
