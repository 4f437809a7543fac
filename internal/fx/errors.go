package fx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/vyrodovalexey/avafx/internal/transport"
	"github.com/vyrodovalexey/avafx/internal/trust"
)

// ErrInvalidRequest indicates a quote request that failed validation.
var ErrInvalidRequest = errors.New("invalid quote request")

// ErrEmptyResponse indicates a 2xx response without a JSON object.
var ErrEmptyResponse = errors.New("empty response body")

// ErrorKind classifies a failed call. Callers of the gateway only ever see
// the envelope; the kind feeds logs, metrics and the audit trail.
type ErrorKind string

// Error kinds.
const (
	KindSuccess     ErrorKind = "success"
	KindNetwork     ErrorKind = "network"
	KindHandshake   ErrorKind = "handshake"
	KindTimeout     ErrorKind = "timeout"
	KindStatus      ErrorKind = "status"
	KindDecode      ErrorKind = "decode"
	KindCircuitOpen ErrorKind = "circuit_open"
	KindValidation  ErrorKind = "validation"
	KindCanceled    ErrorKind = "canceled"
)

// CallError describes a failed upstream call.
type CallError struct {
	Op     string
	URL    string
	Kind   ErrorKind
	Status int
	Body   string
	Err    error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s %s: upstream returned status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallError) Unwrap() error {
	return e.Err
}

// failure renders a call error as an envelope. Status failures carry the
// HTTP status as the code; every other kind is CodeException.
func failure[T any](err *CallError) Envelope[T] {
	if err.Kind == KindStatus {
		return Envelope[T]{
			ResponseCode:    strconv.Itoa(err.Status),
			ResponseMessage: fmt.Sprintf("Error: %d - %s", err.Status, err.Body),
		}
	}
	return Envelope[T]{
		ResponseCode:    CodeException,
		ResponseMessage: "Exception: " + describe(err.Err),
	}
}

func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// classify maps a transport error to its kind.
func classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindSuccess
	case errors.Is(err, transport.ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case isTimeout(err):
		return KindTimeout
	case isHandshake(err):
		return KindHandshake
	default:
		return KindNetwork
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isHandshake(err error) bool {
	if errors.Is(err, trust.ErrUntrusted) {
		return true
	}

	var (
		verifyErr    *tls.CertificateVerificationError
		alertErr     tls.AlertError
		recordErr    tls.RecordHeaderError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &alertErr),
		errors.As(err, &recordErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}

	// Alerts sent by the peer arrive as an OpError around an unexported type.
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "remote error"
}
