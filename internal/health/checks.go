package health

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"
)

// BreakerCheck maps a circuit breaker state name to a check. An open
// breaker is unhealthy and a half-open one is degraded.
func BreakerCheck(state func() string) CheckFunc {
	return func(context.Context) Check {
		s := state()
		switch s {
		case "open":
			return Check{Status: StatusUnhealthy, Message: "circuit breaker is open"}
		case "half-open":
			return Check{Status: StatusDegraded, Message: "circuit breaker is half-open"}
		default:
			return Check{Status: StatusHealthy, Message: "circuit breaker is " + s}
		}
	}
}

// CertificateCheck reports on a certificate's validity window. A
// certificate that expires within warnWithin is degraded.
func CertificateCheck(cert func() *x509.Certificate, warnWithin time.Duration, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func(context.Context) Check {
		leaf := cert()
		if leaf == nil {
			return Check{Status: StatusUnhealthy, Message: "no certificate loaded"}
		}

		t := now()
		switch {
		case t.Before(leaf.NotBefore):
			return Check{Status: StatusUnhealthy, Message: "certificate not valid before " + leaf.NotBefore.UTC().Format(time.RFC3339)}
		case t.After(leaf.NotAfter):
			return Check{Status: StatusUnhealthy, Message: "certificate expired at " + leaf.NotAfter.UTC().Format(time.RFC3339)}
		case leaf.NotAfter.Sub(t) < warnWithin:
			return Check{Status: StatusDegraded, Message: "certificate expires at " + leaf.NotAfter.UTC().Format(time.RFC3339)}
		default:
			return Check{Status: StatusHealthy, Message: "valid until " + leaf.NotAfter.UTC().Format(time.RFC3339)}
		}
	}
}

// PingCheck wraps a connectivity probe such as a database ping. When
// critical is false a failure only degrades the report.
func PingCheck(ping func(ctx context.Context) error, critical bool) CheckFunc {
	return func(ctx context.Context) Check {
		if err := ping(ctx); err != nil {
			status := StatusDegraded
			if critical {
				status = StatusUnhealthy
			}
			return Check{Status: status, Message: fmt.Sprintf("ping failed: %v", err)}
		}
		return Check{Status: StatusHealthy, Message: "reachable"}
	}
}
