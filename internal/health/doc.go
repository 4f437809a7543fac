// Package health aggregates the FX gateway's runtime checks into a single
// report served at /api/health.
//
// Checks cover the upstream circuit breaker, the client certificate's
// validity window and, when configured, the audit database:
//
//	checker := health.NewChecker(version, logger)
//	checker.RegisterCheck("circuit_breaker", health.BreakerCheck(gw.Load().BreakerState))
//	checker.RegisterCheck("audit_db", health.PingCheck(store.Ping, false))
//	router.GET("/api/health", checker.Handler())
package health
