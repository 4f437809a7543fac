// Package api exposes the FX gateway over HTTP.
//
// Routes:
//
//	GET  /api                     liveness banner
//	GET  /api/health              aggregated health report
//	GET  /api/visa                API banner
//	GET  /api/visa/hello-world    provider connectivity probe
//	POST /api/visa/fx-rate        FX quote
//	GET  /api/visa/currencies     reference currency list
//
// Provider failures are carried in the response envelope with HTTP 200;
// only a malformed request body is rejected with 400.
package api
