// Package audit records every FX gateway call as an Event.
//
// Events always go to the structured logger through LogRecorder. When a
// database is configured, PostgresStore also persists them in the
// fx_call_audit table, whose schema Migrate creates from embedded SQL.
// Recorders never fail the audited call; write errors are logged.
//
//	rec := audit.Multi(
//	    audit.NewLogRecorder(logger),
//	    store,
//	)
//	rec.Record(ctx, audit.NewEvent("quote", time.Now()).
//	    WithResult("success", "00", 200))
package audit
