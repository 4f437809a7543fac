package audit

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

func observedLogger() (observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return observability.NewLoggerFromZap(zap.New(core)), logs
}

func quoteEvent() *Event {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	return NewEvent("quote", start).
		WithResult(OutcomeSuccess, "00", 200).
		WithURL("https://sandbox.api.visa.com/forexrates/v2/foreignexchangerates").
		WithDuration(150*time.Millisecond).
		WithCorrelation("req-1", "trace-1").
		WithQuote("USD", "EUR", "100.00").
		WithDestinationAmount("92.15")
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	event := quoteEvent()

	_, err := uuid.Parse(event.ID)
	assert.NoError(t, err)
	assert.Equal(t, time.UTC, event.Timestamp.Location())
	assert.Equal(t, 11, event.Timestamp.Hour())
	assert.True(t, event.Succeeded())
	assert.Empty(t, event.Error)

	other := NewEvent("quote", time.Now())
	assert.NotEqual(t, event.ID, other.ID)

	failed := NewEvent("probe", time.Now()).
		WithResult("handshake", "99", 0).
		WithError(errors.New("x509: certificate signed by unknown authority"))
	assert.False(t, failed.Succeeded())
	assert.Equal(t, "x509: certificate signed by unknown authority", failed.Error)
	assert.Empty(t, NewEvent("probe", time.Now()).WithError(nil).Error)
}

func TestLogRecorder(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	rec := NewLogRecorder(logger, WithMetrics(metrics))

	rec.Record(context.Background(), quoteEvent())
	rec.Record(context.Background(), NewEvent("probe", time.Now()).WithResult("timeout", "99", 0))

	entries := logs.All()
	require.Len(t, entries, 2)

	ok := entries[0]
	assert.Equal(t, zapcore.InfoLevel, ok.Level)
	assert.Equal(t, "fx call audited", ok.Message)
	fields := ok.ContextMap()
	assert.Equal(t, "audit", fields["component"])
	assert.Equal(t, "quote", fields["operation"])
	assert.Equal(t, int64(200), fields["http_status"])
	assert.Equal(t, "USD", fields["source_currency"])
	assert.Equal(t, "92.15", fields["destination_amount"])
	assert.Equal(t, "req-1", fields["request_id"])

	failed := entries[1]
	assert.Equal(t, zapcore.WarnLevel, failed.Level)
	assert.NotContains(t, failed.ContextMap(), "http_status")
	assert.NotContains(t, failed.ContextMap(), "source_currency")

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.eventsTotal.WithLabelValues("quote", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.eventsTotal.WithLabelValues("probe", "timeout")), 0)
	assert.NoError(t, rec.Close())
}

func TestNewMetrics_DuplicateRegistrationSharesCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first := NewMetrics("dup", reg)
	second := NewMetrics("dup", reg)

	second.RecordEvent(quoteEvent())
	assert.InDelta(t, 1, testutil.ToFloat64(first.eventsTotal.WithLabelValues("quote", "success")), 0)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordEvent(quoteEvent()) })
}

type recordingSink struct {
	events   []*Event
	closeErr error
}

func (r *recordingSink) Record(_ context.Context, event *Event) {
	r.events = append(r.events, event)
}

func (r *recordingSink) Close() error {
	return r.closeErr
}

func TestMulti(t *testing.T) {
	t.Parallel()

	a := &recordingSink{}
	b := &recordingSink{closeErr: errors.New("b failed")}
	rec := Multi(a, nil, b, NewNoopRecorder())

	event := quoteEvent()
	rec.Record(context.Background(), event)

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Same(t, event, a.events[0])
	assert.EqualError(t, rec.Close(), "b failed")
}

type fakeExec struct {
	sql      string
	args     []any
	deadline bool
	err      error
}

func (f *fakeExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	_, f.deadline = ctx.Deadline()
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestPostgresStore_Insert(t *testing.T) {
	t.Parallel()

	db := &fakeExec{}
	closed := false
	store := newPostgresStore(db, func() { closed = true }, WithWriteTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	event := quoteEvent()
	require.NoError(t, store.Insert(ctx, event), "cancelled request context does not abort the write")

	assert.Contains(t, db.sql, "INSERT INTO fx_call_audit")
	assert.True(t, db.deadline)
	require.Len(t, db.args, 15)
	assert.Equal(t, event.ID, db.args[0])
	assert.Equal(t, "quote", db.args[2])
	assert.Equal(t, 200, *db.args[5].(*int))
	assert.Equal(t, int64(150), db.args[7])
	assert.Equal(t, "USD", *db.args[10].(*string))
	assert.Nil(t, db.args[14].(*string))

	require.NoError(t, store.Close())
	assert.True(t, closed)
}

func TestPostgresStore_NullableStatus(t *testing.T) {
	t.Parallel()

	db := &fakeExec{}
	store := newPostgresStore(db, nil)

	require.NoError(t, store.Insert(context.Background(), NewEvent("probe", time.Now()).WithResult("network", "99", 0)))
	assert.Nil(t, db.args[5].(*int))
	assert.NoError(t, store.Close())
}

func TestPostgresStore_RecordLogsFailures(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	db := &fakeExec{err: errors.New("connection refused")}
	store := newPostgresStore(db, nil, WithStoreLogger(logger))

	event := quoteEvent()
	assert.NotPanics(t, func() { store.Record(context.Background(), event) })

	entries := logs.FilterMessage("failed to persist audit event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, event.ID, entries[0].ContextMap()["event_id"])
	assert.Contains(t, entries[0].ContextMap()["error"], "connection refused")
}

func TestNewPostgresStore_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresStore(context.Background(), "postgres://user@localhost:notaport/db")
	assert.ErrorContains(t, err, "parse audit database url")
}

func TestMigrations_Embedded(t *testing.T) {
	t.Parallel()

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/000001_create_fx_call_audit.up.sql",
		"migrations/000001_create_fx_call_audit.down.sql",
	}, names)

	up, err := fs.ReadFile(migrationsFS, "migrations/000001_create_fx_call_audit.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS fx_call_audit")
}

func TestMigrate_UnknownDriver(t *testing.T) {
	t.Parallel()

	err := Migrate("nosuchdb://localhost/audit", nil)
	assert.ErrorContains(t, err, "create audit migrator")
}
