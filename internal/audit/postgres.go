package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

// DefaultWriteTimeout bounds a single audit insert.
const DefaultWriteTimeout = 2 * time.Second

const insertEventSQL = `INSERT INTO fx_call_audit (
	id, occurred_at, operation, outcome, response_code, http_status, url, duration_ms,
	request_id, trace_id, source_currency, destination_currency, source_amount,
	destination_amount, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists audit events in the fx_call_audit table.
type PostgresStore struct {
	db      execer
	ping    func(context.Context) error
	close   func()
	timeout time.Duration
	logger  observability.Logger
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithWriteTimeout sets the per-insert timeout.
func WithWriteTimeout(timeout time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithStoreLogger sets the logger used to report failed writes.
func WithStoreLogger(logger observability.Logger) PostgresOption {
	return func(s *PostgresStore) {
		s.logger = logger
	}
}

// NewPostgresStore connects a pgx pool to databaseURL and verifies the
// connection.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse audit database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create audit database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	s := newPostgresStore(pool, pool.Close, opts...)
	s.ping = pool.Ping
	return s, nil
}

func newPostgresStore(db execer, closeFn func(), opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:      db,
		close:   closeFn,
		timeout: DefaultWriteTimeout,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert writes event. It is bounded by the write timeout and is not
// cancelled when ctx is.
func (s *PostgresStore) Insert(ctx context.Context, event *Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var httpStatus *int
	if event.HTTPStatus != 0 {
		status := event.HTTPStatus
		httpStatus = &status
	}

	_, err := s.db.Exec(ctx, insertEventSQL,
		event.ID,
		event.Timestamp,
		event.Operation,
		event.Outcome,
		event.ResponseCode,
		httpStatus,
		event.URL,
		event.Duration.Milliseconds(),
		nullable(event.RequestID),
		nullable(event.TraceID),
		nullable(event.SourceCurrency),
		nullable(event.DestinationCurrency),
		nullable(event.SourceAmount),
		nullable(event.DestinationAmount),
		nullable(event.Error),
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", event.ID, err)
	}
	return nil
}

// Record implements Recorder. Write failures are logged.
func (s *PostgresStore) Record(ctx context.Context, event *Event) {
	if err := s.Insert(ctx, event); err != nil {
		s.logger.Error("failed to persist audit event",
			observability.String("event_id", event.ID),
			observability.Error(err),
		)
	}
}

// Ping checks that the audit database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
