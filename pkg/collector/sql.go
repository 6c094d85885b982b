package collector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// database drivers registered for sql.Open
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// Dialect selects the SQL flavor for placeholder binding
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// SQLStore is an EventStore backed by Postgres or SQLite
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// SQLOption customizes a SQLStore
type SQLOption func(*SQLStore)

// WithSQLLogger sets the diagnostics logger
func WithSQLLogger(l *observability.Logger) SQLOption {
	return func(s *SQLStore) { s.logger = l }
}

// WithSQLMetrics times store operations in the process metrics
func WithSQLMetrics(m *observability.Metrics) SQLOption {
	return func(s *SQLStore) { s.metrics = m }
}

// WithSQLClock overrides the clock, for tests
func WithSQLClock(now func() time.Time) SQLOption {
	return func(s *SQLStore) { s.now = now }
}

// NewSQLStore wraps an open database handle. The caller owns opening the
// connection; the store owns closing it.
func NewSQLStore(db *sql.DB, dialect Dialect, opts ...SQLOption) (*SQLStore, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	s := &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  observability.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "event_store")
	return s, nil
}

// OpenSQLStore opens a database connection for the given driver and DSN and
// runs migrations.
func OpenSQLStore(ctx context.Context, driver, dsn string, opts ...SQLOption) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	store, err := NewSQLStore(db, Dialect(driver), opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the events table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
		%s,
		name TEXT NOT NULL,
		session_id TEXT NOT NULL,
		user_id BIGINT,
		ts BIGINT NOT NULL,
		properties TEXT,
		context TEXT,
		received_at TIMESTAMP NOT NULL
	)`, idColumn)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

// rebind converts ? placeholders to the dialect's native form
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	backend := string(s.dialect)
	s.metrics.StoreOperationDuration.WithLabelValues(op, backend).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues(op, backend).Inc()
	}
}

// Insert implements EventStore
func (s *SQLStore) Insert(ctx context.Context, event telemetry.Event) (id int64, err error) {
	defer func(start time.Time) { s.observe("insert", start, err) }(time.Now())

	props, err := json.Marshal(event.Properties)
	if err != nil {
		return 0, fmt.Errorf("failed to encode properties: %w", err)
	}
	evCtx, err := json.Marshal(event.Context)
	if err != nil {
		return 0, fmt.Errorf("failed to encode context: %w", err)
	}

	receivedAt := s.now().UTC()
	if s.dialect == DialectPostgres {
		query := s.rebind(`INSERT INTO events (name, session_id, user_id, ts, properties, context, received_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		err = s.db.QueryRowContext(ctx, query,
			event.Name, event.SessionID, event.UserID, event.Timestamp,
			string(props), string(evCtx), receivedAt,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event: %w", err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (name, session_id, user_id, ts, properties, context, received_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.Name, event.SessionID, event.UserID, event.Timestamp,
		string(props), string(evCtx), receivedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// List implements EventStore
func (s *SQLStore) List(ctx context.Context, limit, offset int) (events []StoredEvent, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())

	if limit <= 0 {
		limit = 100
	}
	query := s.rebind(`SELECT id, name, session_id, user_id, ts, properties, context, received_at
		FROM events ORDER BY id LIMIT ? OFFSET ?`)
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Since implements EventStore
func (s *SQLStore) Since(ctx context.Context, since time.Time) (events []StoredEvent, err error) {
	defer func(start time.Time) { s.observe("since", start, err) }(time.Now())

	query := s.rebind(`SELECT id, name, session_id, user_id, ts, properties, context, received_at
		FROM events WHERE received_at >= ? ORDER BY id`)
	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events since %s: %w", since, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]StoredEvent, error) {
	var out []StoredEvent
	for rows.Next() {
		var (
			stored     StoredEvent
			userID     sql.NullInt64
			props      sql.NullString
			evCtx      sql.NullString
			receivedAt time.Time
		)
		if err := rows.Scan(&stored.ID, &stored.Event.Name, &stored.Event.SessionID,
			&userID, &stored.Event.Timestamp, &props, &evCtx, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if userID.Valid {
			stored.Event.UserID = &userID.Int64
		}
		if props.Valid && props.String != "" && props.String != "null" {
			if err := json.Unmarshal([]byte(props.String), &stored.Event.Properties); err != nil {
				return nil, fmt.Errorf("failed to decode properties for event %d: %w", stored.ID, err)
			}
		}
		if evCtx.Valid && evCtx.String != "" && evCtx.String != "null" {
			var ec telemetry.EventContext
			if err := json.Unmarshal([]byte(evCtx.String), &ec); err != nil {
				return nil, fmt.Errorf("failed to decode context for event %d: %w", stored.ID, err)
			}
			stored.Event.Context = &ec
		}
		stored.ReceivedAt = receivedAt
		out = append(out, stored)
	}
	return out, rows.Err()
}

// Stats implements EventStore
func (s *SQLStore) Stats(ctx context.Context) (stats Stats, err error) {
	defer func(start time.Time) { s.observe("stats", start, err) }(time.Now())

	stats.CountsByName = make(map[string]int64)
	rows, err := s.db.QueryContext(ctx, `SELECT name, COUNT(*) FROM events GROUP BY name`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		stats.CountsByName[name] = count
		stats.TotalEvents += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT session_id) FROM events`).Scan(&stats.UniqueSession)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count sessions: %w", err)
	}
	return stats, nil
}

// Close implements EventStore
func (s *SQLStore) Close() error {
	return s.db.Close()
}
