package collector

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/beacon/pkg/telemetry"
)

func newMockStore(t *testing.T, dialect Dialect) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db, dialect)
	require.NoError(t, err)
	return store, mock
}

func TestNewSQLStoreRejectsUnknownDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, Dialect("mysql"))
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg, _ := newMockStore(t, DialectPostgres)
	lite, _ := newMockStore(t, DialectSQLite)

	assert.Equal(t, "SELECT * FROM events WHERE id = $1 AND name = $2",
		pg.rebind("SELECT * FROM events WHERE id = ? AND name = ?"))
	assert.Equal(t, "SELECT * FROM events WHERE id = ? AND name = ?",
		lite.rebind("SELECT * FROM events WHERE id = ? AND name = ?"))
}

func TestSQLStoreMigrate(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreInsertPostgres(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)

	userID := int64(7)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO events`)).
		WithArgs("page_view", "s1", userID, int64(1700000000000), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := store.Insert(context.Background(), telemetry.Event{
		Name:      "page_view",
		SessionID: "s1",
		UserID:    &userID,
		Timestamp: 1700000000000,
		Properties: map[string]any{
			"page": "home",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreInsertSQLite(t *testing.T) {
	store, mock := newMockStore(t, DialectSQLite)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO events`)).
		WillReturnResult(sqlmock.NewResult(5, 1))

	id, err := store.Insert(context.Background(), telemetry.Event{Name: "click", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreList(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)

	receivedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "session_id", "user_id", "ts", "properties", "context", "received_at"}).
		AddRow(int64(1), "page_view", "s1", nil, int64(1700000000000),
			`{"page":"home"}`, `{"url":"https://example.com"}`, receivedAt).
		AddRow(int64(2), "click", "s1", int64(7), int64(1700000001000), nil, nil, receivedAt)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, session_id, user_id, ts, properties, context, received_at`)).
		WithArgs(100, 0).
		WillReturnRows(rows)

	events, err := store.List(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "page_view", events[0].Event.Name)
	assert.Equal(t, "home", events[0].Event.Properties["page"])
	require.NotNil(t, events[0].Event.Context)
	assert.Equal(t, "https://example.com", events[0].Event.Context.URL)
	assert.Nil(t, events[0].Event.UserID)

	require.NotNil(t, events[1].Event.UserID)
	assert.Equal(t, int64(7), *events[1].Event.UserID)
	assert.Nil(t, events[1].Event.Properties)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreStats(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name, COUNT(*) FROM events GROUP BY name`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "count"}).
			AddRow("page_view", int64(10)).
			AddRow("click", int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT session_id) FROM events`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(15), stats.TotalEvents)
	assert.Equal(t, int64(10), stats.CountsByName["page_view"])
	assert.Equal(t, int64(3), stats.UniqueSession)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreInsertError(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO events`)).
		WillReturnError(assert.AnError)

	_, err := store.Insert(context.Background(), telemetry.Event{Name: "page_view"})
	assert.Error(t, err)
}
