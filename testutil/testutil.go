package testutil

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.ntppool.org/common/logger"

	"go.readwell.dev/highlights/hldb"
)

// TestDB represents a test database connection with utilities
type TestDB struct {
	*sql.DB
	queries *hldb.Queries
	driver  hldb.Driver
	ctx     context.Context
}

// NewTestDB creates a migrated SQLite database in a temporary directory.
// It is removed when the test finishes.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := logger.NewContext(context.Background(), NewTestLogger(t).Logger())

	path := filepath.Join(t.TempDir(), "highlights.db")
	db, err := hldb.OpenDB(ctx, hldb.DBConfig{Driver: hldb.DriverSQLite, DSN: path})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := hldb.Migrate(ctx, db, hldb.DriverSQLite); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &TestDB{
		DB:      db,
		queries: hldb.New(db),
		driver:  hldb.DriverSQLite,
		ctx:     ctx,
	}
}

// NewMySQLTestDB connects to the database in TEST_DATABASE_DSN, creating
// the schema and clearing all rows first.
func NewMySQLTestDB(t *testing.T) *TestDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping integration test")
	}

	ctx := logger.NewContext(context.Background(), NewTestLogger(t).Logger())

	db, err := hldb.OpenDB(ctx, hldb.DBConfig{Driver: hldb.DriverMySQL, DSN: dsn})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := hldb.Migrate(ctx, db, hldb.DriverMySQL); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	tdb := &TestDB{
		DB:      db,
		queries: hldb.New(db),
		driver:  hldb.DriverMySQL,
		ctx:     ctx,
	}
	tdb.CleanupTestData(t)
	return tdb
}

// Queries returns the hldb queries instance
func (tdb *TestDB) Queries() *hldb.Queries {
	return tdb.queries
}

// Context returns the test context
func (tdb *TestDB) Context() context.Context {
	return tdb.ctx
}

func (tdb *TestDB) Driver() hldb.Driver {
	return tdb.driver
}

// CleanupTestData removes all rows from the tables the tests write to
func (tdb *TestDB) CleanupTestData(t *testing.T) {
	for _, table := range []string{"daily_sets", "highlights", "system_settings"} {
		if _, err := tdb.ExecContext(tdb.ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("Error cleaning up table %s: %v", table, err)
		}
	}
}

// TimeController allows controlling time in tests. It is safe for use from
// multiple goroutines.
type TimeController struct {
	mu      sync.Mutex
	frozen  bool
	current time.Time
	offset  time.Duration
}

// NewTimeController creates a new time controller
func NewTimeController() *TimeController {
	return &TimeController{
		current: time.Now(),
	}
}

// SetTime freezes time at t
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.current = t
	tc.offset = -time.Until(t)
	tc.frozen = true
}

// Advance advances time by the given duration
func (tc *TimeController) Advance(d time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.frozen {
		tc.current = tc.current.Add(d)
	} else {
		tc.offset += d
	}
}

// Now returns the current controlled time
func (tc *TimeController) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.frozen {
		return tc.current
	}
	return time.Now().Add(tc.offset)
}

// DataFactory creates highlight rows for tests
type DataFactory struct {
	tdb *TestDB
}

// NewDataFactory creates a new data factory
func NewDataFactory(tdb *TestDB) *DataFactory {
	return &DataFactory{tdb: tdb}
}

// CreateHighlight inserts a highlight with the given id. A nil lastServed
// leaves it never served.
func (df *DataFactory) CreateHighlight(t *testing.T, id string, lastServed *time.Time) hldb.Highlight {
	t.Helper()

	content := "Highlight " + id
	sum := sha256.Sum256([]byte(content))

	arg := hldb.InsertHighlightParams{
		ID:        id,
		BookTitle: sql.NullString{String: "Book of " + id, Valid: true},
		Author:    sql.NullString{String: "Author", Valid: true},
		Location:  sql.NullString{String: "100-101", Valid: true},
		Content:   content,
		Lang:      sql.NullString{String: "en", Valid: true},
		Source:    "kindle",
		HashID:    hex.EncodeToString(sum[:]),
		CreatedOn: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if lastServed != nil {
		arg.LastServedAt = sql.NullTime{Time: *lastServed, Valid: true}
	}

	if err := df.tdb.queries.InsertHighlight(df.tdb.ctx, arg); err != nil {
		t.Fatalf("Failed to create test highlight: %v", err)
	}

	h, err := df.tdb.queries.GetHighlight(df.tdb.ctx, id)
	if err != nil {
		t.Fatalf("Failed to read back test highlight: %v", err)
	}
	return h
}

// CreateHighlights inserts n never-served highlights with ids prefix001..
func (df *DataFactory) CreateHighlights(t *testing.T, prefix string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%s%03d", prefix, i)
		df.CreateHighlight(t, id, nil)
		ids = append(ids, id)
	}
	return ids
}

// SetSystemSetting sets a system setting for tests
func (df *DataFactory) SetSystemSetting(t *testing.T, name, value string) {
	t.Helper()
	err := df.tdb.queries.SetSystemSetting(df.tdb.ctx, hldb.SetSystemSettingParams{
		Name:  name,
		Value: value,
		Now:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to set system setting: %v", err)
	}
}

// TestLogger writes debug output through t.Log
type TestLogger struct {
	t      *testing.T
	logger *slog.Logger
}

// NewTestLogger creates a test logger
func NewTestLogger(t *testing.T) *TestLogger {
	handler := slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return &TestLogger{
		t:      t,
		logger: slog.New(handler),
	}
}

// Logger returns the slog.Logger instance
func (tl *TestLogger) Logger() *slog.Logger {
	return tl.logger
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
