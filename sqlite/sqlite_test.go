package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benprew/showtrack"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	moderncsqlite "modernc.org/sqlite"
)

var drivers = []string{DriverCGO, DriverPure}

const testSchema = `
CREATE TABLE series (
    _id INTEGER PRIMARY KEY,
    title TEXT NOT NULL
);
CREATE TABLE seasons (
    _id INTEGER PRIMARY KEY,
    combinednr INTEGER NOT NULL DEFAULT 0,
    series_id INTEGER NOT NULL,
    watchcount INTEGER NOT NULL DEFAULT 0,
    willaircount INTEGER NOT NULL DEFAULT 0,
    noairdatecount INTEGER NOT NULL DEFAULT 0,
    totalcount INTEGER NOT NULL DEFAULT 0,
    tags TEXT,
    FOREIGN KEY (series_id) REFERENCES series (_id)
);`

// newTestDB creates a database file holding the seasons schema plus the given
// statements, and returns its path. Writes go through the cgo driver; readers
// open the file separately.
func newTestDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "showtrack.db")

	db, err := Open(path, Options{Driver: DriverCGO})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err = db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

// openReadOnly opens path the way the server does.
func openReadOnly(t *testing.T, path, driver string) *sqlx.DB {
	t.Helper()
	db, err := Open(path, Options{Driver: driver, ReadOnly: true, BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		path string
		opts Options
		want string
	}{
		{"show.db", Options{Driver: DriverCGO}, "file:show.db"},
		{"show.db", Options{Driver: DriverCGO, ReadOnly: true, BusyTimeout: 5 * time.Second}, "file:show.db?_busy_timeout=5000&mode=ro"},
		{"file:show.db?cache=shared", Options{Driver: DriverCGO, ReadOnly: true}, "file:show.db?cache=shared&mode=ro"},
		{"show.db", Options{Driver: DriverPure, BusyTimeout: time.Second}, "file:show.db?_pragma=busy_timeout%281000%29"},
		{"show.db", Options{Driver: DriverPure, ReadOnly: true}, "file:show.db?_pragma=query_only%281%29&mode=ro"},
		{":memory:", Options{Driver: DriverPure}, "file::memory:"},
		{"/data/my%41.db", Options{Driver: DriverCGO, ReadOnly: true}, "file:/data/my%2541.db?mode=ro"},
		{"/data/shows#1.db", Options{Driver: DriverCGO, ReadOnly: true}, "file:/data/shows%231.db?mode=ro"},
		{"/data/what?.db", Options{Driver: DriverPure}, "file:/data/what%3F.db"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := sqliteDSN(tt.path, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSqliteDSN_Invalid(t *testing.T) {
	for _, tc := range []struct {
		path string
		opts Options
	}{
		{"", Options{Driver: DriverCGO}},
		{":memory:", Options{Driver: DriverCGO, ReadOnly: true}},
		{"show.db", Options{Driver: "postgres"}},
	} {
		_, err := sqliteDSN(tc.path, tc.opts)
		assert.Equal(t, showtrack.EINVALID, showtrack.ErrorCode(err), "%+v", tc)
	}
}

func TestOpen_ReadOnlyRejectsWrites(t *testing.T) {
	path := newTestDB(t)

	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db := openReadOnly(t, path, driver)

			_, err := db.Exec(`INSERT INTO series (_id, title) VALUES (1, 'Firefly')`)
			require.Error(t, err)
			err = FormatError(err)
			assert.Equal(t, showtrack.EINTERNAL, showtrack.ErrorCode(err))
		})
	}
}

func TestOpen_PathWithURICharacters(t *testing.T) {
	for _, name := range []string{"my%41.db", "shows#1.db", "what?.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			db, err := Open(path, Options{Driver: DriverCGO})
			require.NoError(t, err)
			_, err = db.Exec(testSchema)
			require.NoError(t, err)
			require.NoError(t, db.Close())

			// the file landed at the literal path
			_, err = os.Stat(path)
			require.NoError(t, err)

			for _, driver := range drivers {
				db := openReadOnly(t, path, driver)
				assert.NoError(t, CheckSchema(context.Background(), db), driver)

				_, err := db.Exec(`INSERT INTO series (_id, title) VALUES (1, 'Firefly')`)
				assert.Error(t, err, "%s: store must be read-only", driver)
			}
		})
	}
}

func TestOpen_MissingFileReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db, err := Open(path, Options{Driver: driver, ReadOnly: true})
			if err == nil {
				// some drivers connect lazily; the first read must fail instead
				defer db.Close()
				err = CheckSchema(context.Background(), db)
			}
			require.Error(t, err)
			assert.Equal(t, showtrack.EINTERNAL, showtrack.ErrorCode(err))
		})
	}
}

func TestCheckSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		db := openReadOnly(t, newTestDB(t), DriverCGO)
		assert.NoError(t, CheckSchema(ctx, db))
	})

	t.Run("missing table", func(t *testing.T) {
		db, err := Open(":memory:", Options{Driver: DriverCGO})
		require.NoError(t, err)
		defer db.Close()

		err = CheckSchema(ctx, db)
		assert.Equal(t, showtrack.EINTERNAL, showtrack.ErrorCode(err))
		assert.Equal(t, "missing table: seasons", showtrack.ErrorMessage(err))
	})

	t.Run("missing columns", func(t *testing.T) {
		db, err := Open(":memory:", Options{Driver: DriverPure})
		require.NoError(t, err)
		defer db.Close()
		_, err = db.Exec(`CREATE TABLE seasons (_id INTEGER PRIMARY KEY, combinednr INTEGER, watchcount INTEGER)`)
		require.NoError(t, err)

		err = CheckSchema(ctx, db)
		assert.Equal(t, showtrack.EINTERNAL, showtrack.ErrorCode(err))
		assert.Equal(t, "seasons is missing columns: series_id", showtrack.ErrorMessage(err))
	})

	t.Run("counters are optional", func(t *testing.T) {
		db, err := Open(":memory:", Options{Driver: DriverCGO})
		require.NoError(t, err)
		defer db.Close()
		_, err = db.Exec(`CREATE TABLE seasons (_id INTEGER PRIMARY KEY, combinednr INTEGER, series_id INTEGER)`)
		require.NoError(t, err)

		assert.NoError(t, CheckSchema(ctx, db))
	})
}

func TestIntegrityCheck(t *testing.T) {
	path := newTestDB(t, `INSERT INTO series (_id, title) VALUES (42, 'Firefly')`)

	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			findings, err := IntegrityCheck(context.Background(), openReadOnly(t, path, driver))
			require.NoError(t, err)
			assert.Equal(t, []string{"ok"}, findings)
		})
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"cgo corrupt", sqlite3.Error{Code: sqlite3.ErrCorrupt}, "database file is corrupt"},
		{"cgo notadb", sqlite3.Error{Code: sqlite3.ErrNotADB}, "database file is corrupt"},
		{"cgo ioerr", sqlite3.Error{Code: sqlite3.ErrIoErr}, "storage I/O error"},
		{"cgo busy", sqlite3.Error{Code: sqlite3.ErrBusy}, "database is busy"},
		{"cgo locked", sqlite3.Error{Code: sqlite3.ErrLocked}, "database is busy"},
		{"cgo readonly", sqlite3.Error{Code: sqlite3.ErrReadonly}, "database is read-only"},
		{"cgo cantopen", sqlite3.Error{Code: sqlite3.ErrCantOpen}, "unable to open database file"},
		{"cancelled", fmt.Errorf("query: %w", context.Canceled), "storage read cancelled"},
		{"other", errors.New("sql: database is closed"), "storage error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FormatError(tt.err)
			assert.Equal(t, showtrack.EINTERNAL, showtrack.ErrorCode(err))
			assert.Equal(t, tt.message, showtrack.ErrorMessage(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, FormatError(nil))

	appErr := showtrack.Errorf(showtrack.ENOTFOUND, "nope")
	assert.Same(t, appErr, FormatError(appErr))
}

func TestFormatError_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte('x')
	}
	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db, err := Open(path, Options{Driver: driver, ReadOnly: true})
			if err == nil {
				defer db.Close()
				_, _, err = NewSeasonService(db).GetSeason(context.Background())
			}
			require.Error(t, err)
			assert.Equal(t, showtrack.EINTERNAL, showtrack.ErrorCode(err))
			assert.Equal(t, "database file is corrupt", showtrack.ErrorMessage(err))

			var cgoErr sqlite3.Error
			var pureErr *moderncsqlite.Error
			assert.True(t, errors.As(err, &cgoErr) || errors.As(err, &pureErr), "driver error kept: %v", err)
		})
	}
}
