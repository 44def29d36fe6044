package sqlite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/benprew/showtrack"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Registered database/sql driver names.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// Options controls how Open connects to the store.
type Options struct {
	Driver       string
	ReadOnly     bool
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// Open connects to the SQLite database at path. The connection is checked
// before returning but the schema is not; see CheckSchema.
func Open(path string, opts Options) (*sqlx.DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverCGO
	}
	dsn, err := sqliteDSN(path, opts)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, FormatError(err)
	}

	// every connection to :memory: is its own database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, FormatError(err)
	}
	return db, nil
}

// sqliteDSN builds a file: URI with the driver-specific parameters for opts.
func sqliteDSN(path string, opts Options) (string, error) {
	if path == "" {
		return "", showtrack.Errorf(showtrack.EINVALID, "database path is required")
	}
	if path == ":memory:" && opts.ReadOnly {
		return "", showtrack.Errorf(showtrack.EINVALID, "read-only mode requires a file-backed database")
	}

	params := url.Values{}
	if opts.ReadOnly {
		params.Set("mode", "ro")
	}

	busyTimeoutMs := int(opts.BusyTimeout / time.Millisecond)
	switch opts.Driver {
	case DriverCGO:
		if busyTimeoutMs > 0 {
			params.Set("_busy_timeout", fmt.Sprint(busyTimeoutMs))
		}
	case DriverPure:
		if busyTimeoutMs > 0 {
			params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMs))
		}
		if opts.ReadOnly {
			params.Add("_pragma", "query_only(1)")
		}
	default:
		return "", showtrack.Errorf(showtrack.EINVALID, "unknown sqlite driver: %q", opts.Driver)
	}

	// file: URIs are passed through as given; plain paths are escaped so
	// SQLite reads them back byte for byte.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + uriPathEscaper.Replace(dsn)
	}
	if len(params) == 0 {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + params.Encode(), nil
}

// uriPathEscaper escapes the characters SQLite treats specially in the path
// of a file: URI.
var uriPathEscaper = strings.NewReplacer(
	"%", "%25",
	"?", "%3F",
	"#", "%23",
)

// requiredSeasonsColumns must exist in the seasons table. The episode
// counters are read when present.
var requiredSeasonsColumns = []string{
	"_id",
	"combinednr",
	"series_id",
}

// CheckSchema verifies the seasons table exists with the columns every
// SeasonService operation needs. The table is owned by the sync component, so a mismatch is a
// storage fault rather than something to repair here.
func CheckSchema(ctx context.Context, q sqlx.QueryerContext) error {
	var columns []string
	if err := sqlx.SelectContext(ctx, q, &columns, `SELECT name FROM pragma_table_info('seasons')`); err != nil {
		return FormatError(err)
	}
	if len(columns) == 0 {
		return showtrack.Errorf(showtrack.EINTERNAL, "missing table: seasons")
	}

	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[strings.ToLower(c)] = true
	}
	var missing []string
	for _, c := range requiredSeasonsColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return showtrack.Errorf(showtrack.EINTERNAL, "seasons is missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IntegrityCheck runs PRAGMA quick_check. A healthy database returns the
// single finding "ok".
func IntegrityCheck(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	var findings []string
	if err := sqlx.SelectContext(ctx, q, &findings, `PRAGMA quick_check`); err != nil {
		return nil, FormatError(err)
	}
	return findings, nil
}

// FormatError wraps a database error as a showtrack EINTERNAL error with a
// message describing the kind of fault. The driver error is kept as Err.
// Application errors are returned as is.
func FormatError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *showtrack.Error
	if errors.As(err, &appErr) {
		return err
	}

	message := "storage error"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		message = "storage read cancelled"
	default:
		switch resultCode(err) {
		case sqlitelib.SQLITE_CORRUPT, sqlitelib.SQLITE_NOTADB:
			message = "database file is corrupt"
		case sqlitelib.SQLITE_IOERR:
			message = "storage I/O error"
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			message = "database is busy"
		case sqlitelib.SQLITE_READONLY:
			message = "database is read-only"
		case sqlitelib.SQLITE_CANTOPEN:
			message = "unable to open database file"
		}
	}
	return &showtrack.Error{Code: showtrack.EINTERNAL, Message: message, Err: err}
}

// resultCode returns the primary SQLite result code of a driver error, or -1
// if err did not come from either driver.
func resultCode(err error) int {
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) {
		return int(cgoErr.Code)
	}
	var pureErr *moderncsqlite.Error
	if errors.As(err, &pureErr) {
		// extended codes carry the primary code in the low byte
		return pureErr.Code() & 0xff
	}
	return -1
}
