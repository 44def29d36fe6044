package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/benprew/showtrack"
	"github.com/jmoiron/sqlx"
)

const (
	// The table belongs to the sync component and may lack the counter
	// columns or carry extra ones, so the row is read by name.
	querySeason = `
		SELECT *
		FROM seasons
		ORDER BY _id
		LIMIT 1`

	querySeasonMinimal = `
		SELECT
			combinednr,
			series_id
		FROM seasons
		WHERE _id = ?`
)

type SeasonService struct {
	db sqlx.QueryerContext
}

// Ensure service implements interface.
var _ showtrack.SeasonService = (*SeasonService)(nil)

// NewSeasonService returns a new instance of SeasonService. db may be a
// *sqlx.DB, a *sqlx.Tx or a *QueryLogger.
func NewSeasonService(db sqlx.QueryerContext) *SeasonService {
	return &SeasonService{db: db}
}

// GetSeason returns the season with the lowest id, or ok == false if the
// table is empty.
func (s *SeasonService) GetSeason(ctx context.Context) (*showtrack.Season, bool, error) {
	row := make(map[string]interface{})
	err := s.db.QueryRowxContext(ctx, querySeason).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, FormatError(err)
	}

	season, err := scanSeason(row)
	if err != nil {
		return nil, false, err
	}
	return season, true, nil
}

// GetSeasonMinimal returns the combined number and series id of the season
// with the given id, or ok == false if there is none.
func (s *SeasonService) GetSeasonMinimal(ctx context.Context, seasonID int) (*showtrack.SeasonMinimal, bool, error) {
	var season showtrack.SeasonMinimal
	if ok, err := get(ctx, s.db, &season, querySeasonMinimal, seasonID); !ok {
		return nil, false, err
	}
	return &season, true, nil
}

// get scans a single row into dest. No row is reported as ok == false with a
// nil error; any other failure is formatted as a storage fault.
func get(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, FormatError(err)
	}
	return true, nil
}

// scanSeason builds a Season from a row read with SELECT *. The required
// columns must be present and non-NULL; counters are left nil otherwise.
func scanSeason(row map[string]interface{}) (*showtrack.Season, error) {
	values := make(map[string]interface{}, len(row))
	for k, v := range row {
		values[strings.ToLower(k)] = v
	}

	var season showtrack.Season
	for _, c := range []struct {
		name string
		dest *int
	}{
		{"_id", &season.ID},
		{"combinednr", &season.CombinedNr},
		{"series_id", &season.SeriesID},
	} {
		v, err := intValue(values, c.name)
		if err != nil {
			return nil, err
		} else if v == nil {
			return nil, showtrack.Errorf(showtrack.EINTERNAL, "seasons.%s is missing or NULL", c.name)
		}
		*c.dest = *v
	}

	for _, c := range []struct {
		name string
		dest **int
	}{
		{"watchcount", &season.WatchCount},
		{"willaircount", &season.WillAirCount},
		{"noairdatecount", &season.NoAirDateCount},
		{"totalcount", &season.TotalCount},
	} {
		v, err := intValue(values, c.name)
		if err != nil {
			return nil, err
		}
		*c.dest = v
	}
	return &season, nil
}

// intValue returns the integer stored in column name, or nil if the column is
// absent or NULL.
func intValue(values map[string]interface{}, name string) (*int, error) {
	var n int
	switch v := values[name].(type) {
	case nil:
		return nil, nil
	case int64:
		n = int(v)
	case float64:
		if v != float64(int64(v)) {
			return nil, invalidValue(name, v)
		}
		n = int(v)
	case []byte:
		i, err := strconv.Atoi(string(v))
		if err != nil {
			return nil, invalidValue(name, string(v))
		}
		n = i
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalidValue(name, v)
		}
		n = i
	default:
		return nil, invalidValue(name, v)
	}
	return &n, nil
}

func invalidValue(name string, v interface{}) error {
	return showtrack.Errorf(showtrack.EINTERNAL, "seasons.%s holds a non-integer value: %s", name, fmt.Sprint(v))
}
