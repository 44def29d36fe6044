package showtrack

import "context"

// Season is a full row of the seasons table. Rows are written by the sync
// component; this package only reads them.
//
// Only ID, CombinedNr and SeriesID are guaranteed to exist. The episode
// counters are nil when the column is missing or NULL.
type Season struct {
	ID             int  `json:"id" db:"_id"`
	CombinedNr     int  `json:"combinednr" db:"combinednr"`
	SeriesID       int  `json:"series_id" db:"series_id"`
	WatchCount     *int `json:"watchcount" db:"watchcount"`
	WillAirCount   *int `json:"willaircount" db:"willaircount"`
	NoAirDateCount *int `json:"noairdatecount" db:"noairdatecount"`
	TotalCount     *int `json:"totalcount" db:"totalcount"`
}

// SeasonMinimal is the projection of a season needed to order it and find its
// show. CombinedNr may be zero for specials.
type SeasonMinimal struct {
	CombinedNr int `json:"combinednr" db:"combinednr"`
	SeriesID   int `json:"series_id" db:"series_id"`
}

// SeasonService reads seasons from the local store.
//
// A missing row is reported with ok == false and a nil error. A non-nil error
// always means the store itself failed.
type SeasonService interface {
	// GetSeason returns the season with the lowest id. Used to check that the
	// table has any data at all.
	GetSeason(ctx context.Context) (season *Season, ok bool, err error)

	// GetSeasonMinimal returns the combined number and series id of a season.
	GetSeasonMinimal(ctx context.Context, seasonID int) (season *SeasonMinimal, ok bool, err error)
}

// FindSeasonMinimalByID is GetSeasonMinimal with a missing season reported
// as an ENOTFOUND error.
func FindSeasonMinimalByID(ctx context.Context, ss SeasonService, id int) (*SeasonMinimal, error) {
	season, ok, err := ss.GetSeasonMinimal(ctx, id)
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, Errorf(ENOTFOUND, "season not found: %d", id)
	}
	return season, nil
}
