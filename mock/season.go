// Package mock provides function-field implementations of the showtrack
// service interfaces for tests.
package mock

import (
	"context"

	"github.com/benprew/showtrack"
)

var _ showtrack.SeasonService = (*SeasonService)(nil)

type SeasonService struct {
	GetSeasonFn        func(ctx context.Context) (*showtrack.Season, bool, error)
	GetSeasonMinimalFn func(ctx context.Context, seasonID int) (*showtrack.SeasonMinimal, bool, error)
}

func (s *SeasonService) GetSeason(ctx context.Context) (*showtrack.Season, bool, error) {
	return s.GetSeasonFn(ctx)
}

func (s *SeasonService) GetSeasonMinimal(ctx context.Context, seasonID int) (*showtrack.SeasonMinimal, bool, error) {
	return s.GetSeasonMinimalFn(ctx, seasonID)
}
