// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"hoopscan/internal/hoop"
	"hoopscan/internal/matcher"
	"hoopscan/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// MatchRun records one completed search: which pattern ran against which
// series, and the matches it produced.
type MatchRun struct {
	ID        int64
	PatternID string
	Symbol    string
	Timeframe string
	RunAt     time.Time
	Matches   []matcher.Match
}

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Patterns
	SavePattern(ctx context.Context, p *hoop.Pattern) error
	GetPattern(ctx context.Context, id string) (*hoop.Pattern, error)
	ListPatterns(ctx context.Context) ([]*hoop.Pattern, error)
	DeletePattern(ctx context.Context, id string) error

	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	ListSeries(ctx context.Context) ([]SeriesInfo, error)

	// Match runs
	SaveMatchRun(ctx context.Context, run *MatchRun) error
	GetMatchRuns(ctx context.Context, patternID string) ([]MatchRun, error)

	Close() error
}

// SeriesInfo summarizes one stored candle series.
type SeriesInfo struct {
	Symbol    string
	Timeframe string
	Bars      int
	From      time.Time
	To        time.Time
}
