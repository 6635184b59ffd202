// Package reference resolves a candle series into one scalar reference price
// per bar, applying the pattern's smoothing configuration. Smoothed series
// carry a warm-up region whose values are unavailable rather than defaulted.
package reference

import (
	"hoopscan/internal/hoop"
	"hoopscan/internal/models"
)

// Series holds one reference value per bar, aligned 1:1 with the candle
// series. Bars before WarmUp have no defined value and must be skipped as
// anchor candidates.
type Series struct {
	Values []float64
	WarmUp int
}

// Len returns the number of bars in the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Available reports whether bar i has a defined reference value.
func (s *Series) Available(i int) bool {
	return i >= s.WarmUp && i < len(s.Values)
}

// Resolve computes the reference series for the given smoothing configuration.
// A series shorter than the smoothing period is entirely warm-up: the result
// has every bar unavailable, which the search treats as "no matches", not an
// error. Unknown smoothing types and invalid periods are definition errors.
func Resolve(candles []models.Candle, typ hoop.SmoothingType, period int) (*Series, error) {
	n := len(candles)
	switch typ {
	case hoop.SmoothingNone:
		return &Series{Values: models.Closes(candles)}, nil

	case hoop.SmoothingTypical:
		values := make([]float64, n)
		for i, c := range candles {
			values[i] = c.TypicalPrice()
		}
		return &Series{Values: values}, nil

	case hoop.SmoothingSMA:
		if period < 1 {
			return nil, hoop.ErrInvalidSmoothingPeriod
		}
		values := make([]float64, n)
		if n < period {
			return &Series{Values: values, WarmUp: n}, nil
		}
		closes := models.Closes(candles)
		var window float64
		for i, v := range closes {
			window += v
			if i >= period {
				window -= closes[i-period]
			}
			if i >= period-1 {
				values[i] = window / float64(period)
			}
		}
		return &Series{Values: values, WarmUp: period - 1}, nil

	case hoop.SmoothingEMA:
		if period < 1 {
			return nil, hoop.ErrInvalidSmoothingPeriod
		}
		values := make([]float64, n)
		if n < period {
			return &Series{Values: values, WarmUp: n}, nil
		}
		closes := models.Closes(candles)
		multiplier := 2.0 / float64(period+1)

		// Seed with the SMA of the first period, then recurse.
		var seed float64
		for _, v := range closes[:period] {
			seed += v
		}
		values[period-1] = seed / float64(period)
		for i := period; i < n; i++ {
			values[i] = (closes[i]-values[i-1])*multiplier + values[i-1]
		}
		return &Series{Values: values, WarmUp: period - 1}, nil

	default:
		return nil, hoop.ErrInvalidSmoothing
	}
}
