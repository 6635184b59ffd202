// Package models provides domain models for the pattern matcher.
package models

import (
	"errors"
	"time"
)

var (
	// ErrUnorderedSeries is returned when candle timestamps are not strictly increasing.
	ErrUnorderedSeries = errors.New("candle timestamps must be strictly increasing")
	// ErrDuplicateTimestamp is returned when two candles share a timestamp.
	ErrDuplicateTimestamp = errors.New("duplicate candle timestamp")
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// TypicalPrice returns the HLC/3 price for the candle.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// ValidateSeries checks the input contract for a candle series: timestamps
// strictly increasing, no duplicates. An empty series is valid.
func ValidateSeries(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp.Equal(candles[i-1].Timestamp) {
			return ErrDuplicateTimestamp
		}
		if candles[i].Timestamp.Before(candles[i-1].Timestamp) {
			return ErrUnorderedSeries
		}
	}
	return nil
}

// Closes extracts close prices from candles.
func Closes(candles []Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}
