package models

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
)

// candleRecord is the CSV row shape for candle import.
type candleRecord struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    int64   `csv:"volume"`
}

// timestampFormats accepted during CSV import, tried in order.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadCandlesCSV parses a CSV stream of OHLCV rows into an ordered candle
// series, enforcing the series input contract.
func ReadCandlesCSV(r io.Reader) ([]Candle, error) {
	var records []candleRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("parsing candle csv: %w", err)
	}

	candles := make([]Candle, len(records))
	for i, rec := range records {
		ts, err := parseTimestamp(rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		candles[i] = Candle{
			Timestamp: ts,
			Open:      rec.Open,
			High:      rec.High,
			Low:       rec.Low,
			Close:     rec.Close,
			Volume:    rec.Volume,
		}
	}

	if err := ValidateSeries(candles); err != nil {
		return nil, err
	}
	return candles, nil
}
