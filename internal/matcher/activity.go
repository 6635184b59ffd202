package matcher

import (
	"errors"

	"hoopscan/internal/hoop"
)

var (
	// ErrMissingCondition is returned when a combine mode needs an external
	// condition series and none was supplied.
	ErrMissingCondition = errors.New("combine mode requires an external condition series")
	// ErrConditionLength is returned when the condition series is not aligned
	// to the candle series.
	ErrConditionLength = errors.New("condition series length does not match series length")
)

// ActiveBars returns the per-bar pattern activity array: a bar is active when
// it falls within [anchorBar, completionBar] of any match. The array is
// aligned 1:1 with the candle series.
func ActiveBars(matches []Match, seriesLen int) []bool {
	active := make([]bool, seriesLen)
	for _, m := range matches {
		start, end := m.AnchorBar, m.CompletionBar
		if end < start {
			start, end = end, start
		}
		if start < 0 {
			start = 0
		}
		if end > seriesLen-1 {
			end = seriesLen - 1
		}
		for i := start; i <= end; i++ {
			active[i] = true
		}
	}
	return active
}

// Combine composes pattern activity with an external condition signal under
// the pattern's combine mode. The condition may be nil for pattern_only.
func Combine(mode hoop.CombineMode, active []bool, condition []bool) ([]bool, error) {
	if mode == hoop.CombinePatternOnly {
		out := make([]bool, len(active))
		copy(out, active)
		return out, nil
	}
	if condition == nil {
		return nil, ErrMissingCondition
	}
	if len(condition) != len(active) {
		return nil, ErrConditionLength
	}

	out := make([]bool, len(active))
	switch mode {
	case hoop.CombineConditionOnly:
		copy(out, condition)
	case hoop.CombineAnd:
		for i := range active {
			out[i] = active[i] && condition[i]
		}
	case hoop.CombineOr:
		for i := range active {
			out[i] = active[i] || condition[i]
		}
	default:
		return nil, hoop.ErrInvalidCombineMode
	}
	return out, nil
}
