// Package matcher implements the hoop pattern matcher: a sequential,
// tolerance-windowed price-checkpoint matching engine over candle series.
package matcher

import (
	"math"

	"hoopscan/internal/hoop"
	"hoopscan/internal/reference"
)

// Match is the output of one completed chain. It holds only scalar snapshots,
// never references into the series, so a later series mutation cannot leave a
// match dangling.
type Match struct {
	AnchorBar     int       `json:"anchor_bar"`
	AnchorPrice   float64   `json:"anchor_price"`
	HitBars       []int     `json:"hit_bars"`
	HitPrices     []float64 `json:"hit_prices"`
	CompletionBar int       `json:"completion_bar"`
}

// priceBand computes the hoop's absolute price band around refPrice,
// normalized so lo <= hi for any sign combination of the percent offsets.
// An absent upper bound yields +Inf.
func priceBand(refPrice float64, h hoop.Hoop) (lo, hi float64) {
	lo = refPrice * (1 + h.MinPricePercent/100)
	hi = math.Inf(1)
	if h.MaxPricePercent != nil {
		hi = refPrice * (1 + *h.MaxPricePercent/100)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// clipWindow clips [start, end] to the series bounds. It returns ok=false
// when the window lies entirely outside the series.
func clipWindow(start, end, seriesLen int) (int, int, bool) {
	if start < 0 {
		start = 0
	}
	if end > seriesLen-1 {
		end = seriesLen - 1
	}
	return start, end, start <= end
}

// Evaluator attempts to complete a pattern's hoop chain from one candidate
// anchor. Evaluation is stateless across candidates: a fresh walk is made for
// every (anchorBar, anchorPrice) pair.
type Evaluator struct {
	pattern *hoop.Pattern
	refs    *reference.Series
}

// NewEvaluator creates an evaluator for a validated pattern over a resolved
// reference series.
func NewEvaluator(p *hoop.Pattern, refs *reference.Series) *Evaluator {
	return &Evaluator{pattern: p, refs: refs}
}

// Evaluate walks the hoop chain from the given anchor. It returns the match
// and true when every hoop is satisfied; any unmet hoop is a normal
// no-match, reported as false. A pattern with no hoops never matches.
func (e *Evaluator) Evaluate(anchorBar int, anchorPrice float64) (Match, bool) {
	hoops := e.pattern.Hoops
	if len(hoops) == 0 {
		return Match{}, false
	}

	refBar, refPrice := anchorBar, anchorPrice
	hitBars := make([]int, 0, len(hoops))
	hitPrices := make([]float64, 0, len(hoops))

	for _, h := range hoops {
		lo, hi := priceBand(refPrice, h)
		start, end, ok := clipWindow(h.WindowStart(refBar), h.WindowEnd(refBar), e.refs.Len())
		if !ok {
			// Window entirely outside the series: chain failure, not fatal.
			return Match{}, false
		}

		// First qualifying bar wins. Ties break by earliest time, never by
		// best-fit price, keeping the walk deterministic and O(window) per
		// hoop. No backtracking to later candidates inside the window.
		hitBar := -1
		for bar := start; bar <= end; bar++ {
			if !e.refs.Available(bar) {
				continue
			}
			v := e.refs.Values[bar]
			if v >= lo && v <= hi {
				hitBar = bar
				break
			}
		}
		if hitBar < 0 {
			return Match{}, false
		}
		hitPrice := e.refs.Values[hitBar]
		hitBars = append(hitBars, hitBar)
		hitPrices = append(hitPrices, hitPrice)

		switch h.AnchorMode {
		case hoop.AnchorTarget:
			refBar = (start + end + 1) / 2
			if math.IsInf(hi, 1) {
				refPrice = lo
			} else {
				refPrice = (lo + hi) / 2
			}
		default: // AnchorActualHit
			refBar, refPrice = hitBar, hitPrice
		}
	}

	return Match{
		AnchorBar:     anchorBar,
		AnchorPrice:   anchorPrice,
		HitBars:       hitBars,
		HitPrices:     hitPrices,
		CompletionBar: hitBars[len(hitBars)-1],
	}, true
}
