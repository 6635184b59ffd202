// Package geometry translates interactive edits of a hoop's displayed
// price/time zone back into hoop parameters. Inversion is pure: it returns an
// updated copy of the one affected hoop and the caller commits the result,
// so concurrent UI event sources never alias a shared mutable pattern.
package geometry

import (
	"errors"
	"math"

	"hoopscan/internal/hoop"
)

var (
	// ErrUnknownEdge is returned for an unrecognized edge kind.
	ErrUnknownEdge = errors.New("unknown zone edge")
	// ErrAnchorPrice is returned when the hoop's anchor price is not positive,
	// leaving the percent offsets undefined.
	ErrAnchorPrice = errors.New("anchor price must be positive")
)

// EdgeKind identifies which edge of a hoop's price/time zone is being dragged.
type EdgeKind string

const (
	EdgeTop    EdgeKind = "TOP"
	EdgeBottom EdgeKind = "BOTTOM"
	EdgeLeft   EdgeKind = "LEFT"
	EdgeRight  EdgeKind = "RIGHT"
)

// AxisMap is the linear screen-to-data mapping supplied by the rendering
// layer. Price decreases as y grows (screen coordinates run downward).
type AxisMap struct {
	PriceAtTop    float64
	PricePerPixel float64
	BarAtLeft     float64
	BarsPerPixel  float64
}

// PriceAt converts a vertical pixel offset to a data-space price.
func (a AxisMap) PriceAt(y float64) float64 {
	return a.PriceAtTop - y*a.PricePerPixel
}

// BarAt converts a horizontal pixel offset to a data-space bar index.
func (a AxisMap) BarAt(x float64) float64 {
	return a.BarAtLeft + x*a.BarsPerPixel
}

// Edit is one interactive zone edit in data space: the dragged edge of hoop
// HoopIndex moved to Value (a price for TOP/BOTTOM, a bar index for
// LEFT/RIGHT). Pixel coordinates are converted by the caller via AxisMap.
type Edit struct {
	HoopIndex int
	Edge      EdgeKind
	Value     float64
}

// Apply recomputes the edited hoop's parameters from the edit, given the
// chain's origin anchor. The hoop's own anchor is derived by a nominal walk
// of the preceding hoops (see NominalAnchor). TOP and BOTTOM recompute the
// percent offsets from the dragged price. LEFT and RIGHT hold the opposite
// edge fixed: the bar window is always symmetric about distance, so a
// one-sided drag cannot be expressed by adjusting tolerance alone and both
// distance and tolerance are re-derived from the new span. Derived values
// are clamped to the hoop invariants; a zero-delta edit returns the hoop
// unchanged.
func Apply(p *hoop.Pattern, anchorBar int, anchorPrice float64, e Edit) (hoop.Hoop, error) {
	if e.HoopIndex < 0 || e.HoopIndex >= len(p.Hoops) {
		return hoop.Hoop{}, hoop.ErrHoopIndex
	}
	refBar, refPrice := NominalAnchor(p, anchorBar, anchorPrice, e.HoopIndex)
	if refPrice <= 0 {
		return hoop.Hoop{}, ErrAnchorPrice
	}
	h := p.Hoops[e.HoopIndex]
	if h.MaxPricePercent != nil {
		v := *h.MaxPricePercent
		h.MaxPricePercent = &v
	}

	switch e.Edge {
	case EdgeTop:
		pct := (e.Value/refPrice - 1) * 100
		if pct < h.MinPricePercent {
			pct = h.MinPricePercent
		}
		h.MaxPricePercent = &pct

	case EdgeBottom:
		pct := (e.Value/refPrice - 1) * 100
		if h.MaxPricePercent != nil && pct > *h.MaxPricePercent {
			pct = *h.MaxPricePercent
		}
		h.MinPricePercent = pct

	case EdgeLeft:
		// Move the window start to the dragged bar, holding the end fixed:
		// distance and tolerance adjust jointly. Odd spans lose one bar of
		// width to integer quantization.
		end := h.WindowEnd(refBar)
		newStart := int(math.Round(e.Value))
		if newStart > end {
			newStart = end
		}
		span := end - newStart
		h.Tolerance = span / 2
		h.Distance = newStart - refBar + h.Tolerance

	case EdgeRight:
		// Move the window end, holding the start fixed.
		start := h.WindowStart(refBar)
		newEnd := int(math.Round(e.Value))
		if newEnd < start {
			newEnd = start
		}
		span := newEnd - start
		h.Tolerance = span / 2
		h.Distance = start - refBar + h.Tolerance

	default:
		return hoop.Hoop{}, ErrUnknownEdge
	}

	if h.Distance < 1 {
		h.Distance = 1
	}
	if h.Tolerance < 0 {
		h.Tolerance = 0
	}
	if err := h.Validate(); err != nil {
		return hoop.Hoop{}, err
	}
	return h, nil
}

// NominalAnchor walks the chain up to, but not including, hoop index i and
// returns the (bar, price) anchor the edited hoop is drawn against. No
// concrete hits exist while editing, so every preceding hoop advances by its
// target geometry: the nominal window midpoint and the band midpoint (the
// band's lower bound when the band is open-ended).
func NominalAnchor(p *hoop.Pattern, anchorBar int, anchorPrice float64, i int) (int, float64) {
	refBar, refPrice := anchorBar, anchorPrice
	for _, h := range p.Hoops[:i] {
		lo := refPrice * (1 + h.MinPricePercent/100)
		if h.MaxPricePercent != nil {
			hi := refPrice * (1 + *h.MaxPricePercent/100)
			if lo > hi {
				lo, hi = hi, lo
			}
			refPrice = (lo + hi) / 2
		} else {
			refPrice = lo
		}
		refBar += h.Distance
	}
	return refBar, refPrice
}
