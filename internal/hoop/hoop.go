// Package hoop provides the hoop-chain data model: sequential price/time
// checkpoints composing one chart pattern, plus pattern-level match policy.
package hoop

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDistance is returned when a hoop's distance is below 1 bar.
	ErrInvalidDistance = errors.New("hoop distance must be at least 1 bar")
	// ErrNegativeTolerance is returned when a hoop's tolerance is negative.
	ErrNegativeTolerance = errors.New("hoop tolerance must not be negative")
	// ErrInvertedBand is returned when min price percent exceeds max price percent.
	ErrInvertedBand = errors.New("hoop min price percent exceeds max price percent")
	// ErrInvalidAnchorMode is returned for an unknown anchor mode.
	ErrInvalidAnchorMode = errors.New("unknown anchor mode")
	// ErrInvalidSmoothing is returned for an unknown smoothing type.
	ErrInvalidSmoothing = errors.New("unknown smoothing type")
	// ErrInvalidSmoothingPeriod is returned when a smoothing type requires a period >= 1.
	ErrInvalidSmoothingPeriod = errors.New("smoothing period must be at least 1")
	// ErrNegativeCooldown is returned when the cooldown is negative.
	ErrNegativeCooldown = errors.New("cooldown bars must not be negative")
	// ErrInvalidCombineMode is returned for an unknown combine mode.
	ErrInvalidCombineMode = errors.New("unknown combine mode")
	// ErrHoopIndex is returned when a hoop index is out of range.
	ErrHoopIndex = errors.New("hoop index out of range")
)

// AnchorMode is the policy for deriving the next anchor from a hoop hit.
type AnchorMode string

const (
	// AnchorActualHit advances the anchor to the bar/price that satisfied the hoop.
	AnchorActualHit AnchorMode = "ACTUAL_HIT"
	// AnchorTarget advances the anchor to the band midpoint price and window midpoint bar.
	AnchorTarget AnchorMode = "TARGET"
)

// SmoothingType selects the price reference smoothing applied before matching.
type SmoothingType string

const (
	SmoothingNone    SmoothingType = "none"
	SmoothingSMA     SmoothingType = "sma"
	SmoothingEMA     SmoothingType = "ema"
	SmoothingTypical SmoothingType = "typical"
)

// CombineMode is the boolean composition rule between pattern activity and an
// external condition signal.
type CombineMode string

const (
	CombinePatternOnly   CombineMode = "pattern_only"
	CombineConditionOnly CombineMode = "condition_only"
	CombineAnd           CombineMode = "and"
	CombineOr            CombineMode = "or"
)

// Hoop is one price/time checkpoint in a pattern. The price band is expressed
// as signed percentage offsets from the active anchor price; MaxPricePercent
// is optional, nil meaning "at least MinPricePercent, no upper bound".
type Hoop struct {
	Name            string     `json:"name"`
	MinPricePercent float64    `json:"min_price_percent"`
	MaxPricePercent *float64   `json:"max_price_percent,omitempty"`
	Distance        int        `json:"distance"`
	Tolerance       int        `json:"tolerance"`
	AnchorMode      AnchorMode `json:"anchor_mode"`
}

// Bounded reports whether the hoop's price band has an upper bound.
func (h Hoop) Bounded() bool {
	return h.MaxPricePercent != nil
}

// WindowStart returns the first admissible bar for the hoop relative to refBar,
// before clipping to series bounds.
func (h Hoop) WindowStart(refBar int) int {
	return refBar + h.Distance - h.Tolerance
}

// WindowEnd returns the last admissible bar for the hoop relative to refBar,
// before clipping to series bounds.
func (h Hoop) WindowEnd(refBar int) int {
	return refBar + h.Distance + h.Tolerance
}

// Validate checks the hoop invariants.
func (h Hoop) Validate() error {
	if h.Distance < 1 {
		return ErrInvalidDistance
	}
	if h.Tolerance < 0 {
		return ErrNegativeTolerance
	}
	if h.MaxPricePercent != nil && h.MinPricePercent > *h.MaxPricePercent {
		return ErrInvertedBand
	}
	switch h.AnchorMode {
	case AnchorActualHit, AnchorTarget:
	default:
		return ErrInvalidAnchorMode
	}
	return nil
}

// Pattern is an ordered list of hoops plus pattern-level match policy.
// Symbol and timeframe are informational; series selection is the caller's
// concern. A pattern with no hoops is valid and matches nothing.
type Pattern struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Symbol          string        `json:"symbol"`
	Timeframe       string        `json:"timeframe"`
	Hoops           []Hoop        `json:"hoops"`
	SmoothingType   SmoothingType `json:"smoothing_type"`
	SmoothingPeriod int           `json:"smoothing_period"`
	CooldownBars    int           `json:"cooldown_bars"`
	AllowOverlap    bool          `json:"allow_overlap"`
	CombineMode     CombineMode   `json:"combine_mode"`
}

// Validate checks the pattern and all of its hoops.
func (p *Pattern) Validate() error {
	switch p.SmoothingType {
	case SmoothingNone, SmoothingTypical:
	case SmoothingSMA, SmoothingEMA:
		if p.SmoothingPeriod < 1 {
			return ErrInvalidSmoothingPeriod
		}
	default:
		return ErrInvalidSmoothing
	}
	if p.CooldownBars < 0 {
		return ErrNegativeCooldown
	}
	switch p.CombineMode {
	case CombinePatternOnly, CombineConditionOnly, CombineAnd, CombineOr:
	default:
		return ErrInvalidCombineMode
	}
	for i, h := range p.Hoops {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hoop %d (%s): %w", i, h.Name, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the pattern. Callers snapshot a pattern before
// starting a search so interactive edits never race an in-flight scan.
func (p *Pattern) Clone() *Pattern {
	cp := *p
	cp.Hoops = make([]Hoop, len(p.Hoops))
	for i, h := range p.Hoops {
		cp.Hoops[i] = h
		if h.MaxPricePercent != nil {
			v := *h.MaxPricePercent
			cp.Hoops[i].MaxPricePercent = &v
		}
	}
	return &cp
}

// AddHoop validates and appends a hoop to the chain.
func (p *Pattern) AddHoop(h Hoop) error {
	if err := h.Validate(); err != nil {
		return err
	}
	p.Hoops = append(p.Hoops, h)
	return nil
}

// RemoveHoop deletes the hoop at index i.
func (p *Pattern) RemoveHoop(i int) error {
	if i < 0 || i >= len(p.Hoops) {
		return ErrHoopIndex
	}
	p.Hoops = append(p.Hoops[:i], p.Hoops[i+1:]...)
	return nil
}

// ReplaceHoop validates and swaps in a hoop at index i.
func (p *Pattern) ReplaceHoop(i int, h Hoop) error {
	if i < 0 || i >= len(p.Hoops) {
		return ErrHoopIndex
	}
	if err := h.Validate(); err != nil {
		return err
	}
	p.Hoops[i] = h
	return nil
}
