package matcher

import (
	"math"
	"testing"
	"time"

	"hoopscan/internal/hoop"
	"hoopscan/internal/models"
	"hoopscan/internal/reference"
)

func pf(v float64) *float64 { return &v }

func seriesFromCloses(closes ...float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func rawRefs(closes ...float64) *reference.Series {
	return &reference.Series{Values: closes}
}

func singleHoopPattern(h hoop.Hoop) *hoop.Pattern {
	return &hoop.Pattern{
		ID:            "t",
		Name:          "test",
		Hoops:         []hoop.Hoop{h},
		SmoothingType: hoop.SmoothingNone,
		CombineMode:   hoop.CombinePatternOnly,
	}
}

func TestEvaluateDipHit(t *testing.T) {
	// Anchor price 100, band [-4%, -2%], distance 5, tolerance 1: the bar at
	// offset 5 closes at 97 (-3%) and must be the hit.
	p := singleHoopPattern(hoop.Hoop{
		Name: "dip", MinPricePercent: -4, MaxPricePercent: pf(-2),
		Distance: 5, Tolerance: 1, AnchorMode: hoop.AnchorActualHit,
	})
	refs := rawRefs(100, 100, 100, 100, 100, 97, 100, 100)

	m, ok := NewEvaluator(p, refs).Evaluate(0, 100)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.HitBars[0] != 5 {
		t.Errorf("HitBars[0] = %d, want 5", m.HitBars[0])
	}
	if m.HitPrices[0] != 97 {
		t.Errorf("HitPrices[0] = %v, want 97", m.HitPrices[0])
	}
	if m.CompletionBar != 5 {
		t.Errorf("CompletionBar = %d, want 5", m.CompletionBar)
	}
	if m.AnchorBar != 0 || m.AnchorPrice != 100 {
		t.Errorf("anchor snapshot wrong: %+v", m)
	}
}

func TestEvaluateQualifyingBarOutsideWindow(t *testing.T) {
	// Same setup, but the only qualifying bar sits at offset 7, outside the
	// [4, 6] window: no match from this anchor.
	p := singleHoopPattern(hoop.Hoop{
		Name: "dip", MinPricePercent: -4, MaxPricePercent: pf(-2),
		Distance: 5, Tolerance: 1, AnchorMode: hoop.AnchorActualHit,
	})
	refs := rawRefs(100, 100, 100, 100, 100, 100, 100, 97)

	if _, ok := NewEvaluator(p, refs).Evaluate(0, 100); ok {
		t.Error("expected no match")
	}
}

func TestEvaluateFirstQualifyingBarWins(t *testing.T) {
	// Two bars qualify; 96.5 at offset 4 is a worse fit for the band center
	// than 97 at offset 5, but earliest-in-time wins.
	p := singleHoopPattern(hoop.Hoop{
		Name: "dip", MinPricePercent: -4, MaxPricePercent: pf(-2),
		Distance: 5, Tolerance: 1, AnchorMode: hoop.AnchorActualHit,
	})
	refs := rawRefs(100, 100, 100, 100, 96.5, 97, 100, 100)

	m, ok := NewEvaluator(p, refs).Evaluate(0, 100)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.HitBars[0] != 4 {
		t.Errorf("HitBars[0] = %d, want 4 (earliest qualifying bar)", m.HitBars[0])
	}
}

func TestEvaluateOpenEndedBand(t *testing.T) {
	// Breakout hoop: at least +2%, no upper bound.
	p := singleHoopPattern(hoop.Hoop{
		Name: "breakout", MinPricePercent: 2,
		Distance: 2, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
	})
	refs := rawRefs(100, 100, 150)

	m, ok := NewEvaluator(p, refs).Evaluate(0, 100)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.HitBars[0] != 2 || m.HitPrices[0] != 150 {
		t.Errorf("unexpected hit: %+v", m)
	}
}

func TestEvaluateBandBoundariesInclusive(t *testing.T) {
	p := singleHoopPattern(hoop.Hoop{
		Name: "edge", MinPricePercent: -4, MaxPricePercent: pf(-2),
		Distance: 1, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
	})

	// Exactly on the lower bound.
	m, ok := NewEvaluator(p, rawRefs(100, 96)).Evaluate(0, 100)
	if !ok || m.HitPrices[0] != 96 {
		t.Errorf("lower bound should be inclusive: ok=%v m=%+v", ok, m)
	}
	// Exactly on the upper bound.
	m, ok = NewEvaluator(p, rawRefs(100, 98)).Evaluate(0, 100)
	if !ok || m.HitPrices[0] != 98 {
		t.Errorf("upper bound should be inclusive: ok=%v m=%+v", ok, m)
	}
	// Just outside.
	if _, ok := NewEvaluator(p, rawRefs(100, 98.01)).Evaluate(0, 100); ok {
		t.Error("98.01 is above the band")
	}
}

func TestEvaluateAnchorModeDivergence(t *testing.T) {
	// Hoop 1 hits at bar 4 (96.5) while its window [4, 6] midpoint is bar 5
	// and its band midpoint 97. Hoop 2 (distance 3, tolerance 0) then looks
	// at bar 7 under ACTUAL_HIT but bar 8 under TARGET.
	hoop1 := hoop.Hoop{
		Name: "dip", MinPricePercent: -4, MaxPricePercent: pf(-2),
		Distance: 5, Tolerance: 1, AnchorMode: hoop.AnchorTarget,
	}
	hoop2 := hoop.Hoop{
		Name: "settle", MinPricePercent: -0.5, MaxPricePercent: pf(0.5),
		Distance: 3, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
	}
	p := &hoop.Pattern{
		ID: "two", Name: "two-hoop",
		Hoops:         []hoop.Hoop{hoop1, hoop2},
		SmoothingType: hoop.SmoothingNone,
		CombineMode:   hoop.CombinePatternOnly,
	}

	//                 0    1    2    3    4     5    6    7   8
	refs := rawRefs(100, 100, 100, 100, 96.5, 100, 100, 90, 97)

	m, ok := NewEvaluator(p, refs).Evaluate(0, 100)
	if !ok {
		t.Fatal("TARGET mode: expected a match")
	}
	if m.HitBars[1] != 8 {
		t.Errorf("TARGET mode: second hit at %d, want 8 (window from midpoint bar 5)", m.HitBars[1])
	}

	// Switching hoop 1 to ACTUAL_HIT moves hoop 2's window to bar 7, where
	// the price is far outside the band.
	p.Hoops[0].AnchorMode = hoop.AnchorActualHit
	if _, ok := NewEvaluator(p, refs).Evaluate(0, 100); ok {
		t.Error("ACTUAL_HIT mode: expected no match")
	}
}

func TestEvaluateTargetPriceAdvance(t *testing.T) {
	// After a TARGET hoop, the next band is computed from the band midpoint
	// (97), not the hit price (96.04).
	hoop1 := hoop.Hoop{
		Name: "dip", MinPricePercent: -4, MaxPricePercent: pf(-2),
		Distance: 2, Tolerance: 0, AnchorMode: hoop.AnchorTarget,
	}
	hoop2 := hoop.Hoop{
		Name: "flat", MinPricePercent: 0, MaxPricePercent: pf(0),
		Distance: 1, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
	}
	p := &hoop.Pattern{
		ID: "t2", Name: "target-price",
		Hoops:         []hoop.Hoop{hoop1, hoop2},
		SmoothingType: hoop.SmoothingNone,
		CombineMode:   hoop.CombinePatternOnly,
	}
	refs := rawRefs(100, 100, 96.04, 97)

	m, ok := NewEvaluator(p, refs).Evaluate(0, 100)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.HitBars[1] != 3 || m.HitPrices[1] != 97 {
		t.Errorf("second hit = %+v, want bar 3 at 97", m)
	}
}

func TestEvaluateUnreachableWindow(t *testing.T) {
	p := singleHoopPattern(hoop.Hoop{
		Name: "far", MinPricePercent: -100,
		Distance: 50, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
	})
	refs := rawRefs(100, 100, 100)

	// Window [50, 50] lies beyond the series: chain failure, no panic.
	if _, ok := NewEvaluator(p, refs).Evaluate(0, 100); ok {
		t.Error("expected no match for unreachable window")
	}
}

func TestEvaluateWindowReachesBeforeAnchor(t *testing.T) {
	// A hoop with tolerance larger than distance has a window that starts
	// before its reference bar; it clips to bar 0 and the hit may land on a
	// bar earlier than the anchor itself.
	hoop1 := hoop.Hoop{
		Name: "step", MinPricePercent: 0, MaxPricePercent: pf(0),
		Distance: 1, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
	}
	hoop2 := hoop.Hoop{
		Name: "reach", MinPricePercent: 0, MaxPricePercent: pf(0),
		Distance: 1, Tolerance: 3, AnchorMode: hoop.AnchorActualHit,
	}
	hoop3 := hoop.Hoop{
		Name: "close", MinPricePercent: 0, MaxPricePercent: pf(0),
		Distance: 1, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
	}
	p := &hoop.Pattern{
		ID: "reach", Name: "reach-back",
		Hoops:         []hoop.Hoop{hoop1, hoop2, hoop3},
		SmoothingType: hoop.SmoothingNone,
		CombineMode:   hoop.CombinePatternOnly,
	}
	refs := rawRefs(100, 100)

	m, ok := NewEvaluator(p, refs).Evaluate(0, 100)
	if !ok {
		t.Fatal("expected a match")
	}
	// Hoop 2's window [-1, 5] clips to [0, 1]; bar 0 is the first
	// qualifying bar even though it precedes hoop 1's hit.
	want := []int{1, 0, 1}
	for i, w := range want {
		if m.HitBars[i] != w {
			t.Errorf("HitBars[%d] = %d, want %d", i, m.HitBars[i], w)
		}
	}
	if m.CompletionBar != 1 {
		t.Errorf("CompletionBar = %d, want 1", m.CompletionBar)
	}
}

func TestEvaluateEmptyHoopList(t *testing.T) {
	p := &hoop.Pattern{
		ID: "empty", SmoothingType: hoop.SmoothingNone, CombineMode: hoop.CombinePatternOnly,
	}
	if _, ok := NewEvaluator(p, rawRefs(100, 100)).Evaluate(0, 100); ok {
		t.Error("a pattern with no hoops must never match")
	}
}

func TestEvaluateSkipsWarmUpBars(t *testing.T) {
	p := singleHoopPattern(hoop.Hoop{
		Name: "any", MinPricePercent: -100,
		Distance: 1, Tolerance: 1, AnchorMode: hoop.AnchorActualHit,
	})
	refs := &reference.Series{Values: []float64{100, 100, 100, 100}, WarmUp: 2}

	// Window [1, 3] around anchor 1 overlaps warm-up; bar 1 is ineligible.
	m, ok := NewEvaluator(p, refs).Evaluate(1, 100)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.HitBars[0] != 2 {
		t.Errorf("HitBars[0] = %d, want 2 (first available bar)", m.HitBars[0])
	}
}

func TestPriceBandNormalization(t *testing.T) {
	tests := []struct {
		name     string
		min      float64
		max      *float64
		refPrice float64
		wantLo   float64
		wantHi   float64
	}{
		{"negative band", -4, pf(-2), 100, 96, 98},
		{"positive band", 2, pf(4), 100, 102, 104},
		{"straddling band", -2, pf(2), 100, 98, 102},
		{"open-ended", 2, nil, 100, 102, math.Inf(1)},
		{"negative ref price flips", -4, pf(-2), -100, -98, -96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hoop.Hoop{MinPricePercent: tt.min, MaxPricePercent: tt.max}
			lo, hi := priceBand(tt.refPrice, h)
			if lo > hi {
				t.Fatalf("band not normalized: lo=%v hi=%v", lo, hi)
			}
			if math.Abs(lo-tt.wantLo) > 1e-9 {
				t.Errorf("lo = %v, want %v", lo, tt.wantLo)
			}
			if !math.IsInf(tt.wantHi, 1) && math.Abs(hi-tt.wantHi) > 1e-9 {
				t.Errorf("hi = %v, want %v", hi, tt.wantHi)
			}
			if math.IsInf(tt.wantHi, 1) && !math.IsInf(hi, 1) {
				t.Errorf("hi = %v, want +Inf", hi)
			}
		})
	}
}
