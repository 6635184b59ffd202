package matcher

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"hoopscan/internal/hoop"
)

func flatPattern(cooldown int, overlap bool) *hoop.Pattern {
	// Hits one bar after the anchor on any flat series.
	return &hoop.Pattern{
		ID: "flat", Name: "flat",
		Hoops: []hoop.Hoop{{
			Name: "next", MinPricePercent: 0, MaxPricePercent: pf(0),
			Distance: 1, Tolerance: 0, AnchorMode: hoop.AnchorActualHit,
		}},
		SmoothingType: hoop.SmoothingNone,
		CooldownBars:  cooldown,
		AllowOverlap:  overlap,
		CombineMode:   hoop.CombinePatternOnly,
	}
}

func TestSearchSingleMatch(t *testing.T) {
	p := &hoop.Pattern{
		ID: "dip", Name: "dip",
		Hoops: []hoop.Hoop{{
			Name: "dip", MinPricePercent: -4, MaxPricePercent: pf(-2),
			Distance: 5, Tolerance: 1, AnchorMode: hoop.AnchorActualHit,
		}},
		SmoothingType: hoop.SmoothingNone,
		CombineMode:   hoop.CombinePatternOnly,
	}
	candles := seriesFromCloses(100, 110, 110, 110, 110, 97, 110, 110)

	matches, err := NewSearcher().Search(context.Background(), p, candles)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].AnchorBar != 0 || matches[0].HitBars[0] != 5 {
		t.Errorf("unexpected match: %+v", matches[0])
	}
}

func TestSearchCooldown(t *testing.T) {
	p := flatPattern(2, false)
	candles := seriesFromCloses(100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)

	matches, err := NewSearcher().Search(context.Background(), p, candles)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// Anchors advance to completion + cooldown + 1: 0, 4, 8.
	wantAnchors := []int{0, 4, 8}
	if len(matches) != len(wantAnchors) {
		t.Fatalf("expected %d matches, got %d", len(wantAnchors), len(matches))
	}
	for i, m := range matches {
		if m.AnchorBar != wantAnchors[i] {
			t.Errorf("match %d anchor = %d, want %d", i, m.AnchorBar, wantAnchors[i])
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].AnchorBar < matches[i-1].CompletionBar+p.CooldownBars+1 {
			t.Errorf("cooldown violated between matches %d and %d", i-1, i)
		}
	}
}

func TestSearchAllowOverlap(t *testing.T) {
	p := flatPattern(2, true)
	candles := seriesFromCloses(100, 100, 100, 100, 100, 100)

	matches, err := NewSearcher().Search(context.Background(), p, candles)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// Every anchor with a bar after it matches: 0..4.
	if len(matches) != 5 {
		t.Fatalf("expected 5 overlapping matches, got %d", len(matches))
	}
	for i, m := range matches {
		if m.AnchorBar != i {
			t.Errorf("match %d anchor = %d, want %d", i, m.AnchorBar, i)
		}
	}
}

func TestSearchDeterminism(t *testing.T) {
	p := &hoop.Pattern{
		ID: "wide", Name: "wide",
		Hoops: []hoop.Hoop{{
			Name: "band", MinPricePercent: -3, MaxPricePercent: pf(3),
			Distance: 2, Tolerance: 2, AnchorMode: hoop.AnchorTarget,
		}},
		SmoothingType: hoop.SmoothingNone,
		CooldownBars:  1,
		CombineMode:   hoop.CombinePatternOnly,
	}
	closes := make([]float64, 0, 60)
	price := 100.0
	for i := 0; i < 60; i++ {
		// Deterministic pseudo-walk.
		price += float64((i*7919)%11) - 5
		closes = append(closes, price)
	}
	candles := seriesFromCloses(closes...)

	first, err := NewSearcher().Search(context.Background(), p, candles)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	second, err := NewSearcher().Search(context.Background(), p, candles)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same inputs produced different match lists")
	}
	for i := 1; i < len(first); i++ {
		if first[i].AnchorBar <= first[i-1].AnchorBar {
			t.Error("matches not in ascending anchor order")
		}
	}
}

func TestSearchParallelMatchesSequential(t *testing.T) {
	for _, overlap := range []bool{false, true} {
		p := flatPattern(1, overlap)
		closes := make([]float64, 80)
		for i := range closes {
			if i%7 == 0 {
				closes[i] = 105
			} else {
				closes[i] = 100
			}
		}
		candles := seriesFromCloses(closes...)

		sequential, err := NewSearcher().Search(context.Background(), p, candles)
		if err != nil {
			t.Fatalf("sequential search failed: %v", err)
		}
		parallel, err := NewSearcher(WithWorkers(4)).Search(context.Background(), p, candles)
		if err != nil {
			t.Fatalf("parallel search failed: %v", err)
		}
		if !reflect.DeepEqual(sequential, parallel) {
			t.Errorf("overlap=%v: parallel result differs from sequential", overlap)
		}
	}
}

func TestSearchWindowClippedAtSeriesStart(t *testing.T) {
	// A mid-chain hoop whose tolerance exceeds its distance reaches back
	// before the anchor, so the chain completes on a series shorter than the
	// sum of the hoop distances. The search must still find it rather than
	// dismissing the series as too short.
	p := &hoop.Pattern{
		ID: "reach", Name: "reach-back",
		Hoops: []hoop.Hoop{
			{Name: "step", MinPricePercent: 0, MaxPricePercent: pf(0),
				Distance: 1, Tolerance: 0, AnchorMode: hoop.AnchorActualHit},
			{Name: "reach", MinPricePercent: 0, MaxPricePercent: pf(0),
				Distance: 1, Tolerance: 3, AnchorMode: hoop.AnchorActualHit},
			{Name: "close", MinPricePercent: 0, MaxPricePercent: pf(0),
				Distance: 1, Tolerance: 0, AnchorMode: hoop.AnchorActualHit},
		},
		SmoothingType: hoop.SmoothingNone,
		CombineMode:   hoop.CombinePatternOnly,
	}
	candles := seriesFromCloses(100, 100)

	matches, err := NewSearcher().Search(context.Background(), p, candles)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.AnchorBar != 0 || m.CompletionBar != 1 {
		t.Errorf("unexpected match: %+v", m)
	}
	if want := []int{1, 0, 1}; len(m.HitBars) != 3 || m.HitBars[0] != want[0] || m.HitBars[1] != want[1] || m.HitBars[2] != want[2] {
		t.Errorf("HitBars = %v, want %v", m.HitBars, want)
	}
}

func TestSearchWarmUpOnlySeries(t *testing.T) {
	// EMA(10) smoothing on a 5-bar series: everything is warm-up, so the
	// search returns no matches and no error.
	p := flatPattern(0, false)
	p.SmoothingType = hoop.SmoothingEMA
	p.SmoothingPeriod = 10
	candles := seriesFromCloses(100, 100, 100, 100, 100)

	matches, err := NewSearcher().Search(context.Background(), p, candles)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestSearchEmptySeries(t *testing.T) {
	matches, err := NewSearcher().Search(context.Background(), flatPattern(0, false), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestSearchInvalidPattern(t *testing.T) {
	p := flatPattern(0, false)
	p.Hoops[0].Distance = 0

	if _, err := NewSearcher().Search(context.Background(), p, seriesFromCloses(100)); !errors.Is(err, hoop.ErrInvalidDistance) {
		t.Errorf("expected definition error, got %v", err)
	}
}

func TestSearchCancellation(t *testing.T) {
	p := flatPattern(0, false)
	closes := make([]float64, 2000)
	for i := range closes {
		closes[i] = 100
	}
	candles := seriesFromCloses(closes...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		if _, err := NewSearcher(WithWorkers(workers)).Search(ctx, p, candles); !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
	}
}

func TestSearchUnorderedSeriesRejected(t *testing.T) {
	candles := seriesFromCloses(100, 100)
	candles[1].Timestamp = candles[0].Timestamp

	_, err := NewSearcher().Search(context.Background(), flatPattern(0, false), candles)
	if err == nil {
		t.Error("expected a series validation error")
	}
}
