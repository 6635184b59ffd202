package matcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"hoopscan/internal/hoop"
	"hoopscan/internal/models"
	"hoopscan/internal/reference"
)

// ctxCheckInterval is how many candidate anchors are evaluated between
// context cancellation checks in the sequential path.
const ctxCheckInterval = 256

// Searcher enumerates matches across an entire series for one pattern.
// With Workers > 1 candidate anchors are evaluated concurrently; the match
// set is merged in ascending-anchor order so it is identical to the
// sequential result under either overlap policy.
type Searcher struct {
	logger  zerolog.Logger
	workers int
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger attaches a logger to the searcher.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

// WithWorkers sets the number of parallel evaluation workers. Values below 2
// select the sequential path.
func WithWorkers(n int) Option {
	return func(s *Searcher) { s.workers = n }
}

// NewSearcher creates a searcher.
func NewSearcher(opts ...Option) *Searcher {
	s := &Searcher{logger: zerolog.Nop(), workers: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the pattern against the series and returns the completed
// matches in ascending anchor order. The pattern is validated at this edge;
// the hot loop assumes well-formed hoops. No-match outcomes, short series and
// series entirely inside the smoothing warm-up all return an empty list.
// Cancelling the context abandons the search and discards partial results.
func (s *Searcher) Search(ctx context.Context, p *hoop.Pattern, candles []models.Candle) ([]Match, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", p.ID, err)
	}
	if err := models.ValidateSeries(candles); err != nil {
		return nil, err
	}

	refs, err := reference.Resolve(candles, p.SmoothingType, p.SmoothingPeriod)
	if err != nil {
		return nil, err
	}
	if len(p.Hoops) == 0 || refs.WarmUp >= refs.Len() {
		return nil, nil
	}

	ev := NewEvaluator(p, refs)
	if s.workers > 1 {
		return s.searchParallel(ctx, p, ev, refs)
	}
	return s.searchSequential(ctx, p, ev, refs)
}

// nextAnchor applies the anchor-advance policy after a successful match.
// A chain whose completion bar sits at or before the anchor (tolerance larger
// than distance) still advances by at least one bar.
func nextAnchor(p *hoop.Pattern, anchor int, m Match) int {
	if p.AllowOverlap {
		return anchor + 1
	}
	next := m.CompletionBar + p.CooldownBars + 1
	if next <= anchor {
		next = anchor + 1
	}
	return next
}

func (s *Searcher) searchSequential(ctx context.Context, p *hoop.Pattern, ev *Evaluator, refs *reference.Series) ([]Match, error) {
	var matches []Match
	anchor := refs.WarmUp
	for checked := 0; anchor < refs.Len(); checked++ {
		if checked%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		m, ok := ev.Evaluate(anchor, refs.Values[anchor])
		if !ok {
			anchor++
			continue
		}
		matches = append(matches, m)
		anchor = nextAnchor(p, anchor, m)
	}
	s.logger.Debug().
		Str("pattern", p.ID).
		Int("matches", len(matches)).
		Msg("Search completed")
	return matches, nil
}

// searchParallel evaluates every candidate anchor concurrently, then replays
// the sequential anchor-advance policy over the per-anchor results. Skipped
// anchors are never selected, so the merged set equals the sequential one.
func (s *Searcher) searchParallel(ctx context.Context, p *hoop.Pattern, ev *Evaluator, refs *reference.Series) ([]Match, error) {
	n := refs.Len()
	first := refs.WarmUp
	results := make([]*Match, n)

	var wg sync.WaitGroup
	anchors := make(chan int)
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for anchor := range anchors {
				if cctx.Err() != nil {
					return
				}
				if m, ok := ev.Evaluate(anchor, refs.Values[anchor]); ok {
					m := m
					results[anchor] = &m
				}
			}
		}()
	}

feed:
	for anchor := first; anchor < n; anchor++ {
		select {
		case anchors <- anchor:
		case <-cctx.Done():
			break feed
		}
	}
	close(anchors)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []Match
	for anchor := first; anchor < n; {
		m := results[anchor]
		if m == nil {
			anchor++
			continue
		}
		matches = append(matches, *m)
		anchor = nextAnchor(p, anchor, *m)
	}
	s.logger.Debug().
		Str("pattern", p.ID).
		Int("workers", s.workers).
		Int("matches", len(matches)).
		Msg("Parallel search completed")
	return matches, nil
}
