package curve

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Joao-Silverio/Fisiologia/pkg/telemetry"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// Curve maps a minute index to the mean cumulative value observed at that
// minute across an athlete's historical matches. Minutes never seen are
// absent; callers treat them as weight zero, not as errors.
type Curve map[int]float64

// Estimate averages, across all of the athlete's matches for the period
// except excludeMatch, the cumulative metric value at each minute index.
func Estimate(agg *telemetry.Aggregates, athlete string, period types.Period, metric types.Metric, excludeMatch time.Time) Curve {
	return estimate(agg, athlete, period, metric, excludeMatch, nil)
}

// EstimateContext is Estimate restricted to matches whose score outcome
// matched the given one. It also reports how many matches contributed,
// which drives the blend weight.
func EstimateContext(agg *telemetry.Aggregates, athlete string, period types.Period, metric types.Metric, excludeMatch time.Time, outcome types.Outcome) (Curve, int) {
	filter := func(g *telemetry.GameAggregate) bool {
		diff, ok := g.ScoreDiff.Value()
		return ok && types.OutcomeFromDiff(diff) == outcome
	}
	c := estimate(agg, athlete, period, metric, excludeMatch, filter)
	n := 0
	exclude := telemetry.DayKey(excludeMatch)
	for _, g := range agg.History(athlete, period, farFuture) {
		if g.Key.Match.Equal(exclude) {
			continue
		}
		if filter(g) {
			n++
		}
	}
	return c, n
}

// farFuture bounds History queries that should span every recorded match.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

func estimate(agg *telemetry.Aggregates, athlete string, period types.Period, metric types.Metric, excludeMatch time.Time, filter func(*telemetry.GameAggregate) bool) Curve {
	exclude := telemetry.DayKey(excludeMatch)
	values := make(map[int][]float64)
	for _, g := range agg.History(athlete, period, farFuture) {
		if g.Key.Match.Equal(exclude) {
			continue
		}
		if filter != nil && !filter(g) {
			continue
		}
		for _, pt := range g.Cumulative[metric] {
			values[pt.Minute] = append(values[pt.Minute], pt.Value)
		}
	}

	c := make(Curve, len(values))
	for minute, vs := range values {
		c[minute] = stat.Mean(vs, nil)
	}
	return c
}

// At returns the mean cumulative value at a minute, if observed.
func (c Curve) At(minute int) (float64, bool) {
	v, ok := c[minute]
	return v, ok
}

// AtOrLast returns the value at the minute, falling back to the last known
// minute at or before it. Reports false only for an empty prefix.
func (c Curve) AtOrLast(minute int) (float64, bool) {
	if v, ok := c[minute]; ok {
		return v, true
	}
	best := -1
	for m := range c {
		if m <= minute && m > best {
			best = m
		}
	}
	if best < 0 {
		return 0, false
	}
	return c[best], true
}

// Increment returns the expected output of one minute: the curve value at
// the minute less the value at the last observed minute before it. Zero
// when the minute itself was never observed.
func (c Curve) Increment(minute int) float64 {
	v, ok := c[minute]
	if !ok {
		return 0
	}
	prev, ok := c.AtOrLast(minute - 1)
	if !ok {
		return v
	}
	d := v - prev
	if d < 0 {
		return 0
	}
	return d
}

// Blend mixes a context-specific curve into this one with the given weight:
// w*context + (1-w)*all, minute by minute. Minutes the context curve never
// observed keep the all-context value, matching how the training pipeline
// falls back when a score scenario is sparse.
func (c Curve) Blend(context Curve, w float64) Curve {
	if w <= 0 || len(context) == 0 {
		return c
	}
	if w > 1 {
		w = 1
	}
	out := make(Curve, len(c))
	for minute, all := range c {
		if ctx, ok := context[minute]; ok {
			out[minute] = ctx*w + all*(1-w)
		} else {
			out[minute] = all
		}
	}
	return out
}

// Minutes returns the observed minute indices in ascending order.
func (c Curve) Minutes() []int {
	out := make([]int, 0, len(c))
	for m := range c {
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// MaxMinute returns the last observed minute, or -1 for an empty curve.
func (c Curve) MaxMinute() int {
	max := -1
	for m := range c {
		if m > max {
			max = m
		}
	}
	return max
}
