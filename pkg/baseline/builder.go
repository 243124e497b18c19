package baseline

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Joao-Silverio/Fisiologia/pkg/telemetry"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// trendEpsilon keeps the trend ratio finite for athletes whose all-time
// mean is zero.
const trendEpsilon = 1.0

// Profile is the historical baseline for one (athlete, period, metric),
// built only from matches strictly before the match being projected.
type Profile struct {
	Athlete string
	Period  types.Period
	Metric  types.Metric

	AllTimeMean float64
	RecentMean  float64
	TrendRatio  float64
	RestDays    int
	Load3Games  float64
	Load7Games  float64
	GamesPlayed int

	// ContextMean is the mean over historical matches with the same score
	// outcome; absent with fewer than Options.ContextMinGames of them.
	ContextMean types.OptionalFloat

	// InsufficientHistory is set when the athlete has no prior matches for
	// this period. The engine must treat it as a mandatory fallback trigger.
	InsufficientHistory bool
}

// Options carries the baseline windows and rest-day clamps.
type Options struct {
	RecentWindow    int
	LoadWindow      int
	RestMin         int
	RestMax         int
	RestDefault     int
	ContextMinGames int
}

// DefaultOptions mirrors the training job's windows: last-3-game recency,
// 7-game load horizon, rest days clamped to [1, 30] with a neutral 7-day
// default for an athlete's first match.
func DefaultOptions() Options {
	return Options{
		RecentWindow:    3,
		LoadWindow:      7,
		RestMin:         1,
		RestMax:         30,
		RestDefault:     7,
		ContextMinGames: 3,
	}
}

// Build computes the baseline profile for (athlete, period, metric) as of a
// match date. Every quantity is causal: only matches dated strictly before
// asOf contribute, so appending later matches can never change a profile
// computed for an earlier one.
func Build(agg *telemetry.Aggregates, athlete string, period types.Period, metric types.Metric, asOf time.Time, outcome types.Outcome, opts Options) Profile {
	p := Profile{Athlete: athlete, Period: period, Metric: metric}

	hist := agg.History(athlete, period, asOf)
	p.GamesPlayed = len(hist)
	p.RestDays = restDays(hist, asOf, opts)

	if len(hist) == 0 {
		p.InsufficientHistory = true
		return p
	}

	totals := make([]float64, len(hist))
	for i, g := range hist {
		totals[i] = g.Total(metric)
	}
	p.AllTimeMean = stat.Mean(totals, nil)

	recent := tail(totals, opts.RecentWindow)
	p.RecentMean = stat.Mean(recent, nil)
	p.TrendRatio = p.RecentMean / (p.AllTimeMean + trendEpsilon)

	p.Load3Games = sumTail(hist, types.MetricMechanicalLoad, opts.RecentWindow)
	p.Load7Games = sumTail(hist, types.MetricMechanicalLoad, opts.LoadWindow)

	var ctxTotals []float64
	for _, g := range hist {
		if diff, ok := g.ScoreDiff.Value(); ok && types.OutcomeFromDiff(diff) == outcome {
			ctxTotals = append(ctxTotals, g.Total(metric))
		}
	}
	if len(ctxTotals) >= opts.ContextMinGames {
		p.ContextMean = types.SomeFloat(stat.Mean(ctxTotals, nil))
	}

	return p
}

// restDays measures days between the previous match and asOf, clamped to
// [RestMin, RestMax] so data errors (two matches recorded on one calendar
// date, season-break gaps) do not produce degenerate model inputs.
func restDays(hist []*telemetry.GameAggregate, asOf time.Time, opts Options) int {
	if len(hist) == 0 {
		return opts.RestDefault
	}
	prev := hist[len(hist)-1].Key.Match
	days := int(telemetry.DayKey(asOf).Sub(prev).Hours() / 24)
	if days < opts.RestMin {
		days = opts.RestMin
	}
	if days > opts.RestMax {
		days = opts.RestMax
	}
	return days
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func sumTail(hist []*telemetry.GameAggregate, metric types.Metric, n int) float64 {
	start := 0
	if len(hist) > n {
		start = len(hist) - n
	}
	var sum float64
	for _, g := range hist[start:] {
		sum += g.Total(metric)
	}
	return sum
}
