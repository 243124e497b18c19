package telemetry

import (
	"sort"
	"time"

	"github.com/Joao-Silverio/Fisiologia/types"
)

// GameKey identifies one athlete's run-out in one period of one match.
type GameKey struct {
	Athlete string
	Match   time.Time
	Period  types.Period
}

// MinutePoint is one value at one minute index of a period.
type MinutePoint struct {
	Minute int     `json:"minute"`
	Value  float64 `json:"value"`
}

// GameAggregate holds everything derived from one (athlete, match, period)
// group: metric totals, per-minute raw values, per-minute running sums, and
// the last known match context. Recomputed on every refresh, never persisted.
type GameAggregate struct {
	Key GameKey

	Totals     map[types.Metric]float64
	PerMinute  map[types.Metric][]MinutePoint
	Cumulative map[types.Metric][]MinutePoint

	// MinutesPlayed is the highest minute index reached.
	MinutesPlayed int

	// ScoreDiff is the last known goal differential, Home the first known
	// home/away flag.
	ScoreDiff types.OptionalInt
	Home      types.OptionalBool

	// Metabolic-power readings, kept separately because they are optional
	// per minute and averaged rather than summed.
	MetPower []MinutePoint
}

// CumulativeAt returns the running sum of a metric at the given minute: the
// value of the last recorded minute at or before it, or 0 when the athlete
// has no samples that early.
func (g *GameAggregate) CumulativeAt(metric types.Metric, minute int) float64 {
	series := g.Cumulative[metric]
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Minute > minute
	})
	if idx == 0 {
		return 0
	}
	return series[idx-1].Value
}

// Total returns the metric's sum over all minutes played.
func (g *GameAggregate) Total(metric types.Metric) float64 {
	return g.Totals[metric]
}

// MetPowerMean averages the recorded metabolic-power readings in
// (minute-window, minute]. Absent when no readings fall in the window.
func (g *GameAggregate) MetPowerMean(minute, window int) types.OptionalFloat {
	var sum float64
	var n int
	for _, p := range g.MetPower {
		if p.Minute > minute-window && p.Minute <= minute {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return types.OptionalFloat{}
	}
	return types.SomeFloat(sum / float64(n))
}

type athletePeriodKey struct {
	Athlete string
	Period  types.Period
}

type matchPeriodKey struct {
	Match  time.Time
	Period types.Period
}

// Aggregates indexes every GameAggregate of a single team/season cohort.
type Aggregates struct {
	games   map[GameKey]*GameAggregate
	history map[athletePeriodKey][]*GameAggregate // date ascending
	byMatch map[matchPeriodKey][]*GameAggregate
}

// DayKey normalizes a match date so equal calendar days compare equal as
// map keys regardless of clock time or zone.
func DayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Aggregate groups raw per-minute samples into per-athlete, per-match,
// per-period game aggregates with running cumulative series per metric.
// Raw values are clamped to >= 0 before accumulation, so every cumulative
// series is non-decreasing; absent metrics count as zero for their minute
// and minute indices are never skipped. Pure function over its input.
func Aggregate(samples []types.Sample) *Aggregates {
	ordered := make([]types.Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Athlete != b.Athlete {
			return a.Athlete < b.Athlete
		}
		if !a.MatchDate.Equal(b.MatchDate) {
			return a.MatchDate.Before(b.MatchDate)
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.Minute < b.Minute
	})

	agg := &Aggregates{
		games:   make(map[GameKey]*GameAggregate),
		history: make(map[athletePeriodKey][]*GameAggregate),
		byMatch: make(map[matchPeriodKey][]*GameAggregate),
	}

	for _, s := range ordered {
		if s.Minute < 0 {
			continue
		}
		key := GameKey{Athlete: s.Athlete, Match: DayKey(s.MatchDate), Period: s.Period}
		g, ok := agg.games[key]
		if !ok {
			g = &GameAggregate{
				Key:        key,
				Totals:     make(map[types.Metric]float64),
				PerMinute:  make(map[types.Metric][]MinutePoint),
				Cumulative: make(map[types.Metric][]MinutePoint),
			}
			agg.games[key] = g
			apk := athletePeriodKey{Athlete: key.Athlete, Period: key.Period}
			agg.history[apk] = append(agg.history[apk], g)
			mpk := matchPeriodKey{Match: key.Match, Period: key.Period}
			agg.byMatch[mpk] = append(agg.byMatch[mpk], g)
		}

		for _, metric := range types.AllMetrics() {
			v := s.Metrics[metric]
			if v < 0 {
				v = 0
			}
			g.Totals[metric] += v
			appendMinute(g.PerMinute, metric, s.Minute, v, false)
			appendMinute(g.Cumulative, metric, s.Minute, g.Totals[metric], true)
		}

		if s.Minute > g.MinutesPlayed {
			g.MinutesPlayed = s.Minute
		}
		if s.ScoreDiff.Present() {
			g.ScoreDiff = s.ScoreDiff
		}
		if !g.Home.Present() && s.Home.Present() {
			g.Home = s.Home
		}
		if mp, ok := s.MetabolicPower.Value(); ok {
			g.MetPower = append(g.MetPower, MinutePoint{Minute: s.Minute, Value: mp})
		}
	}

	return agg
}

// appendMinute extends a minute series, merging rows that repeat a minute
// index. Cumulative series overwrite the repeated point with the newer
// running total; raw series add into it.
func appendMinute(series map[types.Metric][]MinutePoint, metric types.Metric, minute int, value float64, overwrite bool) {
	pts := series[metric]
	if n := len(pts); n > 0 && pts[n-1].Minute == minute {
		if overwrite {
			pts[n-1].Value = value
		} else {
			pts[n-1].Value += value
		}
		return
	}
	series[metric] = append(series[metric], MinutePoint{Minute: minute, Value: value})
}

// Game returns the aggregate for one (athlete, match, period) group.
func (a *Aggregates) Game(key GameKey) (*GameAggregate, bool) {
	g, ok := a.games[GameKey{Athlete: key.Athlete, Match: DayKey(key.Match), Period: key.Period}]
	return g, ok
}

// History returns the athlete's games for a period with match dates strictly
// before the given date, ordered oldest first.
func (a *Aggregates) History(athlete string, period types.Period, before time.Time) []*GameAggregate {
	day := DayKey(before)
	all := a.history[athletePeriodKey{Athlete: athlete, Period: period}]
	out := make([]*GameAggregate, 0, len(all))
	for _, g := range all {
		if g.Key.Match.Before(day) {
			out = append(out, g)
		}
	}
	return out
}

// AllGames returns every game of an athlete across both periods, ordered by
// date then period. Used by the peak tracker, which spans all history.
func (a *Aggregates) AllGames(athlete string) []*GameAggregate {
	var out []*GameAggregate
	for _, period := range []types.Period{types.FirstHalf, types.SecondHalf} {
		out = append(out, a.history[athletePeriodKey{Athlete: athlete, Period: period}]...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Key.Match.Equal(out[j].Key.Match) {
			return out[i].Key.Match.Before(out[j].Key.Match)
		}
		return out[i].Key.Period < out[j].Key.Period
	})
	return out
}

// GamesForMatch returns every athlete's aggregate for one match period.
func (a *Aggregates) GamesForMatch(match time.Time, period types.Period) []*GameAggregate {
	return a.byMatch[matchPeriodKey{Match: DayKey(match), Period: period}]
}

// MatchDates returns every distinct match date seen for a period, across
// all athletes, in ascending order.
func (a *Aggregates) MatchDates(period types.Period) []time.Time {
	out := make([]time.Time, 0, len(a.byMatch))
	for k := range a.byMatch {
		if k.Period == period {
			out = append(out, k.Match)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Matches returns the athlete's distinct match dates for a period, ascending.
func (a *Aggregates) Matches(athlete string, period types.Period) []time.Time {
	games := a.history[athletePeriodKey{Athlete: athlete, Period: period}]
	out := make([]time.Time, 0, len(games))
	for _, g := range games {
		out = append(out, g.Key.Match)
	}
	return out
}
