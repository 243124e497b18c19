package engine

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Joao-Silverio/Fisiologia/pkg/telemetry"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// teamPaceDelta compares the whole team's output pace in the current match
// against the team's historical pace over the same elapsed minutes: mean
// cumulative value per athlete today versus mean per (match, athlete) across
// every other match. Returns 0 when either side is unknown.
func teamPaceDelta(agg *telemetry.Aggregates, match time.Time, period types.Period, metric types.Metric, cutoff int) float64 {
	day := telemetry.DayKey(match)

	var today []float64
	for _, g := range agg.GamesForMatch(day, period) {
		today = append(today, g.CumulativeAt(metric, cutoff))
	}
	if len(today) == 0 {
		return 0
	}

	var hist []float64
	for _, m := range agg.MatchDates(period) {
		if m.Equal(day) {
			continue
		}
		for _, g := range agg.GamesForMatch(m, period) {
			hist = append(hist, g.CumulativeAt(metric, cutoff))
		}
	}
	if len(hist) == 0 {
		return 0
	}

	histMean := stat.Mean(hist, nil)
	if histMean <= 0 {
		return 0
	}
	return (stat.Mean(today, nil)/histMean - 1) * 100
}
