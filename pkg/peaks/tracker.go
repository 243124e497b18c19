package peaks

import (
	"github.com/Joao-Silverio/Fisiologia/pkg/telemetry"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// DefaultWindow is the record window in minutes.
const DefaultWindow = 5

// Record returns the athlete's worst-case window for a metric: the maximum
// rolling sum over `window` consecutive minutes across every historical
// match and period. Windows at the start of a match may be partial
// (min-periods-1 semantics). Non-negative, and non-decreasing as more
// matches are observed.
func Record(agg *telemetry.Aggregates, athlete string, metric types.Metric, window int) float64 {
	if window < 1 {
		window = 1
	}
	var record float64
	for _, g := range agg.AllGames(athlete) {
		if peak := gamePeak(g.PerMinute[metric], window); peak > record {
			record = peak
		}
	}
	return record
}

// CurrentWindow sums the metric over the trailing `window` minutes ending at
// the cutoff, for the in-progress match. Paired with Record it yields the
// "current effort as % of personal record" indicator.
func CurrentWindow(g *telemetry.GameAggregate, metric types.Metric, cutoff, window int) float64 {
	if g == nil || window < 1 {
		return 0
	}
	var sum float64
	for _, pt := range g.PerMinute[metric] {
		if pt.Minute > cutoff-window && pt.Minute <= cutoff {
			sum += pt.Value
		}
	}
	return sum
}

// gamePeak is a rolling sum over consecutive recorded minutes with a
// running maximum, matching rolling(window, min_periods=1).sum().max().
func gamePeak(series []telemetry.MinutePoint, window int) float64 {
	var peak, sum float64
	for i := range series {
		sum += series[i].Value
		if i >= window {
			sum -= series[i-window].Value
		}
		if sum > peak {
			peak = sum
		}
	}
	return peak
}
