package types

import (
	"time"
)

// Metric identifies one tracked telemetry quantity.
type Metric string

const (
	MetricTotalDistance   Metric = "total_distance"
	MetricZone4Distance   Metric = "zone4_distance"
	MetricZone5Distance   Metric = "zone5_distance"
	MetricZone4Efficiency Metric = "zone4_efficiency"
	MetricZone5Efficiency Metric = "zone5_efficiency"
	MetricMechanicalLoad  Metric = "mechanical_load"

	// MetricHighIntensity is the composite high-intensity-action count,
	// pre-summed by the ingestion layer from the speed-zone and
	// acceleration/deceleration counters.
	MetricHighIntensity Metric = "high_intensity_actions"
)

// AllMetrics returns every metric the engine tracks, in a stable order.
func AllMetrics() []Metric {
	return []Metric{
		MetricTotalDistance,
		MetricZone4Distance,
		MetricZone5Distance,
		MetricZone4Efficiency,
		MetricZone5Efficiency,
		MetricMechanicalLoad,
		MetricHighIntensity,
	}
}

// Period is one half of a match, the unit over which cumulative metrics
// reset to zero.
type Period int

const (
	FirstHalf  Period = 1
	SecondHalf Period = 2
)

// Outcome classifies the score context of a match moment.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
	OutcomeLoss Outcome = "loss"
)

// OutcomeFromDiff maps a goal differential to its outcome class.
func OutcomeFromDiff(diff int) Outcome {
	switch {
	case diff > 0:
		return OutcomeWin
	case diff < 0:
		return OutcomeLoss
	default:
		return OutcomeDraw
	}
}

// Sample is one per-minute telemetry record for one athlete, produced by the
// ingestion layer. Raw metric values are expected non-negative; the
// aggregator clamps anything else. A metric absent from Metrics counts as
// zero for that minute, it is never dropped.
type Sample struct {
	Athlete   string    `json:"athlete"`
	MatchDate time.Time `json:"match_date"`
	Period    Period    `json:"period"`
	Minute    int       `json:"minute"`

	Metrics map[Metric]float64 `json:"metrics"`

	// Optional context columns. Absence is decided here, once, not
	// re-checked downstream.
	ScoreDiff      OptionalInt   `json:"score_diff"`
	Home           OptionalBool  `json:"home"`
	MetabolicPower OptionalFloat `json:"metabolic_power"`
}
