package engine

import (
	"github.com/Joao-Silverio/Fisiologia/pkg/curve"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// FallbackInput carries everything a heuristic estimator may use. Optional
// context is already resolved to neutral defaults by the engine.
type FallbackInput struct {
	Current      float64
	CutoffMinute int
	NominalEnd   int
	Horizon      int

	PaceFactor float64

	Curve        curve.Curve
	ContextCurve curve.Curve
	BlendWeight  float64

	// MetabolicRatio is the athlete's recent metabolic power relative to
	// the historical mean, when both are known.
	MetabolicRatio types.OptionalFloat
}

// FallbackStrategy estimates the metric output remaining between the cutoff
// and the end of the projection window when no trained model is usable. The
// engine owns distributing the estimate across future minutes, so every
// strategy shares the same band and weight-distribution behavior.
type FallbackStrategy interface {
	Name() string
	EstimateRemaining(in FallbackInput) float64
}

// StrategyByName resolves a configured strategy name, defaulting to the
// pace-blend estimator for unknown names.
func StrategyByName(name string) FallbackStrategy {
	switch name {
	case "fatigue_curve":
		return FatigueCurveStrategy{}
	case "metabolic":
		return MetabolicStrategy{}
	default:
		return PaceBlendStrategy{}
	}
}

// PaceBlendStrategy projects the remainder of the period by replaying the
// historical intensity curve, blended with the same-score-context curve,
// scaled by the athlete's current pace factor. This is the reference
// heuristic: with no context matches and a neutral pace it reproduces the
// athlete's average remaining output exactly.
type PaceBlendStrategy struct{}

func (PaceBlendStrategy) Name() string { return "pace_blend" }

func (PaceBlendStrategy) EstimateRemaining(in FallbackInput) float64 {
	return blendedRemaining(in, func(minute int) float64 { return 1 })
}

// FatigueCurveStrategy is PaceBlendStrategy with each minute's expected
// output damped by a physiological decay multiplier that falls quadratically
// with period progress, floored at 0.75.
type FatigueCurveStrategy struct{}

func (FatigueCurveStrategy) Name() string { return "fatigue_curve" }

func (FatigueCurveStrategy) EstimateRemaining(in FallbackInput) float64 {
	return blendedRemaining(in, func(minute int) float64 {
		return fatigueFactor(minute, in.NominalEnd)
	})
}

// fatigueFactor models within-period decay: negligible through the opening
// stretch, accelerating past ~60% of the period.
func fatigueFactor(minute, nominalEnd int) float64 {
	if nominalEnd < 1 {
		nominalEnd = 1
	}
	progress := float64(minute) / float64(nominalEnd)
	decay := 1.0 - 0.15*progress*progress
	if decay < 0.75 {
		return 0.75
	}
	return decay
}

// MetabolicStrategy is PaceBlendStrategy with the estimate scaled by the
// metabolic-power adjustment: athletes running hotter than their historical
// metabolic mean tend to cover less remaining distance.
type MetabolicStrategy struct{}

func (MetabolicStrategy) Name() string { return "metabolic" }

func (MetabolicStrategy) EstimateRemaining(in FallbackInput) float64 {
	remaining := blendedRemaining(in, func(minute int) float64 { return 1 })
	if ratio, ok := in.MetabolicRatio.Value(); ok && ratio > 0 {
		factor := 1.0 - (ratio-1.0)*0.15
		if factor < 0.85 {
			factor = 0.85
		}
		if factor > 1.15 {
			factor = 1.15
		}
		remaining *= factor
	}
	return remaining
}

// blendedRemaining sums per-minute increments of the context-blended curve
// over (cutoff, nominalEnd], scaled by the pace factor and a per-minute
// shape multiplier. When the horizon runs past the nominal period end the
// estimate is extended proportionally.
func blendedRemaining(in FallbackInput, shape func(minute int) float64) float64 {
	blended := in.Curve.Blend(in.ContextCurve, in.BlendWeight)

	var remaining float64
	for m := in.CutoffMinute + 1; m <= in.NominalEnd; m++ {
		remaining += blended.Increment(m) * in.PaceFactor * shape(m)
	}

	if in.Horizon > in.NominalEnd && in.NominalEnd > in.CutoffMinute {
		remaining *= float64(in.Horizon-in.CutoffMinute) / float64(in.NominalEnd-in.CutoffMinute)
	}
	return remaining
}
