package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Joao-Silverio/Fisiologia/pkg/baseline"
	"github.com/Joao-Silverio/Fisiologia/pkg/config"
	"github.com/Joao-Silverio/Fisiologia/pkg/curve"
	"github.com/Joao-Silverio/Fisiologia/pkg/logger"
	"github.com/Joao-Silverio/Fisiologia/pkg/model"
	"github.com/Joao-Silverio/Fisiologia/pkg/peaks"
	"github.com/Joao-Silverio/Fisiologia/pkg/telemetry"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// ErrInvalidRequest marks a projection request rejected before any
// computation. It is the only error Project ever returns; every other
// condition degrades to the fallback path and a diagnostic field.
var ErrInvalidRequest = errors.New("invalid projection request")

// Model feature vocabulary. Artifacts declare which of these they consume
// and in what order; names an artifact declares but the engine does not
// know resolve to zero.
const (
	featMinute      = "minute"
	featRestDays    = "rest_days"
	featGamesPlayed = "games_played"
	featLoad3Games  = "load_3_games"
	featLoad7Games  = "load_7_games"
	featScoreDiff   = "score_diff"
	featHome        = "home"
	featCurrent     = "current_cumulative"
	featAllTimeMean = "all_time_mean"
	featRecentMean  = "recent_mean"
	featContextMean = "context_mean"
	featTrendRatio  = "trend_ratio"
)

// Request asks for one projection: one athlete, one metric, one period of
// the in-progress match, observed through CutoffMinute and projected through
// HorizonMinute.
type Request struct {
	Athlete       string
	Metric        types.Metric
	Period        types.Period
	Match         time.Time
	CutoffMinute  int
	HorizonMinute int
}

// Engine combines baselines, intensity curves and trained regressors into
// live end-of-period projections. It is a pure synchronous computation
// component: each Project call is self-contained, and the only shared state
// is the write-once model store.
type Engine struct {
	cfg      *config.Config
	models   *model.Store
	strategy FallbackStrategy
}

// New builds an Engine over a model store, selecting the fallback strategy
// named by the configuration.
func New(cfg *config.Config, models *model.Store) *Engine {
	return &Engine{
		cfg:      cfg,
		models:   models,
		strategy: StrategyByName(cfg.FallbackStrategy),
	}
}

// Strategy reports the fallback strategy in use.
func (e *Engine) Strategy() FallbackStrategy { return e.strategy }

// Project produces the projection result for one request against one
// telemetry snapshot. Missing optional inputs degrade to neutral defaults;
// only invalid preconditions are rejected.
func (e *Engine) Project(ctx context.Context, snap *Snapshot, req Request) (*types.ProjectionResult, error) {
	if req.CutoffMinute < 0 {
		return nil, fmt.Errorf("%w: cutoff minute %d is negative", ErrInvalidRequest, req.CutoffMinute)
	}
	if req.HorizonMinute < req.CutoffMinute {
		return nil, fmt.Errorf("%w: horizon minute %d precedes cutoff minute %d",
			ErrInvalidRequest, req.HorizonMinute, req.CutoffMinute)
	}

	agg := snap.Aggregates()
	gameKey := telemetry.GameKey{Athlete: req.Athlete, Match: req.Match, Period: req.Period}
	game, hasGame := agg.Game(gameKey)

	var current float64
	scoreDiff := types.OptionalInt{}
	home := types.OptionalBool{}
	if hasGame {
		current = game.CumulativeAt(req.Metric, req.CutoffMinute)
		scoreDiff = game.ScoreDiff
		home = game.Home
	}
	outcome := types.OutcomeFromDiff(scoreDiff.Or(0))

	profile := baseline.Build(agg, req.Athlete, req.Period, req.Metric, req.Match, outcome, e.baselineOptions())
	hc := snap.Curve(req.Athlete, req.Period, req.Metric, req.Match)

	paceFactor := 1.0
	if ref, ok := hc.At(req.CutoffMinute); ok && ref > 0 {
		paceFactor = current / ref
	}

	result := &types.ProjectionResult{
		ID:                  uuid.New(),
		Athlete:             req.Athlete,
		Metric:              req.Metric,
		Period:              req.Period,
		CutoffMinute:        req.CutoffMinute,
		HorizonMinute:       req.HorizonMinute,
		CurrentValue:        current,
		PaceFactor:          paceFactor,
		EstimationPath:      types.PathFallback,
		InsufficientHistory: profile.InsufficientHistory,
		RestDays:            profile.RestDays,
		GamesPlayed:         profile.GamesPlayed,
		ScoreDiff:           scoreDiff,
		DeltaVsHistoryPct:   (paceFactor - 1) * 100,
		GeneratedAt:         time.Now(),
	}

	e.attachRecordDiagnostics(snap, game, req, result)

	// No-op projection: nothing to predict, nothing to distribute.
	if req.HorizonMinute == req.CutoffMinute {
		result.FinalProjected = current
		e.attachDeltas(snap, req, result, hc)
		return result, nil
	}

	nominalEnd := e.cfg.NominalPeriodEnd(req.Period)

	final := 0.0
	modelUsed := false
	if !profile.InsufficientHistory {
		if pred, mae, err := e.tryModel(ctx, req, profile, current, scoreDiff, home); err == nil {
			final = pred
			modelUsed = true
			result.EstimationPath = types.PathModel
			result.ModelMAE = types.SomeFloat(mae)
		}
	}

	if !modelUsed {
		in := FallbackInput{
			Current:      current,
			CutoffMinute: req.CutoffMinute,
			NominalEnd:   nominalEnd,
			Horizon:      req.HorizonMinute,
			PaceFactor:   paceFactor,
			Curve:        hc,
		}
		if profile.InsufficientHistory {
			// Neutral fallback: no curve pace, no context blending.
			in.PaceFactor = 1.0
		} else {
			ctxCurve, ctxGames := snap.ContextCurve(req.Athlete, req.Period, req.Metric, req.Match, outcome)
			in.ContextCurve = ctxCurve
			in.BlendWeight = e.blendWeight(ctxGames)
			in.MetabolicRatio = metabolicRatio(agg, game, req, e.cfg.PeakWindowMinutes)
			result.BlendWeight = in.BlendWeight
		}
		final = current + e.strategy.EstimateRemaining(in)
	}

	// Projected output can never be less than what has already accumulated.
	if final < current {
		final = current
	}
	result.FinalProjected = final

	e.distribute(result, hc, final-current)
	e.attachBands(result, modelUsed)
	e.attachDeltas(snap, req, result, hc)

	logger.WithProjectionContext(req.Athlete, string(req.Metric), int(req.Period), req.CutoffMinute, req.HorizonMinute).
		WithFields(logrus.Fields{
			"estimation_path": result.EstimationPath,
			"final_projected": result.FinalProjected,
			"pace_factor":     result.PaceFactor,
		}).Debug("Projection computed")

	return result, nil
}

func (e *Engine) baselineOptions() baseline.Options {
	return baseline.Options{
		RecentWindow:    e.cfg.RecentGamesWindow,
		LoadWindow:      e.cfg.LoadGamesWindow,
		RestMin:         e.cfg.RestDaysMin,
		RestMax:         e.cfg.RestDaysMax,
		RestDefault:     e.cfg.RestDaysDefault,
		ContextMinGames: e.cfg.BlendMinGames,
	}
}

// blendWeight grows with the number of historical matches observed in the
// same score context: none means no blending, a full sample means the
// configured maximum.
func (e *Engine) blendWeight(contextGames int) float64 {
	switch {
	case contextGames >= e.cfg.BlendMinGames:
		return e.cfg.BlendWeightFull
	case contextGames > 0:
		return e.cfg.BlendWeightPartial
	default:
		return 0
	}
}

// tryModel loads the (metric, period) regressor and asks it for the
// end-of-period total. Any failure is absorbed; the caller falls back.
func (e *Engine) tryModel(ctx context.Context, req Request, profile baseline.Profile, current float64, scoreDiff types.OptionalInt, home types.OptionalBool) (float64, float64, error) {
	handle, err := e.models.Load(ctx, req.Metric, req.Period)
	if err != nil {
		return 0, 0, err
	}

	features := map[string]float64{
		featMinute:      float64(req.CutoffMinute),
		featRestDays:    float64(profile.RestDays),
		featGamesPlayed: float64(profile.GamesPlayed),
		featLoad3Games:  profile.Load3Games,
		featLoad7Games:  profile.Load7Games,
		featScoreDiff:   float64(scoreDiff.Or(0)),
		featCurrent:     current,
		featAllTimeMean: profile.AllTimeMean,
		featRecentMean:  profile.RecentMean,
		featContextMean: profile.ContextMean.Or(profile.AllTimeMean),
		featTrendRatio:  profile.TrendRatio,
	}
	if home.Or(true) {
		features[featHome] = 1
	}

	pred, err := handle.Predict(features)
	if err != nil {
		logger.WithModelContext(string(req.Metric), int(req.Period)).
			WithError(err).Warn("Model prediction failed, using fallback")
		return 0, 0, err
	}
	return pred, handle.MAE, nil
}

// distribute spreads the remaining predicted output over the future minutes
// (cutoff, horizon], weighting each minute by the historical curve value
// when present and a neutral constant otherwise, normalized to sum to one.
func (e *Engine) distribute(result *types.ProjectionResult, hc curve.Curve, remaining float64) {
	n := result.HorizonMinute - result.CutoffMinute
	minutes := make([]int, 0, n)
	weights := make([]float64, 0, n)
	var total float64

	for m := result.CutoffMinute + 1; m <= result.HorizonMinute; m++ {
		w := 1.0
		if v, ok := hc.At(m); ok && v > 0 {
			w = v
		}
		minutes = append(minutes, m)
		weights = append(weights, w)
		total += w
	}

	projection := make([]float64, len(minutes))
	acc := result.CurrentValue
	for i := range minutes {
		acc += remaining * weights[i] / total
		projection[i] = acc
	}
	// Pin the endpoint against float drift.
	if len(projection) > 0 {
		projection[len(projection)-1] = result.CurrentValue + remaining
	}

	result.FutureMinutes = minutes
	result.Projection = projection
}

// attachBands surrounds the point projection with a confidence envelope:
// training-error-scaled when the model path ran, a 4%..12% envelope of the
// current value on the fallback path. A heuristic band, not a calibrated
// interval.
func (e *Engine) attachBands(result *types.ProjectionResult, modelUsed bool) {
	n := len(result.Projection)
	if n == 0 {
		return
	}
	upper := make([]float64, n)
	lower := make([]float64, n)
	mae := result.ModelMAE.Or(0)

	for i, v := range result.Projection {
		frac := float64(i+1) / float64(n)
		var half float64
		if modelUsed {
			half = mae * frac
		} else {
			half = result.CurrentValue * (e.cfg.BandBasePct + e.cfg.BandGrowthPct*frac)
		}
		upper[i] = v + half
		lo := v - half
		if lo < 0 {
			lo = 0
		}
		lower[i] = lo
	}

	result.UpperBand = upper
	result.LowerBand = lower
}

// attachDeltas fills the contextual comparison percentages: projected total
// vs the historical curve at the horizon (last known curve value reused past
// its range) and athlete pace vs the rest of the team.
func (e *Engine) attachDeltas(snap *Snapshot, req Request, result *types.ProjectionResult, hc curve.Curve) {
	if ref, ok := hc.AtOrLast(req.HorizonMinute); ok && ref > 0 {
		result.DeltaProjectedPct = (result.FinalProjected/ref - 1) * 100
	}

	result.TeamPaceDeltaPct = teamPaceDelta(snap.Aggregates(), req.Match, req.Period, req.Metric, req.CutoffMinute)
	result.DeltaVsTeamPct = result.DeltaVsHistoryPct - result.TeamPaceDeltaPct
}

// attachRecordDiagnostics fills the fatigue-proximity fields: personal
// rolling-window record, the current trailing window, and their ratio.
func (e *Engine) attachRecordDiagnostics(snap *Snapshot, game *telemetry.GameAggregate, req Request, result *types.ProjectionResult) {
	window := e.cfg.PeakWindowMinutes
	result.PeakRecord = snap.Record(req.Athlete, req.Metric, window)
	result.CurrentWindow = peaks.CurrentWindow(game, req.Metric, req.CutoffMinute, window)
	if result.PeakRecord > 0 {
		result.RecordPct = types.SomeFloat(result.CurrentWindow / result.PeakRecord * 100)
	}
}

// metabolicRatio compares the athlete's trailing metabolic-power mean in the
// current match to the mean across historical matches. Absent when either
// side is unknown.
func metabolicRatio(agg *telemetry.Aggregates, game *telemetry.GameAggregate, req Request, window int) types.OptionalFloat {
	if game == nil {
		return types.OptionalFloat{}
	}
	recent, ok := game.MetPowerMean(req.CutoffMinute, window).Value()
	if !ok || recent <= 0 {
		return types.OptionalFloat{}
	}

	var sum float64
	var n int
	for _, g := range agg.History(req.Athlete, req.Period, req.Match) {
		if mean, ok := g.MetPowerMean(g.MinutesPlayed, g.MinutesPlayed+1).Value(); ok {
			sum += mean
			n++
		}
	}
	if n == 0 || sum <= 0 {
		return types.OptionalFloat{}
	}
	return types.SomeFloat(recent / (sum / float64(n)))
}
