package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joao-Silverio/Fisiologia/pkg/config"
	"github.com/Joao-Silverio/Fisiologia/pkg/model"
	"github.com/Joao-Silverio/Fisiologia/types"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ratedMatch emits distance samples at rateEarly for minutes 1..30 and
// rateLate for 31..45, the shape of a full first half.
func ratedMatch(athlete string, date time.Time, rateEarly, rateLate float64) []types.Sample {
	var out []types.Sample
	for minute := 1; minute <= 45; minute++ {
		rate := rateEarly
		if minute > 30 {
			rate = rateLate
		}
		out = append(out, types.Sample{
			Athlete:   athlete,
			MatchDate: date,
			Period:    types.FirstHalf,
			Minute:    minute,
			Metrics:   map[types.Metric]float64{types.MetricTotalDistance: rate},
		})
	}
	return out
}

// shortMatch emits distance samples at a flat rate for minutes 1..n.
func shortMatch(athlete string, date time.Time, n int, rate float64) []types.Sample {
	var out []types.Sample
	for minute := 1; minute <= n; minute++ {
		out = append(out, types.Sample{
			Athlete:   athlete,
			MatchDate: date,
			Period:    types.FirstHalf,
			Minute:    minute,
			Metrics:   map[types.Metric]float64{types.MetricTotalDistance: rate},
		})
	}
	return out
}

func newTestEngine(t *testing.T, modelDir string) *Engine {
	t.Helper()
	if modelDir == "" {
		modelDir = t.TempDir()
	}
	return New(config.DefaultConfig(), model.NewStore(modelDir))
}

func writeModel(t *testing.T, dir string, metric types.Metric, period types.Period, intercept float64, mae float64) {
	t.Helper()
	a := model.Artifact{
		Metric:       string(metric),
		Period:       int(period),
		ModelType:    "linear",
		Features:     []string{"current_cumulative"},
		MAE:          mae,
		Intercept:    intercept,
		Coefficients: []float64{1},
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)
	name := model.ArtifactName(metric, period)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

// liveHalf is the standard scenario: two finished matches at 100/min through
// minute 30 then 80/min, and a live match tracking 10% hot at minute 30.
func liveHalf() ([]types.Sample, time.Time) {
	match := day(2024, 4, 1)
	var samples []types.Sample
	samples = append(samples, ratedMatch("Silva", day(2024, 3, 18), 100, 80)...)
	samples = append(samples, ratedMatch("Silva", day(2024, 3, 25), 100, 80)...)
	samples = append(samples, shortMatch("Silva", match, 30, 110)...)
	return samples, match
}

func TestProject_RejectsInvalidRequests(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)
	eng := newTestEngine(t, "")

	_, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: -1, HorizonMinute: 45,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 20,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProject_FallbackEndToEnd(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)
	eng := newTestEngine(t, "") // empty model dir forces the heuristic path

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)

	assert.Equal(t, types.PathFallback, res.EstimationPath)
	assert.False(t, res.InsufficientHistory)
	assert.InDelta(t, 3300.0, res.CurrentValue, 1e-9)
	assert.InDelta(t, 1.1, res.PaceFactor, 1e-9)
	assert.InDelta(t, 10.0, res.DeltaVsHistoryPct, 1e-9)

	// Historical remainder is 1200, replayed at 1.1x pace.
	assert.InDelta(t, 4620.0, res.FinalProjected, 1e-6)

	require.Len(t, res.FutureMinutes, 15)
	assert.Equal(t, 31, res.FutureMinutes[0])
	assert.Equal(t, 45, res.FutureMinutes[14])
	assert.InDelta(t, 4620.0, res.Projection[14], 1e-9)
	for i := 1; i < len(res.Projection); i++ {
		assert.GreaterOrEqual(t, res.Projection[i], res.Projection[i-1],
			"minute-by-minute projection must be non-decreasing")
	}

	// Projected 4620 against a historical 4200 at the horizon.
	assert.InDelta(t, 10.0, res.DeltaProjectedPct, 1e-6)
	// Silva is the whole team here, so the team runs 10% hot with him.
	assert.InDelta(t, 10.0, res.TeamPaceDeltaPct, 1e-6)
	assert.InDelta(t, 0.0, res.DeltaVsTeamPct, 1e-6)
}

func TestProject_FallbackBands(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)
	eng := newTestEngine(t, "")

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)

	n := len(res.Projection)
	require.Equal(t, n, len(res.UpperBand))
	require.Equal(t, n, len(res.LowerBand))

	prevHalf := 0.0
	for i := range res.Projection {
		assert.GreaterOrEqual(t, res.UpperBand[i], res.Projection[i])
		assert.LessOrEqual(t, res.LowerBand[i], res.Projection[i])
		assert.GreaterOrEqual(t, res.LowerBand[i], 0.0)

		half := res.UpperBand[i] - res.Projection[i]
		assert.Greater(t, half, prevHalf, "uncertainty must widen with distance from the cutoff")
		prevHalf = half
	}

	// Envelope runs from 4% to 12% of the current value.
	cfg := config.DefaultConfig()
	first := res.UpperBand[0] - res.Projection[0]
	last := res.UpperBand[n-1] - res.Projection[n-1]
	assert.InDelta(t, res.CurrentValue*(cfg.BandBasePct+cfg.BandGrowthPct/float64(n)), first, 1e-6)
	assert.InDelta(t, res.CurrentValue*(cfg.BandBasePct+cfg.BandGrowthPct), last, 1e-6)
}

func TestProject_NoOpAtCutoff(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)
	eng := newTestEngine(t, "")

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 30,
	})
	require.NoError(t, err)

	assert.Empty(t, res.FutureMinutes)
	assert.Empty(t, res.Projection)
	assert.InDelta(t, res.CurrentValue, res.FinalProjected, 1e-9)
}

func TestProject_ModelPath(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)

	dir := t.TempDir()
	writeModel(t, dir, types.MetricTotalDistance, types.FirstHalf, 900, 150)
	eng := newTestEngine(t, dir)

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)

	assert.Equal(t, types.PathModel, res.EstimationPath)
	mae, ok := res.ModelMAE.Value()
	require.True(t, ok)
	assert.InDelta(t, 150.0, mae, 1e-9)

	// current_cumulative + intercept.
	assert.InDelta(t, 4200.0, res.FinalProjected, 1e-9)
	assert.InDelta(t, 4200.0, res.Projection[len(res.Projection)-1], 1e-9)

	// Model bands scale the training error toward the horizon.
	n := len(res.Projection)
	assert.InDelta(t, 150.0/float64(n), res.UpperBand[0]-res.Projection[0], 1e-9)
	assert.InDelta(t, 150.0, res.UpperBand[n-1]-res.Projection[n-1], 1e-9)
}

func TestProject_ModelNeverProjectsBelowCurrent(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)

	dir := t.TempDir()
	// Intercept -5000 drives the prediction below the accumulated 3300.
	writeModel(t, dir, types.MetricTotalDistance, types.FirstHalf, -5000, 100)
	eng := newTestEngine(t, dir)

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)

	assert.Equal(t, types.PathModel, res.EstimationPath)
	assert.InDelta(t, res.CurrentValue, res.FinalProjected, 1e-9,
		"a projection can never undercut what was already run")
	for _, v := range res.Projection {
		assert.InDelta(t, res.CurrentValue, v, 1e-9)
	}
}

func TestProject_EqualSplitWithoutCurveShape(t *testing.T) {
	match := day(2024, 4, 1)
	var samples []types.Sample
	samples = append(samples, shortMatch("Silva", day(2024, 3, 18), 10, 100)...)
	samples = append(samples, shortMatch("Silva", day(2024, 3, 25), 10, 100)...)
	samples = append(samples, shortMatch("Silva", match, 10, 120)...)
	snap := NewSnapshot("v1", samples)

	dir := t.TempDir()
	writeModel(t, dir, types.MetricTotalDistance, types.FirstHalf, 100, 50)
	eng := newTestEngine(t, dir)

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 10, HorizonMinute: 20,
	})
	require.NoError(t, err)

	// Curve has no minutes past 10, so the remaining 100 splits evenly.
	require.Len(t, res.Projection, 10)
	for i, v := range res.Projection {
		assert.InDelta(t, 1200.0+10.0*float64(i+1), v, 1e-9)
	}
}

func TestProject_MalformedModelFallsBack(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)

	dir := t.TempDir()
	name := model.ArtifactName(types.MetricTotalDistance, types.FirstHalf)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{broken"), 0o644))
	eng := newTestEngine(t, dir)

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err, "a broken artifact degrades, it does not fail the projection")
	assert.Equal(t, types.PathFallback, res.EstimationPath)
	assert.InDelta(t, 4620.0, res.FinalProjected, 1e-6)
}

func TestProject_InsufficientHistory(t *testing.T) {
	match := day(2024, 4, 1)
	snap := NewSnapshot("v1", shortMatch("Silva", match, 30, 110))
	eng := newTestEngine(t, "")

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)

	assert.True(t, res.InsufficientHistory)
	assert.Equal(t, types.PathFallback, res.EstimationPath)
	assert.InDelta(t, 1.0, res.PaceFactor, 1e-9, "no curve means a neutral pace")
	assert.InDelta(t, res.CurrentValue, res.FinalProjected, 1e-9)
	assert.Zero(t, res.GamesPlayed)
}

func TestProject_UnknownAthlete(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)
	eng := newTestEngine(t, "")

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Nobody", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)
	assert.True(t, res.InsufficientHistory)
	assert.Zero(t, res.CurrentValue)
	assert.Zero(t, res.FinalProjected)
}

func TestProject_BlendWeightFromScoreContext(t *testing.T) {
	match := day(2024, 4, 1)
	var samples []types.Sample
	for i, d := range []time.Time{day(2024, 3, 4), day(2024, 3, 11), day(2024, 3, 18)} {
		for _, s := range ratedMatch("Silva", d, 100, 80) {
			s.ScoreDiff = types.SomeInt(1 + i%2) // all wins
			samples = append(samples, s)
		}
	}
	for _, s := range shortMatch("Silva", match, 30, 110) {
		s.ScoreDiff = types.SomeInt(2)
		samples = append(samples, s)
	}
	snap := NewSnapshot("v1", samples)
	eng := newTestEngine(t, "")

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	assert.InDelta(t, cfg.BlendWeightFull, res.BlendWeight, 1e-9,
		"three winning matches reach the full blend weight")
}

func TestProject_RecordDiagnostics(t *testing.T) {
	samples, match := liveHalf()
	snap := NewSnapshot("v1", samples)
	eng := newTestEngine(t, "")

	res, err := eng.Project(context.Background(), snap, Request{
		Athlete: "Silva", Metric: types.MetricTotalDistance, Period: types.FirstHalf,
		Match: match, CutoffMinute: 30, HorizonMinute: 45,
	})
	require.NoError(t, err)

	// Rolling-5 record across all matches: the live match runs 110/min.
	assert.InDelta(t, 550.0, res.PeakRecord, 1e-9)
	assert.InDelta(t, 550.0, res.CurrentWindow, 1e-9)
	pct, ok := res.RecordPct.Value()
	require.True(t, ok)
	assert.InDelta(t, 100.0, pct, 1e-9)
}

func TestCache_Refresh(t *testing.T) {
	cache := NewCache()
	_, ok := cache.Snapshot()
	assert.False(t, ok)

	samples, _ := liveHalf()
	loads := 0
	load := func() []types.Sample { loads++; return samples }

	s1 := cache.Refresh("rev-1", load)
	s2 := cache.Refresh("rev-1", load)
	assert.Same(t, s1, s2, "matching fingerprints reuse the snapshot")
	assert.Equal(t, 1, loads)

	s3 := cache.Refresh("rev-2", load)
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, loads)
	assert.Equal(t, "rev-2", s3.Fingerprint())

	got, ok := cache.Snapshot()
	require.True(t, ok)
	assert.Same(t, s3, got)
}
