package engine

import (
	"sync"
	"time"

	"github.com/Joao-Silverio/Fisiologia/pkg/curve"
	"github.com/Joao-Silverio/Fisiologia/pkg/logger"
	"github.com/Joao-Silverio/Fisiologia/pkg/peaks"
	"github.com/Joao-Silverio/Fisiologia/pkg/telemetry"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// Snapshot is one immutable view of the telemetry source: the aggregates
// plus memoized intensity curves and peak records derived from them. Safe to
// share across concurrent projections.
type Snapshot struct {
	fingerprint string
	agg         *telemetry.Aggregates

	mu        sync.Mutex
	curves    map[curveKey]curve.Curve
	ctxCurves map[ctxCurveKey]ctxCurveEntry
	records   map[recordKey]float64
}

type curveKey struct {
	Athlete string
	Period  types.Period
	Metric  types.Metric
	Exclude time.Time
}

type ctxCurveKey struct {
	curveKey
	Outcome types.Outcome
}

type ctxCurveEntry struct {
	curve curve.Curve
	games int
}

type recordKey struct {
	Athlete string
	Metric  types.Metric
	Window  int
}

// NewSnapshot aggregates the samples under the given source fingerprint.
func NewSnapshot(fingerprint string, samples []types.Sample) *Snapshot {
	return &Snapshot{
		fingerprint: fingerprint,
		agg:         telemetry.Aggregate(samples),
		curves:      make(map[curveKey]curve.Curve),
		ctxCurves:   make(map[ctxCurveKey]ctxCurveEntry),
		records:     make(map[recordKey]float64),
	}
}

// Fingerprint identifies the source data revision this snapshot was built
// from, typically the feed's last-modified stamp.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

// Aggregates exposes the underlying game aggregates.
func (s *Snapshot) Aggregates() *telemetry.Aggregates { return s.agg }

// Curve returns the memoized all-context intensity curve, excluding the
// match being projected.
func (s *Snapshot) Curve(athlete string, period types.Period, metric types.Metric, exclude time.Time) curve.Curve {
	key := curveKey{Athlete: athlete, Period: period, Metric: metric, Exclude: telemetry.DayKey(exclude)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.curves[key]; ok {
		return c
	}
	c := curve.Estimate(s.agg, athlete, period, metric, exclude)
	s.curves[key] = c
	return c
}

// ContextCurve returns the memoized score-context curve and how many
// historical matches contributed to it.
func (s *Snapshot) ContextCurve(athlete string, period types.Period, metric types.Metric, exclude time.Time, outcome types.Outcome) (curve.Curve, int) {
	key := ctxCurveKey{
		curveKey: curveKey{Athlete: athlete, Period: period, Metric: metric, Exclude: telemetry.DayKey(exclude)},
		Outcome:  outcome,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.ctxCurves[key]; ok {
		return e.curve, e.games
	}
	c, n := curve.EstimateContext(s.agg, athlete, period, metric, exclude, outcome)
	s.ctxCurves[key] = ctxCurveEntry{curve: c, games: n}
	return c, n
}

// Record returns the memoized rolling-window peak for an athlete/metric.
func (s *Snapshot) Record(athlete string, metric types.Metric, window int) float64 {
	key := recordKey{Athlete: athlete, Metric: metric, Window: window}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r
	}
	r := peaks.Record(s.agg, athlete, metric, window)
	s.records[key] = r
	return r
}

// Cache holds the current snapshot, rebuilding it only when the source
// fingerprint changes. It replaces the ambient session state the hosting
// dashboard used to refresh on a timer.
type Cache struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Snapshot returns the current snapshot, if one has been built.
func (c *Cache) Snapshot() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.snap != nil
}

// Refresh returns the cached snapshot when the fingerprint still matches,
// otherwise rebuilds it from the samples returned by load.
func (c *Cache) Refresh(fingerprint string, load func() []types.Sample) *Snapshot {
	c.mu.RLock()
	if c.snap != nil && c.snap.fingerprint == fingerprint {
		defer c.mu.RUnlock()
		return c.snap
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil && c.snap.fingerprint == fingerprint {
		return c.snap
	}
	logger.GetLogger().WithField("fingerprint", fingerprint).Debug("Rebuilding telemetry snapshot")
	c.snap = NewSnapshot(fingerprint, load())
	return c.snap
}
