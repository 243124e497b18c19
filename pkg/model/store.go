package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Joao-Silverio/Fisiologia/pkg/logger"
	"github.com/Joao-Silverio/Fisiologia/types"
)

// ErrModelUnavailable marks a model artifact that is missing, unreadable, or
// malformed. Callers fall back to the heuristic path; the condition is never
// fatal to a projection.
var ErrModelUnavailable = errors.New("projection model unavailable")

// Handle wraps one loaded regressor with its declared feature order and
// training error. Immutable after load.
type Handle struct {
	Metric   types.Metric
	Period   types.Period
	Features []string
	MAE      float64

	artifact *Artifact
}

// Predict builds the input vector in the artifact's declared feature order
// and evaluates the regressor. Feature names the caller did not supply
// resolve to zero, mirroring the training pipeline.
func (h *Handle) Predict(features map[string]float64) (float64, error) {
	x := make([]float64, len(h.Features))
	for i, name := range h.Features {
		x[i] = features[name]
	}
	pred := h.artifact.predict(x)
	if pred != pred { // NaN guard
		return 0, fmt.Errorf("%w: model produced NaN for %s period %d", ErrModelUnavailable, h.Metric, h.Period)
	}
	return pred, nil
}

type storeKey struct {
	Metric types.Metric
	Period types.Period
}

// Store lazily loads model artifacts from a directory, one file per
// (metric, period). Each key is resolved at most once: first-load is
// single-flighted, successes are cached forever, and failures are
// remembered as missing so a malformed file is not re-parsed on every
// projection tick.
type Store struct {
	dir string

	mu      sync.RWMutex
	handles map[storeKey]*Handle
	missing map[storeKey]error

	group singleflight.Group
}

// NewStore creates a Store over a directory of model artifacts.
func NewStore(dir string) *Store {
	return &Store{
		dir:     dir,
		handles: make(map[storeKey]*Handle),
		missing: make(map[storeKey]error),
	}
}

// ArtifactName returns the expected file name for a (metric, period) pair.
func ArtifactName(metric types.Metric, period types.Period) string {
	return fmt.Sprintf("model_%s_p%d.json", metric, period)
}

// Load returns the cached handle for (metric, period), reading it from disk
// on first access. Concurrent first-accesses share one read.
func (s *Store) Load(ctx context.Context, metric types.Metric, period types.Period) (*Handle, error) {
	key := storeKey{Metric: metric, Period: period}

	s.mu.RLock()
	if h, ok := s.handles[key]; ok {
		s.mu.RUnlock()
		return h, nil
	}
	if err, ok := s.missing[key]; ok {
		s.mu.RUnlock()
		return nil, err
	}
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, _ := s.group.Do(ArtifactName(metric, period), func() (interface{}, error) {
		return s.load(key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (s *Store) load(key storeKey) (*Handle, error) {
	path := filepath.Join(s.dir, ArtifactName(key.Metric, key.Period))

	h, err := readArtifact(path, key)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrModelUnavailable, err)
		if errors.Is(err, os.ErrNotExist) {
			logger.WithModelContext(string(key.Metric), int(key.Period)).
				WithField("path", path).Debug("Model artifact not found, fallback will be used")
		} else {
			logger.WithModelContext(string(key.Metric), int(key.Period)).
				WithField("path", path).WithError(err).Warn("Model artifact unusable, treating as missing")
		}
		s.mu.Lock()
		s.missing[key] = wrapped
		s.mu.Unlock()
		return nil, wrapped
	}

	s.mu.Lock()
	s.handles[key] = h
	s.mu.Unlock()

	logger.WithModelContext(string(key.Metric), int(key.Period)).WithFields(logrus.Fields{
		"features": len(h.Features),
		"mae":      h.MAE,
	}).Info("Model artifact loaded")

	return h, nil
}

func readArtifact(path string, key storeKey) (*Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}

	return &Handle{
		Metric:   key.Metric,
		Period:   key.Period,
		Features: a.Features,
		MAE:      a.MAE,
		artifact: &a,
	}, nil
}
