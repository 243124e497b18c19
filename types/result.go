package types

import (
	"time"

	"github.com/google/uuid"
)

// EstimationPath records which estimator produced a projection.
type EstimationPath string

const (
	PathModel    EstimationPath = "model"
	PathFallback EstimationPath = "fallback"
)

// ProjectionResult is the engine's single output record, created fresh on
// every invocation and never persisted by this library. The presentation
// layer decides how prominently to surface the diagnostic fields.
type ProjectionResult struct {
	ID      uuid.UUID `json:"id"`
	Athlete string    `json:"athlete"`
	Metric  Metric    `json:"metric"`
	Period  Period    `json:"period"`

	CutoffMinute  int `json:"cutoff_minute"`
	HorizonMinute int `json:"horizon_minute"`

	// FutureMinutes, Projection and the band series are index-aligned and
	// cover (cutoff, horizon]. All three are empty for a no-op projection.
	FutureMinutes []int     `json:"future_minutes"`
	Projection    []float64 `json:"projection"`
	UpperBand     []float64 `json:"upper_band"`
	LowerBand     []float64 `json:"lower_band"`

	FinalProjected float64 `json:"final_projected"`
	CurrentValue   float64 `json:"current_value"`
	PaceFactor     float64 `json:"pace_factor"`

	// Percentage deltas: athlete vs own history at the cutoff, projected
	// total vs history at the horizon, team pace vs the team's historical
	// pace over the same elapsed minutes, and athlete vs team.
	DeltaVsHistoryPct float64 `json:"delta_vs_history_pct"`
	DeltaProjectedPct float64 `json:"delta_projected_pct"`
	TeamPaceDeltaPct  float64 `json:"team_pace_delta_pct"`
	DeltaVsTeamPct    float64 `json:"delta_vs_team_pct"`

	EstimationPath      EstimationPath `json:"estimation_path"`
	InsufficientHistory bool           `json:"insufficient_history"`
	RestDays            int            `json:"rest_days"`
	GamesPlayed         int            `json:"games_played"`
	ScoreDiff           OptionalInt    `json:"score_diff"`
	BlendWeight         float64        `json:"blend_weight"`
	ModelMAE            OptionalFloat  `json:"model_mae"`

	// Record-proximity diagnostics: the athlete's all-time rolling-window
	// peak for this metric, the trailing window ending at the cutoff, and
	// the latter as a percentage of the former.
	PeakRecord    float64       `json:"peak_record"`
	CurrentWindow float64       `json:"current_window"`
	RecordPct     OptionalFloat `json:"record_pct"`

	GeneratedAt time.Time `json:"generated_at"`
}
