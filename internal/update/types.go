package update

import "github.com/danielpatrickdp/trust-planner/internal/state"

// #region outcome
// Outcome carries what happened at one site into the pure transition.
type Outcome struct {
	ThreatLevel     float64
	Threat          int
	Recommendation  state.Action
	Action          state.Action
	Performance     int
	TrustFeedback   float64
	EstimatedParams state.TrustParams
}

// #endregion outcome

// #region decision
// Decision names the physical consequence of the site.
type Decision struct {
	Action string // "health_loss" | "time_loss" | "no_loss"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from one transition.
type Metrics struct {
	HealthDelta  int
	TimeDelta    int
	HealthFloor  bool // health loss was clamped at zero
	UpdateTimeUs int64
}

// #endregion metrics

// #region update-result
// UpdateResult bundles everything returned by Apply().
type UpdateResult struct {
	NewRecord state.SiteRecord
	Decision  Decision
	Metrics   Metrics
}

// #endregion update-result
