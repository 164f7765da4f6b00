package update

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region start
// Start returns the synthetic record a mission's first site chains from.
// It is never persisted.
func Start(runID string, settings state.Settings) state.SiteRecord {
	return state.SiteRecord{
		RunID:     runID,
		SiteIndex: -1,
		Health:    settings.StartHealth,
		Time:      settings.StartTime,
	}
}

// #endregion start

// #region apply
// Apply is a pure function that computes the record of the next site from
// the previous record and the site's outcome. Action 0 meeting a threat
// costs health; action 1 costs time; nothing else changes either.
func Apply(old state.SiteRecord, out Outcome) (UpdateResult, error) {
	start := time.Now()
	const op = "update.Apply"
	if err := state.CheckAction(op, "action", out.Action); err != nil {
		return UpdateResult{}, err
	}
	if err := state.CheckAction(op, "recommendation", out.Recommendation); err != nil {
		return UpdateResult{}, err
	}
	if out.Threat != 0 && out.Threat != 1 {
		return UpdateResult{}, &state.ValidationError{Op: op, Field: "threat", Value: float64(out.Threat)}
	}

	health, tm := old.Health, old.Time
	decision := Decision{Action: "no_loss", Reason: "action 0 with no threat present"}
	var floor bool
	switch {
	case out.Action == state.ActionProtect:
		tm += state.TimeStep
		decision = Decision{Action: "time_loss", Reason: fmt.Sprintf("action 1 chosen, time %d -> %d", old.Time, tm)}
	case out.Threat == 1:
		health -= state.HealthStep
		if health < 0 {
			health, floor = 0, true
		}
		decision = Decision{Action: "health_loss", Reason: fmt.Sprintf("action 0 met a threat, health %d -> %d", old.Health, health)}
	}

	rec := state.SiteRecord{
		VersionID:       uuid.New().String(),
		ParentID:        old.VersionID,
		RunID:           old.RunID,
		SiteIndex:       old.SiteIndex + 1,
		Health:          health,
		Time:            tm,
		ThreatLevel:     out.ThreatLevel,
		Threat:          out.Threat,
		Recommendation:  out.Recommendation,
		Action:          out.Action,
		Performance:     out.Performance,
		TrustFeedback:   out.TrustFeedback,
		EstimatedParams: out.EstimatedParams,
		CreatedAt:       time.Now().UTC(),
	}

	return UpdateResult{
		NewRecord: rec,
		Decision:  decision,
		Metrics: Metrics{
			HealthDelta:  health - old.Health,
			TimeDelta:    tm - old.Time,
			HealthFloor:  floor,
			UpdateTimeUs: time.Since(start).Microseconds(),
		},
	}, nil
}

// #endregion apply
