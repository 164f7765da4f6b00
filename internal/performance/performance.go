// Package performance converts a recommendation and its outcome into the
// binary signal that drives trust: 1 iff the recommended action's reward is
// weakly better than the alternative's.
package performance

import (
	"fmt"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region metric
// Metric scores a recommendation after (or in expectation of) its outcome.
type Metric interface {
	Performance(info state.HumanInfo, obs state.Observation, wh float64) (int, error)
	Name() string
}

// ObservedReward scores against the realized threat.
type ObservedReward struct{}

// ImmediateExpectedReward scores against the threat probability.
type ImmediateExpectedReward struct{}

// Performance implements Metric.
func (ObservedReward) Performance(info state.HumanInfo, obs state.Observation, wh float64) (int, error) {
	const op = "ObservedReward.Performance"
	if err := validate(op, info.Recommendation, wh); err != nil {
		return 0, err
	}
	if obs.Threat != 0 && obs.Threat != 1 {
		return 0, &state.ValidationError{Op: op, Field: "threat", Value: float64(obs.Threat)}
	}
	return Score(float64(obs.Threat), info.Recommendation, wh), nil
}

// Name implements Metric.
func (ObservedReward) Name() string { return "observed" }

// Performance implements Metric.
func (ImmediateExpectedReward) Performance(info state.HumanInfo, _ state.Observation, wh float64) (int, error) {
	const op = "ImmediateExpectedReward.Performance"
	if err := validate(op, info.Recommendation, wh); err != nil {
		return 0, err
	}
	if err := state.CheckUnit(op, "threat_level", info.ThreatLevel); err != nil {
		return 0, err
	}
	return Score(info.ThreatLevel, info.Recommendation, wh), nil
}

// Name implements Metric.
func (ImmediateExpectedReward) Name() string { return "expected" }

// #endregion metric

// #region score
// Score compares the recommended action against the other one for a threat
// value in [0,1] (realized 0/1 or a probability). Inputs are not validated.
func Score(threat float64, rec state.Action, wh float64) int {
	wc := 1 - wh
	r := float64(rec)
	recommended := -wh*threat*(1-r) - wc*r
	other := -wh*threat*r - wc*(1-r)
	if recommended >= other {
		return 1
	}
	return 0
}

// #endregion score

// #region lookup
// ByName returns the metric registered under name.
func ByName(name string) (Metric, error) {
	switch name {
	case "observed", "":
		return ObservedReward{}, nil
	case "expected":
		return ImmediateExpectedReward{}, nil
	default:
		return nil, fmt.Errorf("unknown performance metric %q", name)
	}
}

// #endregion lookup

func validate(op string, rec state.Action, wh float64) error {
	if err := state.CheckAction(op, "recommendation", rec); err != nil {
		return err
	}
	return state.CheckUnit(op, "wh", wh)
}
