// Package human holds the simulated operator and the robot's model of it.
// The two never share mutable state: each owns its own trust belief,
// decision model and generators.
package human

import (
	"fmt"

	"github.com/danielpatrickdp/trust-planner/internal/decision"
	"github.com/danielpatrickdp/trust-planner/internal/estimate"
	"github.com/danielpatrickdp/trust-planner/internal/reward"
	"github.com/danielpatrickdp/trust-planner/internal/state"
	"github.com/danielpatrickdp/trust-planner/internal/trust"
)

// #region human
// Human is the ground-truth operator.
type Human struct {
	trust    *trust.BetaModel
	decision decision.Model
	reward   reward.Source
}

// New assembles a human from its components.
func New(tm *trust.BetaModel, dm decision.Model, rs reward.Source) *Human {
	return &Human{trust: tm, decision: dm, reward: rs}
}

// ChooseAction acts on the recommendation in info using the current trust
// sample and the human's own reward weight.
func (h *Human) ChooseAction(info state.HumanInfo) (state.Action, error) {
	wh, err := h.reward.WH(info.Health, info.Time)
	if err != nil {
		return 0, fmt.Errorf("human choose action: %w", err)
	}
	return h.decision.ChooseAction(info, h.trust.Sample(), wh)
}

// Observe updates the human's trust from the outcome and returns the
// performance value it perceived.
func (h *Human) Observe(info state.HumanInfo, obs state.Observation) (int, error) {
	wh, err := h.reward.WH(info.Health, info.Time)
	if err != nil {
		return 0, fmt.Errorf("human observe: %w", err)
	}
	return h.trust.Update(info, obs, wh)
}

// TrustSample is the feedback the human reports after a site.
func (h *Human) TrustSample() float64 { return h.trust.Sample() }

// TrustMean is the mean of the human's trust belief.
func (h *Human) TrustMean() float64 { return h.trust.Mean() }

// Params returns the ground-truth trust parameters, for persistence only.
func (h *Human) Params() state.TrustParams { return h.trust.Params() }

// #endregion human

// #region model
// Model is the robot's estimate of the human: a separate trust belief
// refit from reported feedback after every site.
type Model struct {
	trust     *trust.BetaModel
	decision  decision.Model
	estimator *estimate.Estimator
}

// NewModel assembles the robot's model of the human.
func NewModel(tm *trust.BetaModel, dm decision.Model, est *estimate.Estimator) *Model {
	return &Model{trust: tm, decision: dm, estimator: est}
}

// Observe folds one site into the model. The performance is scored with the
// given wh. When obs carries feedback the estimator refits and the new
// parameters replace the old ones wholesale.
func (m *Model) Observe(info state.HumanInfo, obs state.Observation, wh float64) (int, estimate.Result, error) {
	perf, err := m.trust.Update(info, obs, wh)
	if err != nil {
		return 0, estimate.Result{}, err
	}
	res := estimate.Result{Params: m.trust.Params(), Converged: true}
	if !obs.HasFeedback {
		return perf, res, nil
	}
	res, err = m.estimator.Update(obs.TrustFeedback, perf)
	if err != nil {
		return perf, res, fmt.Errorf("robot model observe: %w", err)
	}
	if err := m.trust.SetParams(res.Params); err != nil {
		return perf, res, err
	}
	return perf, res, nil
}

// Decision is the decision model the robot attributes to the human.
func (m *Model) Decision() decision.Model { return m.decision }

// Params returns the current estimated parameters.
func (m *Model) Params() state.TrustParams { return m.trust.Params() }

// Counts returns accumulated successes and failures.
func (m *Model) Counts() (int, int) { return m.trust.Successes(), m.trust.Failures() }

// AlphaBeta returns the current belief's Beta parameters.
func (m *Model) AlphaBeta() (float64, float64) { return m.trust.Alpha(), m.trust.Beta() }

// TrustMean is the estimated mean trust.
func (m *Model) TrustMean() float64 { return m.trust.Mean() }

// #endregion model
