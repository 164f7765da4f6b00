// Package trust holds the Beta-distribution trust belief and the generator
// of human trust profiles.
package trust

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region beta-model
// BetaModel tracks trust as Beta(alpha, beta) with
// alpha = alpha0 + successes*ws and beta = beta0 + failures*wf.
// A BetaModel owns its generator and never shares mutable state with clones.
type BetaModel struct {
	params    state.TrustParams
	metric    performance.Metric
	src       *rand.PCG
	history   []int
	successes int
	failures  int
	alpha     float64
	beta      float64
	sample    float64
}

// NewBetaModel builds a model from validated parameters and draws the
// initial trust sample.
func NewBetaModel(p state.TrustParams, metric performance.Metric, seed uint64) (*BetaModel, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("new beta model: %w", err)
	}
	if metric == nil {
		metric = performance.ObservedReward{}
	}
	m := &BetaModel{
		params: p,
		metric: metric,
		src:    rand.NewPCG(seed, seed+1),
	}
	m.recompute()
	return m, nil
}

// Update scores the recommendation with the model's performance metric and
// folds the result into the belief. It returns the performance value.
func (m *BetaModel) Update(info state.HumanInfo, obs state.Observation, wh float64) (int, error) {
	perf, err := m.metric.Performance(info, obs, wh)
	if err != nil {
		return 0, fmt.Errorf("trust update: %w", err)
	}
	if err := m.UpdateFromOutcome(perf); err != nil {
		return 0, err
	}
	return perf, nil
}

// UpdateFromOutcome folds one binary performance value into the belief.
func (m *BetaModel) UpdateFromOutcome(perf int) error {
	if perf != 0 && perf != 1 {
		return &state.ValidationError{Op: "BetaModel.UpdateFromOutcome", Field: "performance", Value: float64(perf)}
	}
	m.history = append(m.history, perf)
	m.successes += perf
	m.failures += 1 - perf
	m.recompute()
	return nil
}

// Restore installs success and failure counts recorded elsewhere, replacing
// any history. The order of the outcomes is unknown, so History is left
// empty; alpha, beta and the sample are computed once.
func (m *BetaModel) Restore(successes, failures int) error {
	const op = "BetaModel.Restore"
	if successes < 0 {
		return &state.ValidationError{Op: op, Field: "successes", Value: float64(successes)}
	}
	if failures < 0 {
		return &state.ValidationError{Op: op, Field: "failures", Value: float64(failures)}
	}
	m.history = nil
	m.successes, m.failures = successes, failures
	m.recompute()
	return nil
}

// SetParams replaces all four parameters. alpha and beta are recomputed over
// the whole accumulated history. The trust sample is left as drawn.
func (m *BetaModel) SetParams(p state.TrustParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("set params: %w", err)
	}
	m.params = p
	m.alpha, m.beta = m.AlphaBeta(m.successes, m.failures)
	return nil
}

// Clone returns an independent deep copy, including generator state.
func (m *BetaModel) Clone() *BetaModel {
	c := *m
	src := *m.src
	c.src = &src
	c.history = append([]int(nil), m.history...)
	return &c
}

// Reseed replaces the model's generator.
func (m *BetaModel) Reseed(seed uint64) {
	m.src = rand.NewPCG(seed, seed+1)
}

// AlphaBeta returns the Beta parameters the current tuple assigns to the
// given success and failure counts.
func (m *BetaModel) AlphaBeta(successes, failures int) (float64, float64) {
	return m.params.Alpha0 + float64(successes)*m.params.Ws,
		m.params.Beta0 + float64(failures)*m.params.Wf
}

func (m *BetaModel) recompute() {
	m.alpha, m.beta = m.AlphaBeta(m.successes, m.failures)
	m.sample = distuv.Beta{Alpha: m.alpha, Beta: m.beta, Src: m.src}.Rand()
}

// #endregion beta-model

// #region accessors
func (m *BetaModel) Params() state.TrustParams { return m.params }
func (m *BetaModel) Alpha() float64            { return m.alpha }
func (m *BetaModel) Beta() float64             { return m.beta }
func (m *BetaModel) Successes() int            { return m.successes }
func (m *BetaModel) Failures() int             { return m.failures }

// Mean is alpha/(alpha+beta).
func (m *BetaModel) Mean() float64 { return m.alpha / (m.alpha + m.beta) }

// Sample is the trust draw taken at the last update.
func (m *BetaModel) Sample() float64 { return m.sample }

// History returns a copy of the performance history.
func (m *BetaModel) History() []int { return append([]int(nil), m.history...) }

// #endregion accessors
