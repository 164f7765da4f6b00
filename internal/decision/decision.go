// Package decision models how a human turns a recommendation into an action.
package decision

import (
	"math"
	"math/rand/v2"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region model
// Model is a human decision model. ActionProbabilities is pure; ChooseAction
// draws from the model's own generator.
type Model interface {
	ChooseAction(info state.HumanInfo, trust, wh float64) (state.Action, error)
	ActionProbabilities(info state.HumanInfo, trust, wh float64) (p0, p1 float64, err error)
}

// #endregion model

// #region bounded-rationality
// BoundedRationalityDisuse complies with probability trust and otherwise picks
// between the two actions with a logistic choice of rationality Kappa.
type BoundedRationalityDisuse struct {
	Kappa float64
	rng   *rand.Rand
}

// NewBoundedRationalityDisuse returns a model with its own seeded generator.
func NewBoundedRationalityDisuse(kappa float64, seed uint64) (*BoundedRationalityDisuse, error) {
	if kappa < 0 || math.IsNaN(kappa) || math.IsInf(kappa, 0) {
		return nil, &state.ValidationError{Op: "NewBoundedRationalityDisuse", Field: "kappa", Value: kappa}
	}
	return &BoundedRationalityDisuse{
		Kappa: kappa,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// ChooseAction samples an action. One uniform draw decides compliance; a
// second one is drawn only when the human does not comply.
func (m *BoundedRationalityDisuse) ChooseAction(info state.HumanInfo, trust, wh float64) (state.Action, error) {
	if err := validate("BoundedRationalityDisuse.ChooseAction", info, trust, wh); err != nil {
		return 0, err
	}
	if m.rng.Float64() < trust {
		return info.Recommendation, nil
	}
	p0, _ := m.NonCompliant(info.ThreatLevel, wh)
	if m.rng.Float64() < p0 {
		return state.ActionSkip, nil
	}
	return state.ActionProtect, nil
}

// ActionProbabilities returns the marginal probabilities of actions 0 and 1,
// folding in the compliance branch.
func (m *BoundedRationalityDisuse) ActionProbabilities(info state.HumanInfo, trust, wh float64) (float64, float64, error) {
	if err := validate("BoundedRationalityDisuse.ActionProbabilities", info, trust, wh); err != nil {
		return 0, 0, err
	}
	p0, p1 := m.Marginal(info.Recommendation, info.ThreatLevel, trust, wh)
	return p0, p1, nil
}

// Marginal is ActionProbabilities without validation, for hot loops whose
// inputs are already known to be in range.
func (m *BoundedRationalityDisuse) Marginal(rec state.Action, threatLevel, trust, wh float64) (float64, float64) {
	q0, q1 := m.NonCompliant(threatLevel, wh)
	if rec == state.ActionSkip {
		return trust + (1-trust)*q0, (1 - trust) * q1
	}
	return (1 - trust) * q0, trust + (1-trust)*q1
}

// NonCompliant returns the action probabilities of a human ignoring the
// recommendation: p(0) = sigmoid(kappa * (reward0 - reward1)).
func (m *BoundedRationalityDisuse) NonCompliant(threatLevel, wh float64) (float64, float64) {
	reward0 := -threatLevel * wh
	reward1 := -(1 - wh)
	p0 := sigmoid(m.Kappa * (reward0 - reward1))
	return p0, 1 - p0
}

// #endregion bounded-rationality

// #region helpers
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func validate(op string, info state.HumanInfo, trust, wh float64) error {
	if err := state.CheckAction(op, "recommendation", info.Recommendation); err != nil {
		return err
	}
	if err := state.CheckUnit(op, "trust", trust); err != nil {
		return err
	}
	if err := state.CheckUnit(op, "wh", wh); err != nil {
		return err
	}
	return state.CheckUnit(op, "threat_level", info.ThreatLevel)
}

// #endregion helpers
