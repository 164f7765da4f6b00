// Package reward supplies the health-vs-time trade-off weight wh for a
// mission state. The time weight is always wc = 1 - wh.
package reward

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

const (
	noiseSigma = 0.05
	noiseFloor = 0.501
)

// #region source
// Source returns wh for a (health, time) pair.
type Source interface {
	WH(health, time int) (float64, error)
}

// ConstantWeights returns the same wh everywhere.
type ConstantWeights struct {
	Wh float64
}

// NewConstantWeights validates wh.
func NewConstantWeights(wh float64) (ConstantWeights, error) {
	if err := state.CheckUnit("NewConstantWeights", "wh", wh); err != nil {
		return ConstantWeights{}, err
	}
	return ConstantWeights{Wh: wh}, nil
}

// WH implements Source.
func (c ConstantWeights) WH(health, time int) (float64, error) {
	if err := checkState("ConstantWeights.WH", health, time); err != nil {
		return 0, err
	}
	return c.Wh, nil
}

// #endregion source

// #region regression
// Regression is a fitted logistic-link linear model over standardized
// (health/100, time/100) features.
type Regression struct {
	Intercept  float64    `yaml:"intercept" json:"intercept"`
	CoefHealth float64    `yaml:"coef_health" json:"coef_health"`
	CoefTime   float64    `yaml:"coef_time" json:"coef_time"`
	Mean       [2]float64 `yaml:"mean" json:"mean"`
	Scale      [2]float64 `yaml:"scale" json:"scale"`
}

// LoadRegression reads a regression artifact from YAML or JSON.
func LoadRegression(path string) (Regression, error) {
	var r Regression
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read regression: %w", err)
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parse regression: %w", err)
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// Validate rejects zero or non-finite scales.
func (r Regression) Validate() error {
	for i, s := range r.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return &state.ValidationError{Op: "Regression.Validate", Field: fmt.Sprintf("scale[%d]", i), Value: s}
		}
	}
	return nil
}

// Predict evaluates sigmoid(intercept + coef . standardized(h/100, t/100)).
func (r Regression) Predict(health, time int) float64 {
	x := []float64{float64(health) / 100, float64(time) / 100}
	floats.Sub(x, r.Mean[:])
	floats.Div(x, r.Scale[:])
	y := r.Intercept + floats.Dot(x, []float64{r.CoefHealth, r.CoefTime})
	return 1 / (1 + math.Exp(-y))
}

// #endregion regression

// #region state-dependent
// StateDependentWeights derives wh from a Regression. With noise enabled it
// adds N(0, 0.05) per call and keeps the result in [0.501, 1].
type StateDependentWeights struct {
	model Regression

	mu    sync.Mutex
	noise *distuv.Normal
}

// NewStateDependentWeights returns a noiseless source.
func NewStateDependentWeights(model Regression) (*StateDependentWeights, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &StateDependentWeights{model: model}, nil
}

// WithNoise enables per-call noise from a generator seeded with seed.
func (s *StateDependentWeights) WithNoise(seed uint64) *StateDependentWeights {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noise = &distuv.Normal{Mu: 0, Sigma: noiseSigma, Src: rand.NewPCG(seed, seed+1)}
	return s
}

// WH implements Source.
func (s *StateDependentWeights) WH(health, time int) (float64, error) {
	if err := checkState("StateDependentWeights.WH", health, time); err != nil {
		return 0, err
	}
	wh := s.model.Predict(health, time)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noise != nil {
		wh = min(max(wh+s.noise.Rand(), noiseFloor), 1)
	}
	return wh, nil
}

// #endregion state-dependent

func checkState(op string, health, time int) error {
	if err := state.CheckNonNegative(op, "health", health); err != nil {
		return err
	}
	return state.CheckNonNegative(op, "time", time)
}
