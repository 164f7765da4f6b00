// Package threat produces ground-truth threats and post-scan threat levels.
package threat

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// Shape of the post-scan level for a clear site; threatened sites mirror it.
const (
	scanAlpha = 4
	scanBeta  = 28
)

// #region generate
// Generate draws threats[i] ~ Bernoulli(prior) and, per site, a post-scan
// level from Beta(4,28) when clear or 1-Beta(4,28) when threatened.
func Generate(numSites int, prior float64, seed uint64) (state.Threats, error) {
	const op = "threat.Generate"
	if numSites < 1 {
		return state.Threats{}, &state.ValidationError{Op: op, Field: "num_sites", Value: float64(numSites)}
	}
	if err := state.CheckUnit(op, "prior", prior); err != nil {
		return state.Threats{}, err
	}

	src := rand.NewPCG(seed, seed+1)
	present := distuv.Bernoulli{P: prior, Src: src}
	scan := distuv.Beta{Alpha: scanAlpha, Beta: scanBeta, Src: src}

	t := state.Threats{Present: make([]int, numSites), AfterScan: make([]float64, numSites)}
	for i := range t.Present {
		t.Present[i] = int(present.Rand())
	}
	for i, p := range t.Present {
		level := scan.Rand()
		if p == 1 {
			level = 1 - level
		}
		t.AfterScan[i] = level
	}
	return t, nil
}

// #endregion generate

// #region smart-chooser
// SmartChooser picks threat levels between the indifference points of two
// reward weights, where the two weightings disagree on the best action.
type SmartChooser struct {
	src *rand.PCG
}

// NewSmartChooser returns a chooser with its own generator.
func NewSmartChooser(seed uint64) *SmartChooser {
	return &SmartChooser{src: rand.NewPCG(seed, seed+1)}
}

// Choose draws a level uniformly between d* = (1-wh)/wh of both weights,
// clipped to [0,1], and a Bernoulli threat from that level.
func (c *SmartChooser) Choose(whA, whB float64) (int, float64, error) {
	dA, err := indifference(whA)
	if err != nil {
		return 0, 0, err
	}
	dB, err := indifference(whB)
	if err != nil {
		return 0, 0, err
	}
	hi := min(max(dA, dB), 1)
	lo := min(max(min(dA, dB), 0), hi)

	level := lo
	if hi > lo {
		level = distuv.Uniform{Min: lo, Max: hi, Src: c.src}.Rand()
	}
	threat := int(distuv.Bernoulli{P: level, Src: c.src}.Rand())
	return threat, level, nil
}

func indifference(wh float64) (float64, error) {
	if err := state.CheckUnit("SmartChooser.Choose", "wh", wh); err != nil {
		return 0, err
	}
	if wh == 0 {
		return 0, fmt.Errorf("smart chooser: wh must be positive: %w", state.ErrValidation)
	}
	return (1 - wh) / wh, nil
}

// #endregion smart-chooser
