package trust

import (
	"fmt"
	"math/rand/v2"
	"os"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// Group mixture of the human profiles. Oscillators take the remainder.
const (
	ProbBDM         = 31.0 / 45.0
	ProbDisbeliever = 5.0 / 45.0
	ProbOscillator  = 1 - ProbBDM - ProbDisbeliever

	noiseSigma = 5.0
	noiseFloor = 2.0
)

// Group names a human trust profile group.
type Group string

const (
	GroupBDM         Group = "bdm"
	GroupDisbeliever Group = "disbeliever"
	GroupOscillator  Group = "oscillator"
)

// #region profiles
// ProfileSet holds one column per parameter; row i is one measured human.
type ProfileSet struct {
	Alpha []float64 `json:"Alpha" yaml:"Alpha"`
	Beta  []float64 `json:"Beta" yaml:"Beta"`
	Ws    []float64 `json:"ws" yaml:"ws"`
	Wf    []float64 `json:"wf" yaml:"wf"`
}

// Len returns the number of humans, or -1 if the columns disagree.
func (p ProfileSet) Len() int {
	n := len(p.Alpha)
	if len(p.Beta) != n || len(p.Ws) != n || len(p.Wf) != n {
		return -1
	}
	return n
}

func (p ProfileSet) at(i int) state.TrustParams {
	return state.TrustParams{Alpha0: p.Alpha[i], Beta0: p.Beta[i], Ws: p.Ws[i], Wf: p.Wf[i]}
}

// Profiles is the on-disk profile file, JSON or YAML.
type Profiles struct {
	BDM         ProfileSet `json:"bdm" yaml:"bdm"`
	Disbeliever ProfileSet `json:"disbeliever" yaml:"disbeliever"`
	Oscillator  ProfileSet `json:"oscillator" yaml:"oscillator"`
}

// LoadProfiles reads a profile file. JSON parses as YAML.
func LoadProfiles(path string) (Profiles, error) {
	var p Profiles
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profiles: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profiles: %w", err)
	}
	for g, set := range map[Group]ProfileSet{GroupBDM: p.BDM, GroupDisbeliever: p.Disbeliever, GroupOscillator: p.Oscillator} {
		if set.Len() <= 0 {
			return p, fmt.Errorf("profiles: group %s is empty or has ragged columns", g)
		}
	}
	return p, nil
}

// #endregion profiles

// #region generator
// ParamsGenerator samples trust parameters for simulated humans: first a
// group by mixture weight, then a uniformly chosen member of it.
type ParamsGenerator struct {
	profiles Profiles
	addNoise bool
	rng      *rand.Rand
	group    distuv.Categorical
	noise    distuv.Normal
}

// NewParamsGenerator seeds a generator over the given profiles.
func NewParamsGenerator(profiles Profiles, seed uint64, addNoise bool) *ParamsGenerator {
	src := rand.NewPCG(seed, seed+1)
	return &ParamsGenerator{
		profiles: profiles,
		addNoise: addNoise,
		rng:      rand.New(src),
		group:    distuv.NewCategorical([]float64{ProbBDM, ProbDisbeliever, ProbOscillator}, src),
		noise:    distuv.Normal{Mu: 0, Sigma: noiseSigma, Src: src},
	}
}

// Generate draws one parameter tuple and reports the group it came from.
// With noise enabled each parameter gets N(0,5) added and is floored at 2.
func (g *ParamsGenerator) Generate() (state.TrustParams, Group) {
	var (
		set   ProfileSet
		group Group
	)
	switch int(g.group.Rand()) {
	case 0:
		set, group = g.profiles.BDM, GroupBDM
	case 1:
		set, group = g.profiles.Disbeliever, GroupDisbeliever
	default:
		set, group = g.profiles.Oscillator, GroupOscillator
	}
	p := set.at(g.rng.IntN(set.Len()))
	if !g.addNoise {
		return p, group
	}
	v := p.Vector()
	for i := range v {
		v[i] = max(v[i]+g.noise.Rand(), noiseFloor)
	}
	return state.TrustParamsFromVector(v[:]), group
}

// #endregion generator
