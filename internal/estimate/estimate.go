// Package estimate fits the four trust parameters to a feedback history by
// maximizing the Beta log-likelihood under box constraints.
package estimate

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// Feedback values are clamped to this interval before any logarithm.
const (
	FeedbackMin = 0.01
	FeedbackMax = 0.99
)

// Armijo line search constants.
const (
	armijoC    = 1e-4
	minStep    = 1e-12
	maxStep    = 1e6
	stepGrowth = 2.0
)

// #region config
// Config controls the optimizer.
type Config struct {
	MaxIterations     int               `yaml:"max_iterations"`
	Tolerance         float64           `yaml:"tolerance"`
	Lower             state.TrustParams `yaml:"lower"`
	Upper             state.TrustParams `yaml:"upper"`
	GuessFromFeedback bool              `yaml:"guess_from_feedback"`
}

// DefaultConfig bounds the priors to [1,200] and the rates to [0.1,200].
func DefaultConfig() Config {
	return Config{
		MaxIterations:     10000,
		Tolerance:         1e-3,
		Lower:             state.TrustParams{Alpha0: 1, Beta0: 1, Ws: 0.1, Wf: 0.1},
		Upper:             state.TrustParams{Alpha0: 200, Beta0: 200, Ws: 200, Wf: 200},
		GuessFromFeedback: false,
	}
}

// Validate checks the bounds are positive and ordered.
func (c Config) Validate() error {
	const op = "estimate.Config.Validate"
	if c.MaxIterations < 0 {
		return &state.ValidationError{Op: op, Field: "max_iterations", Value: float64(c.MaxIterations)}
	}
	if !(c.Tolerance > 0) {
		return &state.ValidationError{Op: op, Field: "tolerance", Value: c.Tolerance}
	}
	if err := c.Lower.Validate(); err != nil {
		return fmt.Errorf("%s: lower: %w", op, err)
	}
	lo, hi := c.Lower.Vector(), c.Upper.Vector()
	for i := range lo {
		if hi[i] < lo[i] || math.IsInf(hi[i], 0) {
			return &state.ValidationError{Op: op, Field: "upper", Value: hi[i]}
		}
	}
	return nil
}

// #endregion config

// #region result
// Result is one fit. Converged=false is a degraded fit, not an error.
type Result struct {
	Params     state.TrustParams
	Converged  bool
	Iterations int
	NLL        float64
	GradNorm   float64
}

// #endregion result

// #region estimator
// Estimator keeps the append-only feedback and performance sequences and
// re-solves over the whole history on every update. It warm-starts from the
// previous solution.
type Estimator struct {
	cfg      Config
	logger   *slog.Logger
	feedback []float64
	perf     []int
	current  state.TrustParams
}

// New returns an estimator whose first fit starts at initial (projected into
// the bounds) unless cfg.GuessFromFeedback is set.
func New(cfg Config, initial state.TrustParams, logger *slog.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("new estimator: %w", err)
	}
	if logger == nil {
		logger = logging.New("estimator")
	}
	e := &Estimator{cfg: cfg, logger: logger}
	e.current = e.project(initial)
	return e, nil
}

// Update appends one (feedback, performance) pair and refits.
func (e *Estimator) Update(feedback float64, perf int) (Result, error) {
	const op = "Estimator.Update"
	if err := state.CheckUnit(op, "trust_feedback", feedback); err != nil {
		return Result{}, err
	}
	if perf != 0 && perf != 1 {
		return Result{}, &state.ValidationError{Op: op, Field: "performance", Value: float64(perf)}
	}
	if len(e.feedback) == 0 && e.cfg.GuessFromFeedback {
		e.current = e.project(GuessFromFeedback(feedback))
	}
	e.feedback = append(e.feedback, feedback)
	e.perf = append(e.perf, perf)
	return e.Refit(), nil
}

// Refit re-solves on the current history without appending.
func (e *Estimator) Refit() Result {
	if len(e.feedback) == 0 {
		return Result{Params: e.current, Converged: true}
	}
	res := e.minimize(e.current)
	e.current = res.Params
	if !res.Converged {
		e.logger.Warn("trust parameter fit did not converge",
			"iterations", res.Iterations,
			"grad_norm", res.GradNorm,
			"nll", res.NLL,
			"sites", len(e.feedback))
	} else {
		e.logger.Debug("trust parameters refit",
			"iterations", res.Iterations,
			"nll", res.NLL,
			"alpha0", res.Params.Alpha0, "beta0", res.Params.Beta0,
			"ws", res.Params.Ws, "wf", res.Params.Wf)
	}
	return res
}

// Current returns the latest solution.
func (e *Estimator) Current() state.TrustParams { return e.current }

// Len returns the number of recorded sites.
func (e *Estimator) Len() int { return len(e.feedback) }

// Clone returns an independent copy sharing only the logger.
func (e *Estimator) Clone() *Estimator {
	c := *e
	c.feedback = append([]float64(nil), e.feedback...)
	c.perf = append([]int(nil), e.perf...)
	return &c
}

// #endregion estimator

// #region optimizer
// minimize runs projected gradient descent with Armijo backtracking. The
// convergence test runs before each step, so a converged start is returned
// unchanged.
func (e *Estimator) minimize(start state.TrustParams) Result {
	lo, hi := e.cfg.Lower.Vector(), e.cfg.Upper.Vector()
	x := start.Vector()
	f := NLL(state.TrustParamsFromVector(x[:]), e.feedback, e.perf)
	step := 1.0

	var (
		it     int
		pgNorm float64
	)
	for it = 0; ; it++ {
		g := Gradient(state.TrustParamsFromVector(x[:]), e.feedback, e.perf)
		pgNorm = projectedGradNorm(x, g, lo, hi)
		if pgNorm <= e.cfg.Tolerance {
			return Result{Params: state.TrustParamsFromVector(x[:]), Converged: true, Iterations: it, NLL: f, GradNorm: pgNorm}
		}
		if it >= e.cfg.MaxIterations {
			break
		}

		accepted := false
		for t := min(step*stepGrowth, maxStep); t >= minStep; t /= 2 {
			var cand [4]float64
			for i := range x {
				cand[i] = clamp(x[i]-t*g[i], lo[i], hi[i])
			}
			fc := NLL(state.TrustParamsFromVector(cand[:]), e.feedback, e.perf)
			var decrease float64
			for i := range x {
				decrease += g[i] * (cand[i] - x[i])
			}
			if fc <= f+armijoC*decrease {
				x, f, step = cand, fc, t
				accepted = true
				break
			}
		}
		if !accepted {
			break
		}
	}
	return Result{Params: state.TrustParamsFromVector(x[:]), Converged: false, Iterations: it, NLL: f, GradNorm: pgNorm}
}

func (e *Estimator) project(p state.TrustParams) state.TrustParams {
	lo, hi := e.cfg.Lower.Vector(), e.cfg.Upper.Vector()
	v := p.Vector()
	for i := range v {
		v[i] = clamp(v[i], lo[i], hi[i])
	}
	return state.TrustParamsFromVector(v[:])
}

func projectedGradNorm(x, g, lo, hi [4]float64) float64 {
	pg := make([]float64, 4)
	for i := range x {
		pg[i] = x[i] - clamp(x[i]-g[i], lo[i], hi[i])
	}
	return floats.Norm(pg, 2)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// #endregion optimizer

// #region likelihood
// NLL is the negative Beta log-likelihood of the history. Site i is scored
// with alpha_i = alpha0 + ns_i*ws and beta_i = beta0 + nf_i*wf, where ns_i and
// nf_i count successes and failures up to and including site i.
func NLL(p state.TrustParams, feedback []float64, perf []int) float64 {
	var nll float64
	ns, nf := 0, 0
	for i, fb := range feedback {
		ns += perf[i]
		nf += 1 - perf[i]
		d := distuv.Beta{
			Alpha: p.Alpha0 + float64(ns)*p.Ws,
			Beta:  p.Beta0 + float64(nf)*p.Wf,
		}
		nll -= d.LogProb(ClampFeedback(fb))
	}
	return nll
}

// Gradient is the gradient of NLL with respect to (alpha0, beta0, ws, wf),
// built from the Beta score psi(a+b) - psi(a) + log f.
func Gradient(p state.TrustParams, feedback []float64, perf []int) [4]float64 {
	var g [4]float64
	ns, nf := 0, 0
	for i, fb := range feedback {
		ns += perf[i]
		nf += 1 - perf[i]
		a := p.Alpha0 + float64(ns)*p.Ws
		b := p.Beta0 + float64(nf)*p.Wf
		f := ClampFeedback(fb)

		both := mathext.Digamma(a + b)
		da := both - mathext.Digamma(a) + math.Log(f)
		db := both - mathext.Digamma(b) + math.Log(1-f)

		g[0] -= da
		g[1] -= db
		g[2] -= float64(ns) * da
		g[3] -= float64(nf) * db
	}
	return g
}

// ClampFeedback keeps f away from the simplex boundary.
func ClampFeedback(f float64) float64 {
	return clamp(f, FeedbackMin, FeedbackMax)
}

// #endregion likelihood

// #region initial-guess
// GuessFromFeedback maps a first trust feedback, rounded to k/10, to
// (10k, 100-10k, 20, 30). The ends of the scale use (2, 98) and (98, 2) so
// both priors stay positive.
func GuessFromFeedback(f float64) state.TrustParams {
	k := int(math.Round(clamp(f, 0, 1) * 10))
	alpha := float64(10 * k)
	switch k {
	case 0:
		alpha = 2
	case 10:
		alpha = 98
	}
	return state.TrustParams{Alpha0: alpha, Beta0: 100 - alpha, Ws: 20, Wf: 30}
}

// #endregion initial-guess
