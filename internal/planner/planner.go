// Package planner computes recommendations by finite-horizon backward
// induction. Robot plans jointly over the robot's trust belief and the
// mission state; RobotOnly is the single-agent baseline over state alone.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/trust-planner/internal/human"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/reward"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region config
// Config controls planner execution. Workers > 1 evaluates the cells of one
// stage concurrently; stages are always computed strictly in order.
type Config struct {
	Workers int `yaml:"workers"`
}

// DefaultConfig plans on the calling goroutine.
func DefaultConfig() Config {
	return Config{Workers: 1}
}

// #endregion config

// #region plan
// Plan is the root of one backward induction.
type Plan struct {
	Recommendation state.Action
	Value0         float64
	Value1         float64
	Horizon        int
	Elapsed        time.Duration
}

// Value is the value of the chosen recommendation.
func (p Plan) Value() float64 {
	if p.Recommendation == state.ActionSkip {
		return p.Value0
	}
	return p.Value1
}

// choose applies the tie rule: value0 >= value1 picks action 0.
func choose(v0, v1 float64) (state.Action, float64) {
	if v0 >= v1 {
		return state.ActionSkip, v0
	}
	return state.ActionProtect, v1
}

// #endregion plan

// #region robot
// Robot recommends actions to a human and maintains its own model of that
// human. Recommend never mutates the model; Observe does.
type Robot struct {
	model    *human.Model
	reward   reward.Source
	settings state.Settings
	cfg      Config
	logger   *slog.Logger
}

// NewRobot wires a robot to its model of the human and its reward source.
func NewRobot(model *human.Model, rs reward.Source, settings state.Settings, cfg Config, logger *slog.Logger) (*Robot, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("new robot: %w", err)
	}
	if logger == nil {
		logger = logging.New("planner")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Robot{model: model, reward: rs, settings: settings, cfg: cfg, logger: logger}, nil
}

// Model returns the robot's model of the human.
func (r *Robot) Model() *human.Model { return r.model }

// Reward returns the robot's reward source.
func (r *Robot) Reward() reward.Source { return r.reward }

// Recommend returns the root action of Plan.
func (r *Robot) Recommend(ctx context.Context, info state.RobotInfo) (state.Action, error) {
	p, err := r.Plan(ctx, info)
	if err != nil {
		return 0, err
	}
	return p.Recommendation, nil
}

// Plan runs backward induction over the remaining sites. At stage s the
// cell (i, j, k) stands for i trust failures among the s hypothetical
// decisions so far, j health losses and k time steps. Stage 0 uses the
// posterior threat level and deeper stages the prior.
func (r *Robot) Plan(ctx context.Context, info state.RobotInfo) (Plan, error) {
	start := time.Now()
	if err := validateInfo("Robot.Plan", info); err != nil {
		return Plan{}, err
	}
	horizon := r.settings.NumSites - info.SiteIndex
	if horizon <= 0 {
		return Plan{}, fmt.Errorf("plan site %d of %d: %w", info.SiteIndex, r.settings.NumSites, state.ErrNoSitesRemaining)
	}

	params := r.model.Params()
	alpha, beta := r.model.AlphaBeta()
	dm := r.model.Decision()
	df := r.settings.DiscountFactor
	tbl := newValueTable(horizon)
	var root [2]float64

	for s := horizon - 1; s >= 0; s-- {
		d := info.PriorThreatLevel
		if s == 0 {
			d = info.ThreatLevel
		}
		cells := stageCells(s)
		err := r.forEach(ctx, len(cells), func(c int) error {
			i, j, k := cells[c][0], cells[c][1], cells[c][2]
			a := alpha + float64(s-i)*params.Ws
			b := beta + float64(i)*params.Wf
			trust := a / (a + b)
			health := max(0, info.Health-state.HealthStep*j)
			tm := info.Time + state.TimeStep*k
			wh, err := r.reward.WH(health, tm)
			if err != nil {
				return err
			}

			var values [2]float64
			for rec := state.ActionSkip; rec <= state.ActionProtect; rec++ {
				hi := state.HumanInfo{Health: health, Time: tm, SiteIndex: info.SiteIndex + s, ThreatLevel: d, Recommendation: rec}
				p0, p1, err := dm.ActionProbabilities(hi, trust, wh)
				if err != nil {
					return err
				}
				immediate := -wh*d*p0 - (1-wh)*p1

				var future float64
				for threat := 0; threat <= 1; threat++ {
					pt := d
					if threat == 0 {
						pt = 1 - d
					}
					next := i + 1 - performance.Score(float64(threat), rec, wh)
					future += pt * (p0*tbl.at(s+1, next, j+threat, k) + p1*tbl.at(s+1, next, j, k+1))
				}
				values[rec] = immediate + df*future
			}
			_, best := choose(values[0], values[1])
			tbl.set(s, i, j, k, best)
			if s == 0 {
				root = values
			}
			return nil
		})
		if err != nil {
			return Plan{}, fmt.Errorf("plan stage %d: %w", s, err)
		}
	}

	rec, _ := choose(root[0], root[1])
	p := Plan{Recommendation: rec, Value0: root[0], Value1: root[1], Horizon: horizon, Elapsed: time.Since(start)}
	r.logger.Debug("planned recommendation",
		"site", info.SiteIndex,
		"horizon", horizon,
		"recommendation", int(rec),
		"value0", p.Value0,
		"value1", p.Value1,
		"elapsed", p.Elapsed)
	return p, nil
}

// Observe updates the robot's model of the human with one completed site.
// Performance is scored with the robot's own reward weight.
func (r *Robot) Observe(info state.HumanInfo, obs state.Observation) (int, state.TrustParams, error) {
	wh, err := r.reward.WH(info.Health, info.Time)
	if err != nil {
		return 0, state.TrustParams{}, fmt.Errorf("robot observe: %w", err)
	}
	perf, res, err := r.model.Observe(info, obs, wh)
	return perf, res.Params, err
}

func (r *Robot) forEach(ctx context.Context, n int, fn func(int) error) error {
	if r.cfg.Workers <= 1 || n < 2 {
		for c := 0; c < n; c++ {
			if err := fn(c); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	chunk := (n + r.cfg.Workers - 1) / r.cfg.Workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for c := lo; c < hi; c++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(c); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// stageCells lists the reachable (i, j, k) at stage s: i <= s and j+k <= s.
func stageCells(s int) [][3]int {
	var cells [][3]int
	for i := 0; i <= s; i++ {
		for j := 0; j <= s; j++ {
			for k := 0; j+k <= s; k++ {
				cells = append(cells, [3]int{i, j, k})
			}
		}
	}
	return cells
}

// #endregion robot

// #region robot-only
// RobotOnly is the single-agent baseline: the robot acts itself and chooses
// directly between the one-step rewards of the two actions.
type RobotOnly struct {
	reward   reward.Source
	settings state.Settings
}

// NewRobotOnly returns a baseline planner.
func NewRobotOnly(rs reward.Source, settings state.Settings) (*RobotOnly, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("new robot only: %w", err)
	}
	return &RobotOnly{reward: rs, settings: settings}, nil
}

// ChooseAction returns the root action of Plan.
func (r *RobotOnly) ChooseAction(info state.RobotInfo) (state.Action, error) {
	p, err := r.Plan(info)
	if err != nil {
		return 0, err
	}
	return p.Recommendation, nil
}

// Plan runs backward induction over (health losses, time steps).
func (r *RobotOnly) Plan(info state.RobotInfo) (Plan, error) {
	start := time.Now()
	if err := validateInfo("RobotOnly.Plan", info); err != nil {
		return Plan{}, err
	}
	horizon := r.settings.NumSites - info.SiteIndex
	if horizon <= 0 {
		return Plan{}, fmt.Errorf("plan site %d of %d: %w", info.SiteIndex, r.settings.NumSites, state.ErrNoSitesRemaining)
	}

	df := r.settings.DiscountFactor
	g := newGrid(horizon)
	var root [2]float64
	for s := horizon - 1; s >= 0; s-- {
		d := info.PriorThreatLevel
		if s == 0 {
			d = info.ThreatLevel
		}
		for j := 0; j <= s; j++ {
			for k := 0; j+k <= s; k++ {
				wh, err := r.reward.WH(max(0, info.Health-state.HealthStep*j), info.Time+state.TimeStep*k)
				if err != nil {
					return Plan{}, fmt.Errorf("plan stage %d: %w", s, err)
				}
				v0 := -wh*d + df*(d*g.at(s+1, j+1, k)+(1-d)*g.at(s+1, j, k))
				v1 := -(1 - wh) + df*g.at(s+1, j, k+1)
				_, best := choose(v0, v1)
				g.set(s, j, k, best)
				if s == 0 {
					root = [2]float64{v0, v1}
				}
			}
		}
	}
	rec, _ := choose(root[0], root[1])
	return Plan{Recommendation: rec, Value0: root[0], Value1: root[1], Horizon: horizon, Elapsed: time.Since(start)}, nil
}

// #endregion robot-only

func validateInfo(op string, info state.RobotInfo) error {
	if err := state.CheckNonNegative(op, "health", info.Health); err != nil {
		return err
	}
	if err := state.CheckNonNegative(op, "time", info.Time); err != nil {
		return err
	}
	if err := state.CheckNonNegative(op, "site_index", info.SiteIndex); err != nil {
		return err
	}
	if err := state.CheckUnit(op, "threat_level", info.ThreatLevel); err != nil {
		return err
	}
	return state.CheckUnit(op, "prior_threat_level", info.PriorThreatLevel)
}
