package planner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/trust-planner/internal/decision"
	"github.com/danielpatrickdp/trust-planner/internal/estimate"
	"github.com/danielpatrickdp/trust-planner/internal/human"
	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/reward"
	"github.com/danielpatrickdp/trust-planner/internal/state"
	"github.com/danielpatrickdp/trust-planner/internal/threat"
	"github.com/danielpatrickdp/trust-planner/internal/trust"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func settings(numSites int, df float64) state.Settings {
	return state.Settings{
		NumSites:         numSites,
		StartHealth:      100,
		StartTime:        0,
		PriorThreatLevel: 0.7,
		DiscountFactor:   df,
		ThreatSeed:       123,
	}
}

func newModel(t *testing.T, p state.TrustParams) *human.Model {
	t.Helper()
	tm, err := trust.NewBetaModel(p, performance.ObservedReward{}, 11)
	require.NoError(t, err)
	dm, err := decision.NewBoundedRationalityDisuse(0.2, 12)
	require.NoError(t, err)
	est, err := estimate.New(estimate.DefaultConfig(), p, quiet())
	require.NoError(t, err)
	return human.NewModel(tm, dm, est)
}

func newRobot(t *testing.T, rs reward.Source, s state.Settings, workers int) *Robot {
	t.Helper()
	r, err := NewRobot(newModel(t, state.TrustParams{Alpha0: 10, Beta0: 10, Ws: 10, Wf: 20}), rs, s, Config{Workers: workers}, quiet())
	require.NoError(t, err)
	return r
}

func constant(t *testing.T, wh float64) reward.ConstantWeights {
	t.Helper()
	c, err := reward.NewConstantWeights(wh)
	require.NoError(t, err)
	return c
}

func info(site int, d float64) state.RobotInfo {
	return state.RobotInfo{Health: 100, Time: 0, SiteIndex: site, ThreatLevel: d, PriorThreatLevel: 0.7}
}

type failingSource struct{}

var errSource = errors.New("source unavailable")

func (failingSource) WH(int, int) (float64, error) { return 0, errSource }

func TestNoSitesRemaining(t *testing.T) {
	s := settings(3, 0.7)
	r := newRobot(t, constant(t, 0.75), s, 1)
	_, err := r.Recommend(context.Background(), info(3, 0.5))
	require.ErrorIs(t, err, state.ErrNoSitesRemaining)

	ro, err := NewRobotOnly(constant(t, 0.75), s)
	require.NoError(t, err)
	_, err = ro.ChooseAction(info(3, 0.5))
	require.ErrorIs(t, err, state.ErrNoSitesRemaining)
}

func TestLastSiteMatchesOneStepArgmax(t *testing.T) {
	for _, wh := range []float64{0.3, 0.55, 0.75, 0.9} {
		for _, d := range []float64{0.05, 0.2, 0.5, 0.8, 0.95} {
			s := settings(4, 0.7)
			r := newRobot(t, constant(t, wh), s, 1)
			ro, err := NewRobotOnly(constant(t, wh), s)
			require.NoError(t, err)

			got, err := r.Recommend(context.Background(), info(3, d))
			require.NoError(t, err)
			want, err := ro.ChooseAction(info(3, d))
			require.NoError(t, err)
			assert.Equal(t, want, got, "wh=%v d=%v", wh, d)

			oneStep := state.ActionSkip
			if -wh*d < -(1 - wh) {
				oneStep = state.ActionProtect
			}
			assert.Equal(t, oneStep, got, "wh=%v d=%v", wh, d)
		}
	}
}

func TestLastSiteValuesAreImmediateRewards(t *testing.T) {
	const wh, d = 0.75, 0.4
	r := newRobot(t, constant(t, wh), settings(1, 0.7), 1)
	p, err := r.Plan(context.Background(), info(0, d))
	require.NoError(t, err)

	alpha, beta := r.Model().AlphaBeta()
	tr := alpha / (alpha + beta)
	for rec, got := range []float64{p.Value0, p.Value1} {
		p0, p1, err := r.Model().Decision().ActionProbabilities(state.HumanInfo{Health: 100, ThreatLevel: d, Recommendation: state.Action(rec)}, tr, wh)
		require.NoError(t, err)
		assert.InDelta(t, -wh*d*p0-(1-wh)*p1, got, 1e-12, "rec=%d", rec)
	}
	assert.Equal(t, 1, p.Horizon)
}

func TestValueNonIncreasingInDiscount(t *testing.T) {
	for _, rs := range []reward.Source{constant(t, 0.75), constant(t, 0.4)} {
		prevRobot, prevBase := 1.0, 1.0
		for _, df := range []float64{0, 0.2, 0.5, 0.8, 0.95, 1} {
			s := settings(5, df)
			p, err := newRobot(t, rs, s, 1).Plan(context.Background(), info(0, 0.6))
			require.NoError(t, err)
			require.LessOrEqual(t, p.Value(), prevRobot+1e-12, "robot df=%v", df)
			require.LessOrEqual(t, p.Value(), 0.0)
			prevRobot = p.Value()

			ro, err := NewRobotOnly(rs, s)
			require.NoError(t, err)
			b, err := ro.Plan(info(0, 0.6))
			require.NoError(t, err)
			require.LessOrEqual(t, b.Value(), prevBase+1e-12, "baseline df=%v", df)
			prevBase = b.Value()
		}
	}
}

func TestPlanDoesNotMutateModel(t *testing.T) {
	r := newRobot(t, constant(t, 0.75), settings(5, 0.7), 1)
	before := r.Model().Params()
	a0, b0 := r.Model().AlphaBeta()
	s0, f0 := r.Model().Counts()

	for i := 0; i < 3; i++ {
		_, err := r.Plan(context.Background(), info(0, 0.5))
		require.NoError(t, err)
	}
	a1, b1 := r.Model().AlphaBeta()
	s1, f1 := r.Model().Counts()
	assert.Equal(t, before, r.Model().Params())
	assert.Equal(t, [2]float64{a0, b0}, [2]float64{a1, b1})
	assert.Equal(t, [2]int{s0, f0}, [2]int{s1, f1})
}

func TestParallelMatchesSequential(t *testing.T) {
	rs, err := reward.NewStateDependentWeights(reward.Regression{
		Intercept: 0.8, CoefHealth: -0.6, CoefTime: 0.3,
		Mean: [2]float64{0.7, 0.5}, Scale: [2]float64{0.2, 0.25},
	})
	require.NoError(t, err)

	s := settings(7, 0.8)
	seq, err := newRobot(t, rs, s, 1).Plan(context.Background(), info(0, 0.35))
	require.NoError(t, err)
	par, err := newRobot(t, rs, s, 4).Plan(context.Background(), info(0, 0.35))
	require.NoError(t, err)

	assert.Equal(t, seq.Recommendation, par.Recommendation)
	assert.Equal(t, seq.Value0, par.Value0)
	assert.Equal(t, seq.Value1, par.Value1)
}

func TestRobotOnlyTwoSites(t *testing.T) {
	const wh, d, prior, df = 0.75, 0.3, 0.7, 0.5
	ro, err := NewRobotOnly(constant(t, wh), settings(2, df))
	require.NoError(t, err)
	p, err := ro.Plan(info(0, d))
	require.NoError(t, err)

	// With constant weights every stage-1 cell has the same value.
	m := max(-wh*prior, -(1 - wh))
	assert.InDelta(t, -wh*d+df*m, p.Value0, 1e-12)
	assert.InDelta(t, -(1-wh)+df*m, p.Value1, 1e-12)
	assert.Equal(t, state.ActionSkip, p.Recommendation)
}

func TestTwoSiteValuesMatchHandComputation(t *testing.T) {
	const wh, d, prior, df = 0.75, 0.3, 0.7, 0.9
	r := newRobot(t, constant(t, wh), settings(2, df), 1)
	p, err := r.Plan(context.Background(), info(0, d))
	require.NoError(t, err)
	require.Equal(t, 2, p.Horizon)

	params := r.Model().Params()
	alpha, beta := r.Model().AlphaBeta()
	dm := r.Model().Decision()
	probs := func(hi state.HumanInfo, tr float64) (float64, float64) {
		p0, p1, err := dm.ActionProbabilities(hi, tr, wh)
		require.NoError(t, err)
		return p0, p1
	}

	// Last stage: f failures after one hypothetical decision, prior threat level.
	last := func(f, health, tm int) float64 {
		a := alpha + float64(1-f)*params.Ws
		b := beta + float64(f)*params.Wf
		var v [2]float64
		for rec := state.ActionSkip; rec <= state.ActionProtect; rec++ {
			hi := state.HumanInfo{Health: health, Time: tm, SiteIndex: 1, ThreatLevel: prior, Recommendation: rec}
			p0, p1 := probs(hi, a/(a+b))
			v[rec] = -wh*prior*p0 - (1-wh)*p1
		}
		return max(v[0], v[1])
	}

	var want [2]float64
	for rec := state.ActionSkip; rec <= state.ActionProtect; rec++ {
		hi := state.HumanInfo{Health: 100, Time: 0, SiteIndex: 0, ThreatLevel: d, Recommendation: rec}
		p0, p1 := probs(hi, alpha/(alpha+beta))
		future := 0.0
		for th, pt := range []float64{1 - d, d} {
			f := 1 - performance.Score(float64(th), rec, wh)
			health := 100 - state.HealthStep*th
			future += pt * (p0*last(f, health, 0) + p1*last(f, 100, state.TimeStep))
		}
		want[rec] = -wh*d*p0 - (1-wh)*p1 + df*future
	}

	assert.InDelta(t, want[0], p.Value0, 1e-12)
	assert.InDelta(t, want[1], p.Value1, 1e-12)
	wantRec := state.ActionSkip
	if want[1] > want[0] {
		wantRec = state.ActionProtect
	}
	assert.Equal(t, wantRec, p.Recommendation)

	// The second stage sees the prior, so moving it moves the root values.
	s := settings(2, df)
	moved := newRobot(t, constant(t, wh), s, 1)
	ri := info(0, d)
	ri.PriorThreatLevel = 0.2
	q, err := moved.Plan(context.Background(), ri)
	require.NoError(t, err)
	assert.NotEqual(t, p.Value0, q.Value0)
}

func TestBaselineScenarioIsReproducible(t *testing.T) {
	s := state.Settings{NumSites: 5, StartHealth: 100, StartTime: 100, PriorThreatLevel: 0.7, DiscountFactor: 0.6, ThreatSeed: 123}
	var recs []state.Action
	var plans []Plan
	for run := 0; run < 2; run++ {
		th, err := threat.Generate(s.NumSites, s.PriorThreatLevel, s.ThreatSeed)
		require.NoError(t, err)
		ro, err := NewRobotOnly(constant(t, 0.75), s)
		require.NoError(t, err)
		ri := state.RobotInfo{Health: s.StartHealth, Time: s.StartTime, ThreatLevel: th.AfterScan[0], PriorThreatLevel: s.PriorThreatLevel}
		p, err := ro.Plan(ri)
		require.NoError(t, err)
		plans = append(plans, p)
		recs = append(recs, p.Recommendation)
	}
	assert.Equal(t, recs[0], recs[1])
	assert.Equal(t, plans[0].Value0, plans[1].Value0)
	assert.Equal(t, plans[0].Value1, plans[1].Value1)
}

func TestPlanValidation(t *testing.T) {
	r := newRobot(t, constant(t, 0.75), settings(3, 0.7), 1)
	bad := info(0, 1.5)
	_, err := r.Plan(context.Background(), bad)
	require.ErrorIs(t, err, state.ErrValidation)

	bad = info(0, 0.5)
	bad.Health = -10
	_, err = r.Plan(context.Background(), bad)
	require.ErrorIs(t, err, state.ErrValidation)
}

func TestPlanPropagatesSourceErrors(t *testing.T) {
	for _, workers := range []int{1, 3} {
		r := newRobot(t, failingSource{}, settings(4, 0.7), workers)
		_, err := r.Plan(context.Background(), info(0, 0.5))
		require.ErrorIs(t, err, errSource)
	}
	ro, err := NewRobotOnly(failingSource{}, settings(4, 0.7))
	require.NoError(t, err)
	_, err = ro.Plan(info(0, 0.5))
	require.ErrorIs(t, err, errSource)
}

func TestTableIndexOutOfRangePanics(t *testing.T) {
	tbl := newValueTable(3)
	require.NotPanics(t, func() { tbl.at(3, 3, 3, 3) })
	require.Panics(t, func() { tbl.at(4, 0, 0, 0) })
	require.Panics(t, func() { tbl.set(0, -1, 0, 0, 1) })

	g := newGrid(2)
	require.Panics(t, func() { g.at(0, 3, 0) })
}

func TestStageCellsBounds(t *testing.T) {
	for s := 0; s < 5; s++ {
		cells := stageCells(s)
		// (s+1) failure counts times the (s+1)(s+2)/2 (j,k) pairs with j+k <= s.
		require.Len(t, cells, (s+1)*(s+1)*(s+2)/2)
		for _, c := range cells {
			require.LessOrEqual(t, c[0], s)
			require.LessOrEqual(t, c[1]+c[2], s)
		}
	}
}

func TestObserveUpdatesModel(t *testing.T) {
	r := newRobot(t, constant(t, 0.75), settings(3, 0.7), 1)
	hi := state.HumanInfo{Health: 100, Recommendation: state.ActionProtect, ThreatLevel: 0.8}
	obs := state.Observation{Threat: 1, Action: state.ActionProtect}.WithFeedback(0.7)

	perf, params, err := r.Observe(hi, obs)
	require.NoError(t, err)
	assert.Equal(t, 1, perf)
	assert.Equal(t, params, r.Model().Params())
	s, f := r.Model().Counts()
	assert.Equal(t, 1, s)
	assert.Equal(t, 0, f)
}
