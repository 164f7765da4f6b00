package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/trust-planner/internal/eval"
	"github.com/danielpatrickdp/trust-planner/internal/sim"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region types
// ReplayResult compares one replayed site against its recorded outcome.
type ReplayResult struct {
	SiteIndex int
	Status    string // "match" | "drift" | "unchecked"
	Reason    string
	Expected  *FixtureExpectedSite
	Got       FixtureExpectedSite
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSites  int
	Matches     int
	Drifts      int
	Unchecked   int
	FirstDrift  int // -1 when no site drifted
	FinalHealth int
	FinalTime   int
	Eval        eval.EvalResult
}

// #endregion types

// #region replay
// Replay flies the fixture's mission again in memory and compares every
// site with the recorded expectation.
func Replay(ctx context.Context, f *Fixture, logger *slog.Logger) ([]ReplayResult, state.History, error) {
	cfg := f.ToConfig()
	if err := cfg.Validate(); err != nil {
		return nil, state.History{}, fmt.Errorf("replay: %w", err)
	}
	opts := sim.Options{RunID: f.RunID, Logger: logger}

	var hist state.History
	switch f.Mode {
	case ModeBaseline:
		rs, err := sim.BuildReward(cfg.Robot.Reward)
		if err != nil {
			return nil, state.History{}, fmt.Errorf("replay: %w", err)
		}
		hist, err = sim.RunBaseline(ctx, f.Settings, f.Threats, rs, opts)
		if err != nil {
			return nil, hist, fmt.Errorf("replay: %w", err)
		}
	case ModeTeam, "":
		team, err := sim.BuildTeam(cfg, logger)
		if err != nil {
			return nil, state.History{}, fmt.Errorf("replay: %w", err)
		}
		s, err := sim.New(f.Settings, f.Threats, team.Human, team.Robot, opts)
		if err != nil {
			return nil, state.History{}, fmt.Errorf("replay: %w", err)
		}
		hist, err = s.Run(ctx)
		if err != nil {
			return nil, hist, fmt.Errorf("replay: %w", err)
		}
	default:
		return nil, state.History{}, fmt.Errorf("replay: unknown mode %q", f.Mode)
	}

	return Compare(f.Expected, ExpectedFromHistory(hist)), hist, nil
}

// Compare matches replayed sites against expectations by site index.
func Compare(expected, got []FixtureExpectedSite) []ReplayResult {
	byIndex := make(map[int]FixtureExpectedSite, len(expected))
	for _, e := range expected {
		byIndex[e.SiteIndex] = e
	}

	results := make([]ReplayResult, 0, len(got))
	for _, g := range got {
		r := ReplayResult{SiteIndex: g.SiteIndex, Got: g}
		e, ok := byIndex[g.SiteIndex]
		switch {
		case !ok:
			r.Status = "unchecked"
			r.Reason = "no recorded outcome"
		case e.Recommendation != g.Recommendation:
			r.Status = "drift"
			r.Reason = fmt.Sprintf("recommendation %d, recorded %d", g.Recommendation, e.Recommendation)
		case e.Action != g.Action:
			r.Status = "drift"
			r.Reason = fmt.Sprintf("action %d, recorded %d", g.Action, e.Action)
		case e.Health != g.Health || e.Time != g.Time:
			r.Status = "drift"
			r.Reason = fmt.Sprintf("state (%d,%d), recorded (%d,%d)", g.Health, g.Time, e.Health, e.Time)
		default:
			r.Status = "match"
		}
		if ok {
			r.Expected = &e
		}
		results = append(results, r)
	}
	return results
}

// Summarize computes aggregate stats from replay results and evaluates the
// replayed history.
func Summarize(results []ReplayResult, hist state.History, cfg eval.EvalConfig) ReplaySummary {
	s := ReplaySummary{
		TotalSites: len(results),
		FirstDrift: -1,
		Eval:       eval.NewEvalHarness(cfg).Run(hist),
	}
	if n := len(hist.Health); n > 0 {
		s.FinalHealth = hist.Health[n-1]
		s.FinalTime = hist.Time[n-1]
	}
	for _, r := range results {
		switch r.Status {
		case "match":
			s.Matches++
		case "drift":
			s.Drifts++
			if s.FirstDrift < 0 {
				s.FirstDrift = r.SiteIndex
			}
		case "unchecked":
			s.Unchecked++
		}
	}
	return s
}

// #endregion replay
