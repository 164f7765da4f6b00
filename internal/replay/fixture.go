package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/trust-planner/internal/config"
	"github.com/danielpatrickdp/trust-planner/internal/eval"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// Mission modes.
const (
	ModeTeam     = "team"
	ModeBaseline = "baseline"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: everything
// needed to fly a mission again, plus what happened the first time.
type Fixture struct {
	Description string                `json:"description"`
	RunID       string                `json:"run_id,omitempty"`
	Mode        string                `json:"mode"`
	Settings    state.Settings        `json:"settings"`
	Threats     state.Threats         `json:"threats"`
	Human       FixtureAgent          `json:"human"`
	Robot       FixtureAgent          `json:"robot"`
	Eval        eval.EvalConfig       `json:"eval"`
	Expected    []FixtureExpectedSite `json:"expected"`
}

// FixtureAgent mirrors config.AgentConfig with JSON tags. Fixtures only
// carry constant reward weights.
type FixtureAgent struct {
	Trust        state.TrustParams `json:"trust"`
	Kappa        float64           `json:"kappa"`
	DecisionSeed uint64            `json:"decision_seed"`
	TrustSeed    uint64            `json:"trust_seed"`
	Metric       string            `json:"metric"`
	Wh           float64           `json:"wh"`
}

// FixtureExpectedSite is the recorded outcome of one site.
type FixtureExpectedSite struct {
	SiteIndex      int `json:"site_index"`
	Recommendation int `json:"recommendation"`
	Action         int `json:"action"`
	Health         int `json:"health"`
	Time           int `json:"time"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Mode == "" {
		f.Mode = ModeTeam
	}
	if f.Eval == (eval.EvalConfig{}) {
		f.Eval = eval.DefaultEvalConfig()
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ToConfig builds a mission configuration from the fixture.
func (f *Fixture) ToConfig() *config.Config {
	cfg := config.Default()
	cfg.Mission = f.Settings
	cfg.Human.AgentConfig = f.Human.toAgentConfig()
	cfg.Robot.AgentConfig = f.Robot.toAgentConfig()
	return cfg
}

func (a FixtureAgent) toAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		Trust:        a.Trust,
		Kappa:        a.Kappa,
		DecisionSeed: a.DecisionSeed,
		TrustSeed:    a.TrustSeed,
		Metric:       a.Metric,
		Reward:       config.RewardConfig{Kind: config.RewardConstant, Wh: a.Wh},
	}
}

// #endregion fixture-loader

// #region fixture-builders

// AgentFromConfig captures an agent for a fixture. State-dependent weights
// cannot be carried and are rejected.
func AgentFromConfig(ac config.AgentConfig) (FixtureAgent, error) {
	if ac.Reward.Kind != config.RewardConstant {
		return FixtureAgent{}, fmt.Errorf("fixture agents need constant reward weights, got %q", ac.Reward.Kind)
	}
	return FixtureAgent{
		Trust:        ac.Trust,
		Kappa:        ac.Kappa,
		DecisionSeed: ac.DecisionSeed,
		TrustSeed:    ac.TrustSeed,
		Metric:       ac.Metric,
		Wh:           ac.Reward.Wh,
	}, nil
}

// FromRun builds a fixture from a stored run. Agent settings come from cfg;
// team runs take the starting trust parameters that were stored with them.
func FromRun(store *state.Store, runID string, cfg *config.Config) (*Fixture, error) {
	run, err := store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	sites, err := store.ListSites(run.RunID)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("run %s has no sites", run.RunID)
	}

	humanAgent, err := AgentFromConfig(cfg.Human.AgentConfig)
	if err != nil {
		return nil, fmt.Errorf("human: %w", err)
	}
	robotAgent, err := AgentFromConfig(cfg.Robot.AgentConfig)
	if err != nil {
		return nil, fmt.Errorf("robot: %w", err)
	}
	if run.Mode == ModeTeam {
		if humanAgent.Trust, err = store.LoadParams(run.RunID, -1, state.OwnerHuman); err != nil {
			return nil, err
		}
		if robotAgent.Trust, err = store.LoadParams(run.RunID, -1, state.OwnerRobot); err != nil {
			return nil, err
		}
	}

	return &Fixture{
		Description: fmt.Sprintf("%s mission %s, %d sites", run.Mode, run.RunID, len(sites)),
		RunID:       run.RunID,
		Mode:        run.Mode,
		Settings:    run.Settings,
		Threats:     run.Threats,
		Human:       humanAgent,
		Robot:       robotAgent,
		Eval:        eval.DefaultEvalConfig(),
		Expected:    ExpectedFromSites(sites),
	}, nil
}

// ExpectedFromSites converts stored site records into expectations.
func ExpectedFromSites(sites []state.SiteRecord) []FixtureExpectedSite {
	out := make([]FixtureExpectedSite, len(sites))
	for i, rec := range sites {
		out[i] = FixtureExpectedSite{
			SiteIndex:      rec.SiteIndex,
			Recommendation: int(rec.Recommendation),
			Action:         int(rec.Action),
			Health:         rec.Health,
			Time:           rec.Time,
		}
	}
	return out
}

// ExpectedFromHistory converts an in-memory history into expectations.
func ExpectedFromHistory(h state.History) []FixtureExpectedSite {
	out := make([]FixtureExpectedSite, h.Sites())
	for i := range out {
		out[i] = FixtureExpectedSite{
			SiteIndex:      i,
			Recommendation: int(h.Recommendations[i]),
			Action:         int(h.Actions[i]),
			Health:         h.Health[i+1],
			Time:           h.Time[i+1],
		}
	}
	return out
}

// #endregion fixture-builders
