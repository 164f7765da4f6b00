package sim

import (
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/trust-planner/internal/config"
	"github.com/danielpatrickdp/trust-planner/internal/decision"
	"github.com/danielpatrickdp/trust-planner/internal/estimate"
	"github.com/danielpatrickdp/trust-planner/internal/human"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/planner"
	"github.com/danielpatrickdp/trust-planner/internal/reward"
	"github.com/danielpatrickdp/trust-planner/internal/state"
	"github.com/danielpatrickdp/trust-planner/internal/threat"
	"github.com/danielpatrickdp/trust-planner/internal/trust"
)

// #region team
// Team is a human and the robot advising it, built from configuration.
type Team struct {
	Human *human.Human
	Robot *planner.Robot
	// Group is the profile group the human was drawn from, empty when the
	// parameters came straight from configuration.
	Group trust.Group
}

// BuildTeam assembles both agents. Each gets its own generators.
func BuildTeam(cfg *config.Config, logger *slog.Logger) (Team, error) {
	if logger == nil {
		logger = logging.New("planner")
	}

	humanParams, group, err := humanTrust(cfg.Human)
	if err != nil {
		return Team{}, err
	}
	h, err := buildHuman(cfg.Human.AgentConfig, humanParams)
	if err != nil {
		return Team{}, fmt.Errorf("build human: %w", err)
	}
	r, err := BuildRobot(cfg, logger)
	if err != nil {
		return Team{}, err
	}
	return Team{Human: h, Robot: r, Group: group}, nil
}

// BuildRobot assembles the robot and its model of the human.
func BuildRobot(cfg *config.Config, logger *slog.Logger) (*planner.Robot, error) {
	rc := cfg.Robot
	metric, err := performance.ByName(rc.Metric)
	if err != nil {
		return nil, fmt.Errorf("build robot: %w", err)
	}
	tm, err := trust.NewBetaModel(rc.Trust, metric, rc.TrustSeed)
	if err != nil {
		return nil, fmt.Errorf("build robot: %w", err)
	}
	dm, err := decision.NewBoundedRationalityDisuse(rc.Kappa, rc.DecisionSeed)
	if err != nil {
		return nil, fmt.Errorf("build robot: %w", err)
	}
	est, err := estimate.New(rc.Estimator, rc.Trust, logging.New("estimator"))
	if err != nil {
		return nil, fmt.Errorf("build robot: %w", err)
	}
	rs, err := BuildReward(rc.Reward)
	if err != nil {
		return nil, fmt.Errorf("build robot: %w", err)
	}
	return planner.NewRobot(human.NewModel(tm, dm, est), rs, cfg.Mission, rc.Planner, logger)
}

// BuildReward creates the reward-weight source a RewardConfig describes.
func BuildReward(rc config.RewardConfig) (reward.Source, error) {
	switch rc.Kind {
	case config.RewardConstant:
		return reward.NewConstantWeights(rc.Wh)
	case config.RewardStateDependent:
		model, err := reward.LoadRegression(rc.ModelPath)
		if err != nil {
			return nil, err
		}
		sdw, err := reward.NewStateDependentWeights(model)
		if err != nil {
			return nil, err
		}
		if rc.Noise {
			sdw = sdw.WithNoise(rc.NoiseSeed)
		}
		return sdw, nil
	}
	return nil, fmt.Errorf("unknown reward kind %q", rc.Kind)
}

// Threats generates the configured mission's threat sequence.
func Threats(cfg *config.Config) (state.Threats, error) {
	return threat.Generate(cfg.Mission.NumSites, cfg.Mission.PriorThreatLevel, cfg.Mission.ThreatSeed)
}

func humanTrust(hc config.HumanConfig) (state.TrustParams, trust.Group, error) {
	if hc.ProfilesPath == "" {
		return hc.Trust, "", nil
	}
	profiles, err := trust.LoadProfiles(hc.ProfilesPath)
	if err != nil {
		return state.TrustParams{}, "", fmt.Errorf("build human: %w", err)
	}
	p, group := trust.NewParamsGenerator(profiles, hc.ProfileSeed, hc.ProfileNoise).Generate()
	return p, group, nil
}

func buildHuman(ac config.AgentConfig, p state.TrustParams) (*human.Human, error) {
	metric, err := performance.ByName(ac.Metric)
	if err != nil {
		return nil, err
	}
	tm, err := trust.NewBetaModel(p, metric, ac.TrustSeed)
	if err != nil {
		return nil, err
	}
	dm, err := decision.NewBoundedRationalityDisuse(ac.Kappa, ac.DecisionSeed)
	if err != nil {
		return nil, err
	}
	rs, err := BuildReward(ac.Reward)
	if err != nil {
		return nil, err
	}
	return human.New(tm, dm, rs), nil
}

// #endregion team
