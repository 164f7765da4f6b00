// Package config handles mission configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/trust-planner/internal/estimate"
	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/planner"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// Environment overrides.
const (
	EnvDB        = "TRUSTPLANNER_DB"
	EnvLogLevel  = "TRUSTPLANNER_LOG_LEVEL"
	EnvLogFormat = "TRUSTPLANNER_LOG_FORMAT"
)

// Reward source kinds.
const (
	RewardConstant       = "constant"
	RewardStateDependent = "state_dependent"
)

// #region types
// Config holds all configuration.
type Config struct {
	Mission state.Settings `yaml:"mission"`
	Human   HumanConfig    `yaml:"human"`
	Robot   RobotConfig    `yaml:"robot"`
	Storage StorageConfig  `yaml:"storage"`
	Log     LogConfig      `yaml:"log"`
	RPC     RPCConfig      `yaml:"rpc"`
}

// AgentConfig is shared by the human and the robot's model of it.
type AgentConfig struct {
	Trust        state.TrustParams `yaml:"trust"`
	Kappa        float64           `yaml:"kappa"`
	DecisionSeed uint64            `yaml:"decision_seed"`
	TrustSeed    uint64            `yaml:"trust_seed"`
	Metric       string            `yaml:"metric"`
	Reward       RewardConfig      `yaml:"reward"`
}

// HumanConfig may replace Trust by a draw from a profile file.
type HumanConfig struct {
	AgentConfig  `yaml:",inline"`
	ProfilesPath string `yaml:"profiles_path"`
	ProfileSeed  uint64 `yaml:"profile_seed"`
	ProfileNoise bool   `yaml:"profile_noise"`
}

// RobotConfig adds the estimator and planner settings.
type RobotConfig struct {
	AgentConfig `yaml:",inline"`
	Estimator   estimate.Config `yaml:"estimator"`
	Planner     planner.Config  `yaml:"planner"`
}

// RewardConfig selects a reward-weight source.
type RewardConfig struct {
	Kind      string  `yaml:"kind"`
	Wh        float64 `yaml:"wh"`
	ModelPath string  `yaml:"model_path"`
	Noise     bool    `yaml:"noise"`
	NoiseSeed uint64  `yaml:"noise_seed"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RPCConfig is the planning service address.
type RPCConfig struct {
	Addr string `yaml:"addr"`
}

// #endregion types

// #region defaults
// Default returns default configuration.
func Default() *Config {
	return &Config{
		Mission: state.Settings{
			NumSites:         10,
			StartHealth:      100,
			StartTime:        0,
			PriorThreatLevel: 0.7,
			DiscountFactor:   0.7,
			ThreatSeed:       123,
		},
		Human: HumanConfig{
			AgentConfig: AgentConfig{
				Trust:        state.TrustParams{Alpha0: 10, Beta0: 50, Ws: 10, Wf: 20},
				Kappa:        0.2,
				DecisionSeed: 123,
				TrustSeed:    123,
				Metric:       "observed",
				Reward:       RewardConfig{Kind: RewardConstant, Wh: 0.75},
			},
			ProfileSeed: 123,
		},
		Robot: RobotConfig{
			AgentConfig: AgentConfig{
				Trust:        state.TrustParams{Alpha0: 10, Beta0: 10, Ws: 10, Wf: 20},
				Kappa:        0.2,
				DecisionSeed: 456,
				TrustSeed:    456,
				Metric:       "observed",
				Reward:       RewardConfig{Kind: RewardConstant, Wh: 0.75, NoiseSeed: 123},
			},
			Estimator: estimate.DefaultConfig(),
			Planner:   planner.DefaultConfig(),
		},
		Storage: StorageConfig{DBPath: "trust_planner.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
		RPC:     RPCConfig{Addr: "localhost:50061"},
	}
}

// #endregion defaults

// #region load
// Load reads a YAML file over the defaults; a missing file means defaults.
// Environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.Storage.DBPath = envOr(EnvDB, cfg.Storage.DBPath)
	cfg.Log.Level = envOr(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = envOr(EnvLogFormat, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// #endregion load

// #region validate
// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if err := c.Mission.Validate(); err != nil {
		return fmt.Errorf("mission: %w", err)
	}
	if c.Human.ProfilesPath == "" {
		if err := c.Human.Trust.Validate(); err != nil {
			return fmt.Errorf("human: %w", err)
		}
	}
	if err := c.Human.AgentConfig.validate("human"); err != nil {
		return err
	}
	if err := c.Robot.Trust.Validate(); err != nil {
		return fmt.Errorf("robot: %w", err)
	}
	if err := c.Robot.AgentConfig.validate("robot"); err != nil {
		return err
	}
	if err := c.Robot.Estimator.Validate(); err != nil {
		return fmt.Errorf("robot: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

func (a AgentConfig) validate(who string) error {
	if a.Kappa < 0 {
		return &state.ValidationError{Op: who, Field: "kappa", Value: a.Kappa}
	}
	if _, err := performance.ByName(a.Metric); err != nil {
		return fmt.Errorf("%s: %w", who, err)
	}
	switch a.Reward.Kind {
	case RewardConstant:
		if err := state.CheckUnit(who, "reward.wh", a.Reward.Wh); err != nil {
			return err
		}
	case RewardStateDependent:
		if a.Reward.ModelPath == "" {
			return fmt.Errorf("%s: reward.model_path is required for %s weights", who, RewardStateDependent)
		}
	default:
		return fmt.Errorf("%s: unknown reward kind %q", who, a.Reward.Kind)
	}
	return nil
}

// #endregion validate

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
