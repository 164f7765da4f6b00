package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-planner/internal/eval"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/replay"
	"github.com/danielpatrickdp/trust-planner/internal/report"
	"github.com/danielpatrickdp/trust-planner/internal/sim"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

var runFlags struct {
	persist bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fly a team mission: the robot recommends, the simulated human decides",
	RunE:  runMission,
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Fly the mission with the robot acting alone",
	RunE:  runBaseline,
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.persist, "persist", true, "store the run in the configured database")
	baselineCmd.Flags().BoolVar(&runFlags.persist, "persist", true, "store the run in the configured database")
}

// openRun creates a persisted run unless --persist=false.
func openRun(opts *sim.Options, mode string, settings state.Settings, threats state.Threats, dbPath string) (func() error, error) {
	if !runFlags.persist {
		return func() error { return nil }, nil
	}
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	run, err := store.CreateRun(mode, settings, threats)
	if err != nil {
		store.Close()
		return nil, err
	}
	opts.RunID = run.RunID
	opts.Recorder = sim.NewStoreRecorder(store)
	return store.Close, nil
}

func runMission(cmd *cobra.Command, _ []string) error {
	cfg, mode, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	threats, err := sim.Threats(cfg)
	if err != nil {
		return err
	}
	team, err := sim.BuildTeam(cfg, logging.New("planner"))
	if err != nil {
		return err
	}

	opts := sim.Options{Logger: logging.New("sim")}
	closeStore, err := openRun(&opts, replay.ModeTeam, cfg.Mission, threats, cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer closeStore()

	s, err := sim.New(cfg.Mission, threats, team.Human, team.Robot, opts)
	if err != nil {
		return err
	}
	hist, err := s.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printMission(cmd, opts.RunID, hist, mode)
}

func runBaseline(cmd *cobra.Command, _ []string) error {
	cfg, mode, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	threats, err := sim.Threats(cfg)
	if err != nil {
		return err
	}
	rs, err := sim.BuildReward(cfg.Robot.Reward)
	if err != nil {
		return err
	}

	opts := sim.Options{Logger: logging.New("sim")}
	closeStore, err := openRun(&opts, replay.ModeBaseline, cfg.Mission, threats, cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer closeStore()

	hist, err := sim.RunBaseline(cmd.Context(), cfg.Mission, threats, rs, opts)
	if err != nil {
		return err
	}
	return printMission(cmd, opts.RunID, hist, mode)
}

func printMission(cmd *cobra.Command, runID string, hist state.History, mode report.Mode) error {
	out := cmd.OutOrStdout()
	if runID != "" {
		fmt.Fprintf(out, "Run: %s\n", runID)
	}
	fmt.Fprintln(out, report.History(hist, mode))
	fmt.Fprintln(out, report.Eval(eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(hist), mode))
	return nil
}
