package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-planner/internal/config"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/rpc"
	"github.com/danielpatrickdp/trust-planner/internal/sim"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

var recommendFlags struct {
	health    int
	time      int
	site      int
	level     float64
	successes int
	failures  int
	remote    string
	timeout   time.Duration
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Plan a single recommendation for the given mission state",
	RunE:  runRecommend,
}

func init() {
	f := recommendCmd.Flags()
	f.IntVar(&recommendFlags.health, "health", -1, "current health (start health when negative)")
	f.IntVar(&recommendFlags.time, "time", -1, "time spent so far (start time when negative)")
	f.IntVar(&recommendFlags.site, "site", 0, "index of the site being entered")
	f.Float64Var(&recommendFlags.level, "level", 0.5, "post-scan threat level of the site")
	f.IntVar(&recommendFlags.successes, "successes", 0, "trust successes observed so far")
	f.IntVar(&recommendFlags.failures, "failures", 0, "trust failures observed so far")
	f.StringVar(&recommendFlags.remote, "remote", "", "plan on a planner server at this address")
	f.DurationVar(&recommendFlags.timeout, "timeout", 30*time.Second, "planning deadline")
}

func recommendRequest(cfg *config.Config) rpc.RecommendRequest {
	health, t := recommendFlags.health, recommendFlags.time
	if health < 0 {
		health = cfg.Mission.StartHealth
	}
	if t < 0 {
		t = cfg.Mission.StartTime
	}
	return rpc.RecommendRequest{
		Info: state.RobotInfo{
			Health:           health,
			Time:             t,
			SiteIndex:        recommendFlags.site,
			ThreatLevel:      recommendFlags.level,
			PriorThreatLevel: cfg.Mission.PriorThreatLevel,
		},
		Settings:  cfg.Mission,
		Trust:     cfg.Robot.Trust,
		Successes: recommendFlags.successes,
		Failures:  recommendFlags.failures,
		Kappa:     cfg.Robot.Kappa,
		Wh:        cfg.Robot.Reward.Wh,
	}
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), recommendFlags.timeout)
	defer cancel()

	req := recommendRequest(cfg)
	var res rpc.RecommendResult
	if recommendFlags.remote != "" {
		res, err = recommendRemote(ctx, recommendFlags.remote, req)
	} else {
		res, err = recommendLocal(ctx, cfg, req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Site:           %d\n", req.Info.SiteIndex)
	fmt.Fprintf(out, "Recommendation: %d\n", int(res.Recommendation))
	fmt.Fprintf(out, "Value0:         %.4f\n", res.Value0)
	fmt.Fprintf(out, "Value1:         %.4f\n", res.Value1)
	fmt.Fprintf(out, "Horizon:        %d\n", res.Horizon)
	fmt.Fprintf(out, "Elapsed:        %dus\n", res.ElapsedUs)
	return nil
}

func recommendRemote(ctx context.Context, addr string, req rpc.RecommendRequest) (rpc.RecommendResult, error) {
	client, err := rpc.NewClient(addr)
	if err != nil {
		return rpc.RecommendResult{}, err
	}
	defer client.Close()
	return client.Recommend(ctx, req)
}

// recommendLocal plans in process. With trust counts the request is planned
// the way the server plans it; otherwise the configured robot is used, which
// also supports state-dependent reward weights.
func recommendLocal(ctx context.Context, cfg *config.Config, req rpc.RecommendRequest) (rpc.RecommendResult, error) {
	logger := logging.New("planner")
	if req.Successes > 0 || req.Failures > 0 {
		return rpc.NewServer(cfg.Robot.Planner, logger).Plan(ctx, req)
	}
	robot, err := sim.BuildRobot(cfg, logger)
	if err != nil {
		return rpc.RecommendResult{}, err
	}
	p, err := robot.Plan(ctx, req.Info)
	if err != nil {
		return rpc.RecommendResult{}, err
	}
	return rpc.RecommendResult{
		Recommendation: p.Recommendation,
		Value0:         p.Value0,
		Value1:         p.Value1,
		Horizon:        p.Horizon,
		ElapsedUs:      p.Elapsed.Microseconds(),
	}, nil
}
