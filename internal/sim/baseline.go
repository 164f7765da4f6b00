package sim

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/planner"
	"github.com/danielpatrickdp/trust-planner/internal/reward"
	"github.com/danielpatrickdp/trust-planner/internal/state"
	"github.com/danielpatrickdp/trust-planner/internal/update"
)

// #region baseline
// RunBaseline flies the mission with the robot acting alone. The robot's
// choice is both recommendation and action; no trust is involved, so the
// feedback and estimate columns of the history stay empty.
func RunBaseline(ctx context.Context, settings state.Settings, threats state.Threats, rs reward.Source, opts Options) (state.History, error) {
	if err := checkMission(settings, threats); err != nil {
		return state.History{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New("sim")
	}
	logger = logger.With("run_id", opts.RunID, "planner", logging.PlannerRobotOnly)

	ro, err := planner.NewRobotOnly(rs, settings)
	if err != nil {
		return state.History{}, err
	}

	hist := state.NewHistory(settings.StartHealth, settings.StartTime)
	last := update.Start(opts.RunID, settings)

	for site := 0; site < settings.NumSites; site++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}
		d, threat := threats.AfterScan[site], threats.Present[site]
		plan, err := ro.Plan(state.RobotInfo{
			Health:           last.Health,
			Time:             last.Time,
			SiteIndex:        site,
			ThreatLevel:      d,
			PriorThreatLevel: settings.PriorThreatLevel,
		})
		if err != nil {
			return hist, fmt.Errorf("baseline site %d: %w", site, err)
		}
		wh, err := rs.WH(last.Health, last.Time)
		if err != nil {
			return hist, fmt.Errorf("baseline site %d: %w", site, err)
		}
		perf := performance.Score(float64(threat), plan.Recommendation, wh)

		res, err := update.Apply(last, update.Outcome{
			ThreatLevel:    d,
			Threat:         threat,
			Recommendation: plan.Recommendation,
			Action:         plan.Recommendation,
			Performance:    perf,
		})
		if err != nil {
			return hist, fmt.Errorf("baseline site %d: %w", site, err)
		}
		if opts.Recorder != nil {
			if err := opts.Recorder.RecordSite(res.NewRecord, provenance(res, plan, logging.PlannerRobotOnly)); err != nil {
				return hist, fmt.Errorf("baseline site %d: %w", site, err)
			}
		}

		hist.Health = append(hist.Health, res.NewRecord.Health)
		hist.Time = append(hist.Time, res.NewRecord.Time)
		hist.Recommendations = append(hist.Recommendations, plan.Recommendation)
		hist.Actions = append(hist.Actions, plan.Recommendation)
		hist.Threats = append(hist.Threats, threat)
		hist.Performance = append(hist.Performance, perf)
		last = res.NewRecord

		logger.Info("site complete",
			"site", site,
			"threat_level", d,
			"threat", threat,
			"action", int(plan.Recommendation),
			"transition", res.Decision.Action)
	}
	return hist, nil
}

// #endregion baseline
