// Package sim runs missions: the robot recommends, the simulated human acts,
// both update their trust, and the site transition is applied.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/danielpatrickdp/trust-planner/internal/human"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/planner"
	"github.com/danielpatrickdp/trust-planner/internal/state"
	"github.com/danielpatrickdp/trust-planner/internal/update"
)

// #region phase
// Phase is the mission lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSiteInProgress
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSiteInProgress:
		return "site_in_progress"
	case PhaseComplete:
		return "complete"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// #endregion phase

// #region options
// Options carries the optional collaborators of a mission.
type Options struct {
	RunID    string
	Recorder Recorder
	Logger   *slog.Logger
}

// StepResult describes one completed site.
type StepResult struct {
	Record   state.SiteRecord
	Plan     planner.Plan
	Decision update.Decision
	Metrics  update.Metrics
}

// #endregion options

// #region simulation
// Simulation is a team mission over a fixed threat sequence.
// It is not safe for concurrent use.
type Simulation struct {
	settings state.Settings
	threats  state.Threats
	human    *human.Human
	robot    *planner.Robot
	recorder Recorder
	runID    string
	logger   *slog.Logger

	phase   Phase
	last    state.SiteRecord
	history state.History
	err     error
}

// New prepares a mission. threats must cover every site.
func New(settings state.Settings, threats state.Threats, h *human.Human, r *planner.Robot, opts Options) (*Simulation, error) {
	if err := checkMission(settings, threats); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New("sim")
	}
	return &Simulation{
		settings: settings,
		threats:  threats,
		human:    h,
		robot:    r,
		recorder: opts.Recorder,
		runID:    opts.RunID,
		logger:   logger.With("run_id", opts.RunID),
		last:     update.Start(opts.RunID, settings),
		history:  state.NewHistory(settings.StartHealth, settings.StartTime),
	}, nil
}

// Phase returns the current lifecycle state.
func (s *Simulation) Phase() Phase { return s.phase }

// Err returns the error that aborted the mission, if any.
func (s *Simulation) Err() error { return s.err }

// Last returns the record of the most recent site, or the start record.
func (s *Simulation) Last() state.SiteRecord { return s.last }

// #endregion simulation

// #region step
// Step plays the next site. After the last site it returns
// ErrMissionComplete; after a failure it keeps returning that failure.
func (s *Simulation) Step(ctx context.Context) (StepResult, error) {
	if s.err != nil {
		return StepResult{}, s.err
	}
	if s.phase == PhaseComplete {
		return StepResult{}, state.ErrMissionComplete
	}
	if s.phase == PhaseIdle {
		if s.recorder != nil {
			if err := s.recorder.RecordStart(s.runID, s.human.Params(), s.robot.Model().Params()); err != nil {
				return StepResult{}, s.fail(-1, err)
			}
		}
		s.phase = PhaseSiteInProgress
	}

	site := s.last.SiteIndex + 1
	d, threat := s.threats.AfterScan[site], s.threats.Present[site]

	ri := state.RobotInfo{
		Health:           s.last.Health,
		Time:             s.last.Time,
		SiteIndex:        site,
		ThreatLevel:      d,
		PriorThreatLevel: s.settings.PriorThreatLevel,
	}
	plan, err := s.robot.Plan(ctx, ri)
	if err != nil {
		return StepResult{}, s.fail(site, err)
	}

	hi := state.HumanInfo{
		Health:         s.last.Health,
		Time:           s.last.Time,
		SiteIndex:      site,
		ThreatLevel:    d,
		Recommendation: plan.Recommendation,
	}
	action, err := s.human.ChooseAction(hi)
	if err != nil {
		return StepResult{}, s.fail(site, err)
	}

	obs := state.Observation{Threat: threat, Action: action}
	perf, err := s.human.Observe(hi, obs)
	if err != nil {
		return StepResult{}, s.fail(site, err)
	}
	feedback := s.human.TrustSample()
	obs = obs.WithFeedback(feedback)

	_, params, err := s.robot.Observe(hi, obs)
	if err != nil {
		return StepResult{}, s.fail(site, err)
	}

	res, err := update.Apply(s.last, update.Outcome{
		ThreatLevel:     d,
		Threat:          threat,
		Recommendation:  plan.Recommendation,
		Action:          action,
		Performance:     perf,
		TrustFeedback:   feedback,
		EstimatedParams: params,
	})
	if err != nil {
		return StepResult{}, s.fail(site, err)
	}

	if s.recorder != nil {
		entry := provenance(res, plan, logging.PlannerRobot)
		if err := s.recorder.RecordSite(res.NewRecord, entry); err != nil {
			return StepResult{}, s.fail(site, err)
		}
	}

	s.history.Health = append(s.history.Health, res.NewRecord.Health)
	s.history.Time = append(s.history.Time, res.NewRecord.Time)
	s.history.Recommendations = append(s.history.Recommendations, plan.Recommendation)
	s.history.Actions = append(s.history.Actions, action)
	s.history.TrustFeedback = append(s.history.TrustFeedback, feedback)
	s.history.Threats = append(s.history.Threats, threat)
	s.history.Performance = append(s.history.Performance, perf)
	s.history.EstimatedTrust = append(s.history.EstimatedTrust, s.robot.Model().TrustMean())
	s.history.EstimatedParams = append(s.history.EstimatedParams, params)

	s.last = res.NewRecord
	if site+1 == s.settings.NumSites {
		s.phase = PhaseComplete
	}

	s.logger.Info("site complete",
		"site", site,
		"threat_level", d,
		"threat", threat,
		"recommendation", int(plan.Recommendation),
		"action", int(action),
		"transition", res.Decision.Action,
		"health", res.NewRecord.Health,
		"time", res.NewRecord.Time,
		"feedback", feedback)

	return StepResult{Record: res.NewRecord, Plan: plan, Decision: res.Decision, Metrics: res.Metrics}, nil
}

// Run steps until the mission completes or fails, checking ctx between sites.
func (s *Simulation) Run(ctx context.Context) (state.History, error) {
	for s.phase != PhaseComplete {
		if err := ctx.Err(); err != nil {
			return s.History(), err
		}
		if _, err := s.Step(ctx); err != nil {
			return s.History(), err
		}
	}
	return s.History(), nil
}

func (s *Simulation) fail(site int, err error) error {
	s.err = fmt.Errorf("mission site %d: %w", site, err)
	s.logger.Error("mission aborted", "site", site, "error", err)
	return s.err
}

// #endregion step

// #region history
// History returns a copy of the per-site history so far.
func (s *Simulation) History() state.History {
	return cloneHistory(s.history)
}

func cloneHistory(h state.History) state.History {
	return state.History{
		Health:          slices.Clone(h.Health),
		Time:            slices.Clone(h.Time),
		Recommendations: slices.Clone(h.Recommendations),
		Actions:         slices.Clone(h.Actions),
		TrustFeedback:   slices.Clone(h.TrustFeedback),
		Threats:         slices.Clone(h.Threats),
		Performance:     slices.Clone(h.Performance),
		EstimatedTrust:  slices.Clone(h.EstimatedTrust),
		EstimatedParams: slices.Clone(h.EstimatedParams),
	}
}

// #endregion history

// #region helpers
func checkMission(settings state.Settings, threats state.Threats) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("new mission: %w", err)
	}
	if threats.Len() < settings.NumSites || len(threats.AfterScan) < settings.NumSites {
		return fmt.Errorf("new mission: %d threats for %d sites: %w", threats.Len(), settings.NumSites, state.ErrValidation)
	}
	return nil
}

func provenance(res update.UpdateResult, plan planner.Plan, who string) logging.ProvenanceEntry {
	return logging.ProvenanceEntry{
		RunID:          res.NewRecord.RunID,
		SiteIndex:      res.NewRecord.SiteIndex,
		Planner:        who,
		Recommendation: int(res.NewRecord.Recommendation),
		Action:         int(res.NewRecord.Action),
		Transition:     res.Decision.Action,
		Value0:         plan.Value0,
		Value1:         plan.Value1,
		ElapsedUs:      plan.Elapsed.Microseconds(),
		Reason:         res.Decision.Reason,
		CreatedAt:      res.NewRecord.CreatedAt,
	}
}

// #endregion helpers
