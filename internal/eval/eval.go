// Package eval scores finished missions and checks their histories for
// consistency with the site transition rules.
package eval

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region eval-harness
// EvalHarness evaluates mission histories.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks a history and reports mission metrics. Consistency failures
// always fail the mission; compliance is informational.
func (h *EvalHarness) Run(hist state.History) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Consistency
	bad := inconsistentSites(hist)
	check("inconsistent_sites", float64(len(bad)), len(bad) == 0,
		fmt.Sprintf("%d sites break the transition rules, first at %d", len(bad), first(bad)))

	n := hist.Sites()
	if n == 0 {
		return EvalResult{Passed: len(failReasons) == 0, Metrics: metrics, Reason: "empty mission"}
	}

	// 2. Outcome
	finalHealth := hist.Health[len(hist.Health)-1]
	check("final_health", float64(finalHealth), finalHealth >= h.config.MinFinalHealth,
		fmt.Sprintf("final health %d below %d", finalHealth, h.config.MinFinalHealth))

	spent := hist.Time[len(hist.Time)-1] - hist.Time[0]
	check("time_spent", float64(spent), h.config.MaxTimeSpent == 0 || spent <= h.config.MaxTimeSpent,
		fmt.Sprintf("time spent %d exceeds %d", spent, h.config.MaxTimeSpent))

	var threats int
	for _, t := range hist.Threats {
		threats += t
	}
	metrics = append(metrics, EvalMetric{Name: "threats_faced", Value: float64(threats), Pass: true})

	// 3. Trust tracking, team missions only
	if len(hist.EstimatedTrust) == n && len(hist.TrustFeedback) == n {
		trackErr := floats.Distance(hist.EstimatedTrust, hist.TrustFeedback, 1) / float64(n)
		check("trust_tracking_error", trackErr, trackErr <= h.config.MaxTrackingError,
			fmt.Sprintf("trust tracking error %.4f exceeds %.4f", trackErr, h.config.MaxTrackingError))
		metrics = append(metrics, EvalMetric{Name: "mean_feedback", Value: stat.Mean(hist.TrustFeedback, nil), Pass: true})
	}

	// 4. Compliance: informational, does not fail
	var agreed int
	for i, a := range hist.Actions {
		if a == hist.Recommendations[i] {
			agreed++
		}
	}
	compliance := float64(agreed) / float64(n)
	metrics = append(metrics, EvalMetric{Name: "compliance", Value: compliance, Pass: compliance >= h.config.MinCompliance})

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}
	return EvalResult{Passed: len(failReasons) == 0, Metrics: metrics, Reason: reason}
}

// #endregion eval-harness

// #region helpers
// inconsistentSites lists sites whose recorded health and time do not follow
// from the action and threat, or whose columns are malformed.
func inconsistentSites(h state.History) []int {
	n := h.Sites()
	if len(h.Health) != n+1 || len(h.Time) != n+1 || len(h.Threats) != n || len(h.Recommendations) != n {
		return []int{-1}
	}
	var bad []int
	for i := 0; i < n; i++ {
		wantH, wantT := h.Health[i], h.Time[i]
		switch {
		case h.Actions[i] == state.ActionProtect:
			wantT += state.TimeStep
		case h.Threats[i] == 1:
			wantH = max(0, wantH-state.HealthStep)
		}
		ok := h.Actions[i].Valid() && h.Recommendations[i].Valid() &&
			h.Health[i+1] == wantH && h.Time[i+1] == wantT
		if i < len(h.TrustFeedback) {
			f := h.TrustFeedback[i]
			ok = ok && f >= 0 && f <= 1 && !math.IsNaN(f)
		}
		if i < len(h.EstimatedParams) {
			ok = ok && h.EstimatedParams[i].Validate() == nil
		}
		if !ok {
			bad = append(bad, i)
		}
	}
	return bad
}

func first(xs []int) int {
	if len(xs) == 0 {
		return -1
	}
	return xs[0]
}

// #endregion helpers
