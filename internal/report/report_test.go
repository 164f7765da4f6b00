package report

import (
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/trust-planner/internal/eval"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/replay"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

func history() state.History {
	return state.History{
		Health:          []int{100, 90, 90},
		Time:            []int{0, 0, 10},
		Recommendations: []state.Action{0, 1},
		Actions:         []state.Action{0, 1},
		TrustFeedback:   []float64{0.25, 0.5},
		Threats:         []int{1, 0},
		Performance:     []int{0, 1},
		EstimatedTrust:  []float64{0.3, 0.45},
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ASCII, "table": ASCII, "markdown": Markdown, "md": Markdown} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("html"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestHistoryTable(t *testing.T) {
	out := History(history(), ASCII)
	for _, want := range []string{"SITE", "EST. TRUST", "0.250", "0.450", "FINAL"} {
		if !strings.Contains(strings.ToUpper(out), want) {
			t.Errorf("history table missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryTableBaseline(t *testing.T) {
	h := history()
	h.TrustFeedback, h.EstimatedTrust = nil, nil
	out := History(h, Markdown)
	if !strings.Contains(out, "|") {
		t.Fatalf("expected markdown table:\n%s", out)
	}
	if strings.Contains(out, "0.250") {
		t.Fatalf("baseline table shows feedback:\n%s", out)
	}
}

func TestThreatsTable(t *testing.T) {
	out := Threats(state.Threats{Present: []int{1, 0}, AfterScan: []float64{0.875, 0.125}}, Markdown)
	for _, want := range []string{"0.8750", "0.1250", "| 1 "} {
		if !strings.Contains(out, want) {
			t.Errorf("threats table missing %q:\n%s", want, out)
		}
	}
}

func TestRunsAndSites(t *testing.T) {
	runs := []state.Run{{RunID: "0123456789abcdef", Mode: "team", Settings: state.Settings{NumSites: 3}, CreatedAt: time.Unix(0, 0).UTC()}}
	out := Runs(runs, ASCII)
	if !strings.Contains(out, "01234567") || strings.Contains(out, "89abcdef") {
		t.Fatalf("run id not shortened:\n%s", out)
	}

	sites := []state.SiteRecord{{SiteIndex: 0, VersionID: "v-0000000001", ThreatLevel: 0.9, Threat: 1, Health: 90}}
	entries := []logging.ProvenanceEntry{{SiteIndex: 0, Value0: -0.675, Value1: -0.25, Transition: "health_loss"}}
	out = Sites(sites, entries, ASCII)
	for _, want := range []string{"-0.6750", "-0.2500", "health_loss", "0.900"} {
		if !strings.Contains(out, want) {
			t.Errorf("sites table missing %q:\n%s", want, out)
		}
	}
}

func TestParamsTable(t *testing.T) {
	sites := []state.SiteRecord{{SiteIndex: 2, TrustFeedback: 0.6, EstimatedParams: state.TrustParams{Alpha0: 12.5, Beta0: 48, Ws: 9.25, Wf: 21}}}
	out := Params(sites, ASCII)
	for _, want := range []string{"12.500", "48.000", "9.250", "21.000", "0.600"} {
		if !strings.Contains(out, want) {
			t.Errorf("params table missing %q:\n%s", want, out)
		}
	}
}

func TestEvalAndReplayTables(t *testing.T) {
	res := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(history())
	out := Eval(res, ASCII)
	if !strings.Contains(out, "final_health") || !strings.Contains(strings.ToUpper(out), "ALL CHECKS PASSED") {
		t.Fatalf("eval table:\n%s", out)
	}

	exp := replay.FixtureExpectedSite{SiteIndex: 0, Recommendation: 1, Action: 1, Health: 100, Time: 10}
	results := []replay.ReplayResult{
		{SiteIndex: 0, Status: "drift", Reason: "recommendation 0, recorded 1", Expected: &exp, Got: replay.FixtureExpectedSite{Health: 90}},
		{SiteIndex: 1, Status: "unchecked"},
	}
	out = Replay(results, ASCII)
	for _, want := range []string{"rec=1 act=1 h=100 t=10", "drift", "unchecked"} {
		if !strings.Contains(out, want) {
			t.Errorf("replay table missing %q:\n%s", want, out)
		}
	}
}
