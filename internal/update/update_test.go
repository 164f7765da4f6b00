package update

import (
	"errors"
	"testing"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

func startRecord() state.SiteRecord {
	rec := Start("run-1", state.Settings{NumSites: 3, StartHealth: 100, StartTime: 20})
	rec.VersionID = "root"
	return rec
}

func TestApplyTransitions(t *testing.T) {
	cases := []struct {
		name       string
		action     state.Action
		threat     int
		wantHealth int
		wantTime   int
		wantAction string
	}{
		{"skip, clear", state.ActionSkip, 0, 100, 20, "no_loss"},
		{"skip, threat", state.ActionSkip, 1, 90, 20, "health_loss"},
		{"protect, clear", state.ActionProtect, 0, 100, 30, "time_loss"},
		{"protect, threat", state.ActionProtect, 1, 100, 30, "time_loss"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Apply(startRecord(), Outcome{Action: tc.action, Threat: tc.threat})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if res.NewRecord.Health != tc.wantHealth || res.NewRecord.Time != tc.wantTime {
				t.Fatalf("expected (%d,%d), got (%d,%d)", tc.wantHealth, tc.wantTime, res.NewRecord.Health, res.NewRecord.Time)
			}
			if res.Decision.Action != tc.wantAction {
				t.Fatalf("expected %s, got %s", tc.wantAction, res.Decision.Action)
			}
		})
	}
}

func TestApplyChainsVersions(t *testing.T) {
	old := startRecord()
	res, err := Apply(old, Outcome{Action: state.ActionSkip})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.NewRecord.VersionID == old.VersionID || res.NewRecord.VersionID == "" {
		t.Fatal("new record should have a fresh version ID")
	}
	if res.NewRecord.ParentID != old.VersionID {
		t.Fatalf("expected parent %s, got %s", old.VersionID, res.NewRecord.ParentID)
	}
	if res.NewRecord.SiteIndex != 0 || res.NewRecord.RunID != "run-1" {
		t.Fatalf("unexpected site/run: %d %s", res.NewRecord.SiteIndex, res.NewRecord.RunID)
	}

	next, err := Apply(res.NewRecord, Outcome{Action: state.ActionProtect})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.NewRecord.SiteIndex != 1 || next.NewRecord.ParentID != res.NewRecord.VersionID {
		t.Fatalf("second record not chained: %+v", next.NewRecord)
	}
}

func TestApplyClampsHealthAtZero(t *testing.T) {
	old := startRecord()
	old.Health = 5
	res, err := Apply(old, Outcome{Action: state.ActionSkip, Threat: 1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.NewRecord.Health != 0 || !res.Metrics.HealthFloor {
		t.Fatalf("expected clamped health, got %d floor=%v", res.NewRecord.Health, res.Metrics.HealthFloor)
	}
	if res.Metrics.HealthDelta != -5 {
		t.Fatalf("expected delta -5, got %d", res.Metrics.HealthDelta)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	old := startRecord()
	before := old
	if _, err := Apply(old, Outcome{Action: state.ActionSkip, Threat: 1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if old != before {
		t.Fatal("Apply mutated its input")
	}
}

func TestApplyValidation(t *testing.T) {
	if _, err := Apply(startRecord(), Outcome{Action: 2}); !errors.Is(err, state.ErrValidation) {
		t.Fatalf("expected ErrValidation for action, got %v", err)
	}
	if _, err := Apply(startRecord(), Outcome{Threat: -1}); !errors.Is(err, state.ErrValidation) {
		t.Fatalf("expected ErrValidation for threat, got %v", err)
	}
}
