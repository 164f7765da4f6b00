package state

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSettings() Settings {
	return Settings{
		NumSites:         3,
		StartHealth:      100,
		StartTime:        0,
		PriorThreatLevel: 0.7,
		DiscountFactor:   0.7,
		ThreatSeed:       123,
	}
}

func testThreats() Threats {
	return Threats{Present: []int{1, 0, 1}, AfterScan: []float64{0.91, 0.12, 0.85}}
}

func TestCreateAndGetRun(t *testing.T) {
	s := tempDB(t)

	run, err := s.CreateRun("team", testSettings(), testThreats())
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.RunID == "" {
		t.Fatal("expected non-empty run ID")
	}

	got, err := s.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Settings != testSettings() {
		t.Fatalf("settings mismatch: %+v", got.Settings)
	}
	if got.Threats.Len() != 3 || got.Threats.AfterScan[2] != 0.85 {
		t.Fatalf("threats mismatch: %+v", got.Threats)
	}
	if got.Mode != "team" {
		t.Fatalf("expected mode team, got %s", got.Mode)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetRun("nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestCommitAndListSites(t *testing.T) {
	s := tempDB(t)
	run, err := s.CreateRun("team", testSettings(), testThreats())
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	p := TrustParams{Alpha0: 12.5, Beta0: 48.25, Ws: 9.75, Wf: 21.125}
	first := SiteRecord{
		VersionID:       "site-0",
		RunID:           run.RunID,
		SiteIndex:       0,
		Health:          90,
		Time:            0,
		ThreatLevel:     0.91,
		Threat:          1,
		Recommendation:  ActionProtect,
		Action:          ActionSkip,
		Performance:     1,
		TrustFeedback:   0.4,
		EstimatedParams: p,
	}
	second := first
	second.VersionID = "site-1"
	second.ParentID = "site-0"
	second.SiteIndex = 1
	second.Time = 10

	for _, rec := range []SiteRecord{first, second} {
		if err := s.CommitSite(rec); err != nil {
			t.Fatalf("CommitSite %s: %v", rec.VersionID, err)
		}
	}

	sites, err := s.ListSites(run.RunID)
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(sites))
	}
	if sites[1].ParentID != "site-0" {
		t.Fatalf("expected parent site-0, got %q", sites[1].ParentID)
	}
	if sites[0].EstimatedParams != p {
		t.Fatalf("params round trip mismatch: %+v", sites[0].EstimatedParams)
	}
	if sites[0].Action != ActionSkip || sites[0].Recommendation != ActionProtect {
		t.Fatalf("actions mismatch: %+v", sites[0])
	}
}

func TestCommitSiteDuplicateIndex(t *testing.T) {
	s := tempDB(t)
	run, _ := s.CreateRun("team", testSettings(), testThreats())

	rec := SiteRecord{VersionID: "a", RunID: run.RunID, SiteIndex: 0, EstimatedParams: TrustParams{1, 1, 1, 1}}
	if err := s.CommitSite(rec); err != nil {
		t.Fatalf("CommitSite: %v", err)
	}
	rec.VersionID = "b"
	if err := s.CommitSite(rec); err == nil {
		t.Fatal("expected unique constraint error on same site index")
	}
}

func TestSaveAndLoadParams(t *testing.T) {
	s := tempDB(t)
	run, _ := s.CreateRun("team", testSettings(), testThreats())

	p := TrustParams{Alpha0: 10, Beta0: 50, Ws: 10, Wf: 20}
	if err := s.SaveParams(run.RunID, -1, OwnerHuman, p); err != nil {
		t.Fatalf("SaveParams: %v", err)
	}
	got, err := s.LoadParams(run.RunID, -1, OwnerHuman)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if got != p {
		t.Fatalf("expected %+v, got %+v", p, got)
	}

	if _, err := s.LoadParams(run.RunID, -1, OwnerRobot); err == nil {
		t.Fatal("expected error for missing owner snapshot")
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	s.CreateRun("team", testSettings(), testThreats())
	s.CreateRun("baseline", testSettings(), testThreats())

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := tempDB(t)
	var ids []string
	for i := 0; i < 6; i++ {
		run, err := s.CreateRun("team", testSettings(), testThreats())
		if err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		ids = append(ids, run.RunID)
	}

	runs, err := s.ListRuns(4)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(runs))
	}
	for i, run := range runs {
		if want := ids[len(ids)-1-i]; run.RunID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, run.RunID)
		}
	}
}

func TestTimeLayoutSortsAsText(t *testing.T) {
	whole := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := whole.Add(500 * time.Millisecond)
	a, b := whole.Format(timeLayout), later.Format(timeLayout)
	if len(a) != len(b) || a >= b {
		t.Fatalf("expected %q < %q at equal width", a, b)
	}
	parsed, err := time.Parse(time.RFC3339Nano, b)
	if err != nil || !parsed.Equal(later) {
		t.Fatalf("parse %q: %v %v", b, parsed, err)
	}
}

func TestCommitSiteWithoutEstimate(t *testing.T) {
	s := tempDB(t)
	run, _ := s.CreateRun("baseline", testSettings(), testThreats())

	rec := SiteRecord{VersionID: "b0", RunID: run.RunID, SiteIndex: 0, Health: 100, ThreatLevel: 0.91, Action: ActionProtect}
	if err := s.CommitSite(rec); err != nil {
		t.Fatalf("CommitSite: %v", err)
	}
	if _, err := s.LoadParams(run.RunID, 0, OwnerRobot); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no robot snapshot, got %v", err)
	}

	sites, err := s.ListSites(run.RunID)
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 1 || sites[0].EstimatedParams != (TrustParams{}) {
		t.Fatalf("expected one site without params, got %+v", sites)
	}
}

func TestTrustParamsRoundTrip(t *testing.T) {
	p := TrustParams{Alpha0: 1.0 / 3.0, Beta0: 97.123456789, Ws: 0.1, Wf: 199.999}
	if got := DecodeTrustParams(EncodeTrustParams(p)); got != p {
		t.Fatalf("mismatch: %+v != %+v", got, p)
	}
}

func TestTrustParamsValidate(t *testing.T) {
	if err := (TrustParams{10, 50, 10, 20}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := TrustParams{10, 0, 10, 20}.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero sites", func(s *Settings) { s.NumSites = 0 }},
		{"too many sites", func(s *Settings) { s.NumSites = MaxSites + 1 }},
		{"negative health", func(s *Settings) { s.StartHealth = -10 }},
		{"health above max", func(s *Settings) { s.StartHealth = 110 }},
		{"negative time", func(s *Settings) { s.StartTime = -1 }},
		{"prior above 1", func(s *Settings) { s.PriorThreatLevel = 1.2 }},
		{"discount below 0", func(s *Settings) { s.DiscountFactor = -0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testSettings()
			tc.mutate(&s)
			if err := s.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if err := testSettings().Validate(); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}
