// Package report renders missions, runs and replays as terminal or
// Markdown tables.
package report

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/danielpatrickdp/trust-planner/internal/eval"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/replay"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps "table" and "markdown" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "table", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("unknown output format %q", s)
}

func newWriter(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

func rightAligned(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	return cfgs
}

// #region history
// History renders one row per site. Trust columns are left blank for
// robot-only missions.
func History(h state.History, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Site", "Threat", "Rec", "Action", "Health", "Time", "Feedback", "Est. trust"})
	w.SetColumnConfigs(rightAligned(1, 2, 3, 4, 5, 6, 7, 8))
	for i := 0; i < h.Sites(); i++ {
		fb, est := "", ""
		if i < len(h.TrustFeedback) {
			fb = fmt.Sprintf("%.3f", h.TrustFeedback[i])
		}
		if i < len(h.EstimatedTrust) {
			est = fmt.Sprintf("%.3f", h.EstimatedTrust[i])
		}
		w.AppendRow(table.Row{i, h.Threats[i], int(h.Recommendations[i]), int(h.Actions[i]), h.Health[i+1], h.Time[i+1], fb, est})
	}
	if n := len(h.Health); n > 0 {
		w.AppendFooter(table.Row{"", "", "", "final", h.Health[n-1], h.Time[n-1], "", ""})
	}
	return render(w, m)
}

// #endregion history

// #region threats
// Threats renders a generated threat sequence.
func Threats(t state.Threats, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Site", "Threat", "Post-scan level"})
	w.SetColumnConfigs(rightAligned(1, 2, 3))
	for i := range t.Present {
		w.AppendRow(table.Row{i, t.Present[i], fmt.Sprintf("%.4f", t.AfterScan[i])})
	}
	return render(w, m)
}

// #endregion threats

// #region runs
// Runs renders a list of stored runs.
func Runs(runs []state.Run, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Run", "Mode", "Sites", "Prior", "Discount", "Seed", "Created"})
	for _, r := range runs {
		w.AppendRow(table.Row{ShortID(r.RunID), r.Mode, r.Settings.NumSites, r.Settings.PriorThreatLevel,
			r.Settings.DiscountFactor, r.Settings.ThreatSeed, r.CreatedAt.Format("2006-01-02T15:04:05Z")})
	}
	return render(w, m)
}

// Sites renders stored site records next to their provenance rows.
func Sites(sites []state.SiteRecord, entries []logging.ProvenanceEntry, m Mode) string {
	byIndex := make(map[int]logging.ProvenanceEntry, len(entries))
	for _, e := range entries {
		byIndex[e.SiteIndex] = e
	}
	w := newWriter(m)
	w.AppendHeader(table.Row{"Site", "Version", "Level", "Threat", "Rec", "Action", "Health", "Time", "Value0", "Value1", "Transition"})
	w.SetColumnConfigs(rightAligned(1, 3, 4, 5, 6, 7, 8, 9, 10))
	for _, s := range sites {
		e := byIndex[s.SiteIndex]
		w.AppendRow(table.Row{s.SiteIndex, ShortID(s.VersionID), fmt.Sprintf("%.3f", s.ThreatLevel), s.Threat,
			int(s.Recommendation), int(s.Action), s.Health, s.Time,
			fmt.Sprintf("%.4f", e.Value0), fmt.Sprintf("%.4f", e.Value1), e.Transition})
	}
	return render(w, m)
}

// Params renders the robot's estimated trust parameters after each site.
func Params(sites []state.SiteRecord, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Site", "Feedback", "Alpha0", "Beta0", "Ws", "Wf"})
	w.SetColumnConfigs(rightAligned(1, 2, 3, 4, 5, 6))
	for _, s := range sites {
		p := s.EstimatedParams
		w.AppendRow(table.Row{s.SiteIndex, fmt.Sprintf("%.3f", s.TrustFeedback),
			fmt.Sprintf("%.3f", p.Alpha0), fmt.Sprintf("%.3f", p.Beta0), fmt.Sprintf("%.3f", p.Ws), fmt.Sprintf("%.3f", p.Wf)})
	}
	return render(w, m)
}

// #endregion runs

// #region eval
// Eval renders evaluation metrics.
func Eval(r eval.EvalResult, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Metric", "Value", "Pass"})
	w.SetColumnConfigs(rightAligned(2))
	for _, mt := range r.Metrics {
		w.AppendRow(table.Row{mt.Name, fmt.Sprintf("%.4f", mt.Value), mt.Pass})
	}
	w.AppendFooter(table.Row{"result", r.Reason, r.Passed})
	return render(w, m)
}

// #endregion eval

// #region replay
// Replay renders a per-site replay comparison.
func Replay(results []replay.ReplayResult, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Site", "Recorded", "Replayed", "Status", "Reason"})
	for _, r := range results {
		recorded := "-"
		if r.Expected != nil {
			recorded = siteSummary(*r.Expected)
		}
		w.AppendRow(table.Row{r.SiteIndex, recorded, siteSummary(r.Got), r.Status, r.Reason})
	}
	return render(w, m)
}

func siteSummary(s replay.FixtureExpectedSite) string {
	return fmt.Sprintf("rec=%d act=%d h=%d t=%d", s.Recommendation, s.Action, s.Health, s.Time)
}

// #endregion replay

// ShortID truncates IDs for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
