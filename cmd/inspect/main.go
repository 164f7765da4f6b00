package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/report"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to trust_planner.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show a single run in detail")
	format := flag.String("format", "table", "table format: table or markdown")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/trust_planner.db [--last N] [--run id] [--format table|markdown] [--json]")
		os.Exit(2)
	}
	mode, err := report.ParseMode(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *runID != "" {
		err = runDetailMode(store, *runID, mode, *jsonOut)
	} else {
		err = runListMode(store, *last, mode, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID     string  `json:"run_id"`
	Mode      string  `json:"mode"`
	NumSites  int     `json:"num_sites"`
	Prior     float64 `json:"prior_threat_level"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(store *state.Store, last int, mode report.Mode, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	if jsonOut {
		rows := make([]listRow, len(runs))
		for i, r := range runs {
			rows[i] = listRow{
				RunID:     r.RunID,
				Mode:      r.Mode,
				NumSites:  r.Settings.NumSites,
				Prior:     r.Settings.PriorThreatLevel,
				CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
			}
		}
		return printJSON(rows)
	}
	fmt.Println(report.Runs(runs, mode))
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run        state.Run                 `json:"run"`
	HumanStart *state.TrustParams        `json:"human_start,omitempty"`
	RobotStart *state.TrustParams        `json:"robot_start,omitempty"`
	Sites      []state.SiteRecord        `json:"sites"`
	Provenance []logging.ProvenanceEntry `json:"provenance"`
}

func runDetailMode(store *state.Store, runID string, mode report.Mode, jsonOut bool) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	sites, err := store.ListSites(run.RunID)
	if err != nil {
		return err
	}
	entries, err := logging.ListDecisions(store.DB(), run.RunID)
	if err != nil {
		return err
	}
	out := detailOutput{Run: run, Sites: sites, Provenance: entries}
	// Baseline runs store no trust parameters.
	if p, err := store.LoadParams(run.RunID, -1, state.OwnerHuman); err == nil {
		out.HumanStart = &p
	}
	if p, err := store.LoadParams(run.RunID, -1, state.OwnerRobot); err == nil {
		out.RobotStart = &p
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:      %s\n", run.RunID)
	fmt.Printf("Mode:     %s\n", run.Mode)
	fmt.Printf("Created:  %s\n", run.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Sites:    %d of %d\n", len(sites), run.Settings.NumSites)
	fmt.Printf("Prior:    %.3f  Discount: %.3f  Seed: %d\n",
		run.Settings.PriorThreatLevel, run.Settings.DiscountFactor, run.Settings.ThreatSeed)
	if out.HumanStart != nil {
		printParams("Human", *out.HumanStart)
	}
	if out.RobotStart != nil {
		printParams("Robot", *out.RobotStart)
	}

	fmt.Println()
	fmt.Println(report.Sites(sites, entries, mode))
	if run.Mode != "baseline" && len(sites) > 0 {
		fmt.Printf("\nEstimated trust parameters:\n")
		fmt.Println(report.Params(sites, mode))
	}
	return nil
}

// #endregion detail-mode

// #region output

func printParams(who string, p state.TrustParams) {
	fmt.Printf("%-9s alpha0=%.3f beta0=%.3f ws=%.3f wf=%.3f\n", who+":", p.Alpha0, p.Beta0, p.Ws, p.Wf)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
