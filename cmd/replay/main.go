package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/trust-planner/internal/config"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/replay"
	"github.com/danielpatrickdp/trust-planner/internal/report"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to trust_planner.db (DB mode)")
	runID := flag.String("run", "", "run ID to replay (DB mode)")
	configPath := flag.String("config", "", "YAML config supplying agent settings (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	format := flag.String("format", "table", "output format: table or markdown")
	flag.Parse()

	dbMode := *dbPath != "" && *runID != ""
	if dbMode == (*fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/trust_planner.db --run <run-id> [--config cfg.yaml]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}
	mode, err := report.ParseMode(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, err := logging.ParseLevel(os.Getenv(config.EnvLogLevel))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logging.Init(level, os.Getenv(config.EnvLogFormat), nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var f *replay.Fixture
	if dbMode {
		f, err = fixtureFromDB(*dbPath, *runID, *configPath)
	} else {
		f, err = replay.LoadFixture(*fixturePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}
	os.Exit(run(f, mode))
}

// #endregion main

// #region db-extract

func fixtureFromDB(dbPath, runID, configPath string) (*replay.Fixture, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return replay.FromRun(store, runID, cfg)
}

// #endregion db-extract

// #region output

// run replays the fixture and prints the comparison. Exit code 1 on drift or
// a failed evaluation.
func run(f *replay.Fixture, mode report.Mode) int {
	results, hist, err := replay.Replay(context.Background(), f, logging.New("replay"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	sum := replay.Summarize(results, hist, f.Eval)

	if f.Description != "" {
		fmt.Println(f.Description)
	}
	fmt.Println(report.Replay(results, mode))
	fmt.Println(report.Eval(sum.Eval, mode))
	fmt.Printf("\nSummary: %d total, %d match, %d drift, %d unchecked\n",
		sum.TotalSites, sum.Matches, sum.Drifts, sum.Unchecked)
	if sum.FirstDrift >= 0 {
		fmt.Printf("First drift at site %d\n", sum.FirstDrift)
	}

	if sum.Drifts > 0 || !sum.Eval.Passed {
		return 1
	}
	return 0
}

// #endregion output
