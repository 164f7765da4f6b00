package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/trust-planner/internal/config"
	"github.com/danielpatrickdp/trust-planner/internal/replay"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to trust_planner.db")
	runID := flag.String("run", "", "run ID to export (most recent run when empty)")
	configPath := flag.String("config", "", "YAML config supplying agent settings")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--run id] [--config cfg.yaml]")
		os.Exit(2)
	}

	if err := run(*dbPath, *runID, *configPath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, runID, configPath, outPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if runID == "" {
		runs, err := store.ListRuns(1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs in %s", dbPath)
		}
		runID = runs[0].RunID
	}

	f, err := replay.FromRun(store, runID, cfg)
	if err != nil {
		return err
	}
	if err := f.Save(outPath); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%s run %s, %d sites)\n", outPath, f.Mode, f.RunID, len(f.Expected))
	return nil
}

// #endregion extract
