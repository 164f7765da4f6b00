package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-planner/internal/report"
	"github.com/danielpatrickdp/trust-planner/internal/threat"
)

var threatsFlags struct {
	sites   int
	prior   float64
	seed    uint64
	jsonOut bool
}

var threatsCmd = &cobra.Command{
	Use:   "generate-threats",
	Short: "Draw a threat sequence and its post-scan threat levels",
	RunE:  runThreats,
}

func init() {
	f := threatsCmd.Flags()
	f.IntVar(&threatsFlags.sites, "sites", 0, "number of sites (config when 0)")
	f.Float64Var(&threatsFlags.prior, "prior", -1, "prior threat level (config when negative)")
	f.Uint64Var(&threatsFlags.seed, "seed", 0, "generator seed (config when 0)")
	f.BoolVar(&threatsFlags.jsonOut, "json", false, "output as JSON instead of a table")
}

func runThreats(cmd *cobra.Command, _ []string) error {
	cfg, mode, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sites, prior, seed := cfg.Mission.NumSites, cfg.Mission.PriorThreatLevel, cfg.Mission.ThreatSeed
	if threatsFlags.sites > 0 {
		sites = threatsFlags.sites
	}
	if threatsFlags.prior >= 0 {
		prior = threatsFlags.prior
	}
	if threatsFlags.seed != 0 {
		seed = threatsFlags.seed
	}

	th, err := threat.Generate(sites, prior, seed)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if threatsFlags.jsonOut {
		data, err := json.MarshalIndent(th, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, report.Threats(th, mode))
	return nil
}
