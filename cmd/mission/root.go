// mission runs trust-aware reconnaissance missions from the command line.
//
// Usage:
//
//	mission run [--config path] [--persist=false] [--db path]
//	mission baseline [--config path] [--persist=false]
//	mission generate-threats [--sites N] [--prior p] [--seed s]
//	mission recommend --site i --level d [--health h] [--time t] [--remote addr]
//	mission config [--out path]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-planner/internal/config"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/report"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	dbPath     string
	format     string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "mission",
	Short: "Trust-aware recommendation planning for human-robot missions",
	Long: "mission flies simulated reconnaissance missions in which a robot recommends\n" +
		"whether to use a protective measure at each site and a simulated human decides.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "YAML config file (defaults when empty or missing)")
	f.StringVar(&rootFlags.dbPath, "db", "", "SQLite database path (overrides config)")
	f.StringVar(&rootFlags.format, "format", "table", "output format: table or markdown")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(threatsCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.Version = version
}

// loadConfig reads the config, applies flag overrides and sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Config, report.Mode, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, 0, err
	}
	if rootFlags.dbPath != "" {
		cfg.Storage.DBPath = rootFlags.dbPath
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, 0, err
	}
	if err := logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return nil, 0, err
	}

	mode, err := report.ParseMode(rootFlags.format)
	if err != nil {
		return nil, 0, err
	}
	return cfg, mode, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
