// Command partitiond is the admin entry point for the storage manager and
// the pure partition state machine: opening databases under a shared
// configuration, reporting memory and pool usage, and replaying recorded
// command fixtures against the state machine for deterministic-replay
// debugging.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/partitiond/pkg/config"
	"github.com/cuemby/partitiond/pkg/log"
	"github.com/cuemby/partitiond/pkg/rocksdb"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "partitiond",
	Short: "Storage manager and state-machine admin CLI",
	Long: `partitiond exposes the DB Manager and partition state machine for
local operation and testing: opening databases, reporting memory and pool
usage, and replaying recorded command sequences against the state machine.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"partitiond version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./partitiond-data", "Data directory for opened databases")
	rootCmd.PersistentFlags().String("config", "./partitiond.yaml", "Path to the YAML configuration file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(applyFixtureCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadManager loads the configuration named by --config and initializes
// the singleton DB Manager rooted at --data-dir, for subcommands that need
// a live storage manager.
func loadManager(cmd *cobra.Command) (*rocksdb.Manager, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}

	mgr, err := rocksdb.Init(dataDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage manager: %w", err)
	}
	return mgr, nil
}
