// Package main implements the scenarios CLI: preparing per-region experiment
// configs, launching them on the batch service, and browsing result
// artifacts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose      bool
	workingDir   string
	settingsPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "scenarios - batch epidemiological experiment toolkit",
	Long: `scenarios prepares, launches, and visualizes batch
epidemiological-simulation experiments.

An experiment is a directory holding template configs, numbered
postprocessing scripts, and one subdirectory per modeled region. The toolkit
materializes per-region configs from the templates, submits one compute task
per region (plus dependent postprocessing stages) to the batch service, and
browses the result artifacts written to cloud storage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// resolveWorkingDir honors --workdir and falls back to the process cwd.
func resolveWorkingDir() (string, error) {
	if workingDir != "" {
		return workingDir, nil
	}
	return os.Getwd()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workingDir, "workdir", "w", "", "working area containing experiments (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "path to the toolkit settings yaml (default: scenarios.yaml in the working area)")

	rootCmd.AddCommand(createCmd, launchCmd, regionsCmd, dashboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
