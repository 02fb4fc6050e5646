package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scenarios/cmd/scenarios/ui"
	"scenarios/internal/artifacts"
	"scenarios/internal/config"
)

var dashboardExperiment string

// dashboardCmd browses result artifacts interactively
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse result artifacts from the output bucket",
	Long: `Opens an interactive browser over the experiment/job/region tree of
the output bucket. Files preview in place and download into the local cache;
runs downloaded earlier appear alongside remote ones.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	wd, err := resolveWorkingDir()
	if err != nil {
		return err
	}
	settings, err := config.Load(settingsFile(wd))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := artifacts.New(ctx, settings.Storage)
	if err != nil {
		return err
	}

	prefix := ""
	if dashboardExperiment != "" {
		prefix = dashboardExperiment + "/"
	}
	logger.Info("listing artifacts",
		zap.String("bucket", settings.Storage.Bucket),
		zap.String("prefix", prefix))
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}

	tree := artifacts.BuildTree(keys)
	if _, err := os.Stat(settings.Dashboard.CacheDir); err == nil {
		if err := tree.AppendLocal(settings.Dashboard.CacheDir); err != nil {
			return fmt.Errorf("scanning local cache %s: %w", settings.Dashboard.CacheDir, err)
		}
	}
	if len(tree.Children) == 0 {
		return fmt.Errorf("no artifacts found in bucket %s under %q", settings.Storage.Bucket, prefix)
	}

	model := ui.New(tree, store, settings.Dashboard.CacheDir)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func init() {
	dashboardCmd.Flags().StringVarP(&dashboardExperiment, "experiment", "e", "", "limit browsing to one experiment")
}
