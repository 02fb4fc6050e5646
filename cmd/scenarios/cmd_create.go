package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scenarios/internal/experiment"
	"scenarios/internal/regions"
)

var (
	createExperimentName string
	createStates         []string
	createTemplates      []string
	createClearExisting  bool
)

// createCmd materializes per-region configs for an experiment
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an experiment and materialize its per-region configs",
	Long: `Ensures the experiment directory layout exists, then copies each
template config into every selected region's subdirectory, rewriting the
region identity and rescaling population-dependent values.

Regions are given as codes (--states CA,TX,hhs4,US) or selector keywords:
  all         every catalog record
  50states    the fifty states
  hhsregions  the ten HHS region aggregates
List flags take comma-separated values or may be repeated; space-separated
values after the flag are not collected.

The experiment is looked up in the working area, then under exp/. A missing
experiment is created under exp/.`,
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	wd, err := resolveWorkingDir()
	if err != nil {
		return err
	}
	catalog, err := regions.Load()
	if err != nil {
		return fmt.Errorf("loading region catalog: %w", err)
	}
	codes := catalog.ExpandSelectors(createStates)
	logger.Debug("expanded region selection",
		zap.Strings("selectors", createStates),
		zap.Int("regions", len(codes)))

	expDir, err := experiment.ResolvePath(createExperimentName, wd)
	if errors.Is(err, experiment.ErrNotFound) {
		expDir = filepath.Join(wd, "exp", createExperimentName)
		logger.Info("experiment not found, creating it", zap.String("path", expDir))
	} else if err != nil {
		return err
	}

	created, err := experiment.EnsureLayout(expDir, experiment.RequiredDirs)
	if err != nil {
		return err
	}
	for _, path := range created {
		logger.Warn("created missing experiment component", zap.String("path", path))
	}
	if err := experiment.ValidateLayout(expDir, experiment.RequiredDirs); err != nil {
		return err
	}

	templates, err := experiment.LocateTemplateConfigs(expDir, createTemplates)
	if err != nil {
		return err
	}

	statesDir := filepath.Join(expDir, experiment.StatesDir)
	logger.Info("rebuilding region directories",
		zap.String("path", statesDir),
		zap.Int("regions", len(codes)),
		zap.Bool("clear_existing", createClearExisting))
	if err := experiment.RebuildRegionDirs(statesDir, codes, createClearExisting); err != nil {
		return err
	}

	written, err := experiment.Materialize(statesDir, templates, catalog)
	if err != nil {
		return err
	}

	fmt.Printf("materialized %d configs (%d regions x %d templates) under %s\n",
		len(written), len(codes), len(templates), statesDir)
	return nil
}

func registerCreateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&createExperimentName, "experiment_name", "e", "", "name of the experiment directory")
	cmd.Flags().StringSliceVarP(&createStates, "states", "s", nil, "region codes and/or selectors (all, 50states, hhsregions); comma-separated or repeated")
	cmd.Flags().StringSliceVarP(&createTemplates, "template_configs", "m", nil, "paths to template configs, comma-separated or repeated; copied into the experiment when given")
	cmd.Flags().BoolVar(&createClearExisting, "clear_existing", false, "remove the whole states/ tree before rebuilding (destructive)")
	_ = cmd.MarkFlagRequired("experiment_name")
	_ = cmd.MarkFlagRequired("states")
}

func init() {
	registerCreateFlags(createCmd)
}
