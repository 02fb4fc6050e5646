package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scenarios/internal/config"
	"scenarios/internal/experiment"
	"scenarios/internal/flagconf"
	"scenarios/internal/launch"
	"scenarios/internal/plan"
)

var (
	launchJobID        string
	launchExperiment   string
	launchCPU          int
	launchTimeout      int
	launchExplicit     string
	launchConfigPath   string
	launchRunDepOnFail bool
)

// launchDefaults sit below both the CLI and the --config file.
var launchDefaults = map[string]any{
	"cpu":     8,
	"timeout": 600,
}

// launchCmd submits an experiment to the batch service
var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch an experiment onto the batch service",
	Long: `Submits one compute task per region subdirectory of the experiment
(or one per row of an --explicit CSV), chains the numbered postprocessing
scripts behind them as dependency stages, and monitors the job until every
task finishes or the timeout elapses. The timeout only stops monitoring;
remote tasks keep running.

Any flag may instead be supplied through a --config JSON file whose keys are
the flag names without dashes; values given on the command line win.
Note: the --explicit CSV holds one column per task flag, one row per task.
Column titles are passed as flag names with -- prepended. Rows may cover any
subset of regions, so programmatic generation of the csv is encouraged.`,
	RunE: runLaunch,
}

func runLaunch(cmd *cobra.Command, args []string) error {
	merged, err := reconcileLaunchArgs(cmd)
	if err != nil {
		return err
	}
	jobID, _ := flagconf.String(merged, "job_id")
	experimentName, _ := flagconf.String(merged, "experiment_name")
	cpu, ok := flagconf.Int(merged, "cpu")
	if !ok {
		return fmt.Errorf("cpu count must be a number")
	}
	timeoutMins, ok := flagconf.Int(merged, "timeout")
	if !ok {
		return fmt.Errorf("timeout must be a number of minutes")
	}
	explicitCSV, _ := flagconf.String(merged, "explicit")
	runDepOnFail := flagconf.Bool(merged, "run_dependent_tasks_on_fail")

	wd, err := resolveWorkingDir()
	if err != nil {
		return err
	}
	settings, err := config.Load(settingsFile(wd))
	if err != nil {
		return err
	}
	queue, err := settings.Batch.QueueFor(cpu)
	if err != nil {
		return err
	}

	expDir, err := experiment.ResolvePath(experimentName, wd)
	if err != nil {
		return err
	}

	stages, err := postprocessStages(expDir)
	if err != nil {
		return err
	}
	tasks, err := launchTasks(expDir, explicitCSV)
	if err != nil {
		return err
	}
	logger.Info("launching experiment",
		zap.String("experiment", experimentName),
		zap.String("job_id", jobID),
		zap.Int("cpu", cpu),
		zap.Int("tasks", len(tasks)),
		zap.Int("postprocess_stages", len(stages)))

	ctx := cmd.Context()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.Storage.Region))
	if err != nil {
		return fmt.Errorf("loading aws config: %w", err)
	}
	launcher := launch.New(batch.NewFromConfig(awsCfg), launch.Options{
		JobID:                   jobID,
		JobQueue:                queue,
		JobDefinition:           settings.Batch.JobDefinition,
		RunDependentTasksOnFail: runDepOnFail,
	}, logger)

	taskIDs, err := launcher.SubmitTasks(ctx, tasks)
	if err != nil {
		return err
	}
	ppIDs, err := launcher.SubmitPostprocess(ctx, stages, taskIDs)
	if err != nil {
		return err
	}

	failed, err := launcher.Monitor(ctx, append(taskIDs, ppIDs...), time.Duration(timeoutMins)*time.Minute)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed under job %s", failed, len(taskIDs)+len(ppIDs), jobID)
	}
	fmt.Printf("job %s finished: %d tasks succeeded\n", jobID, len(taskIDs)+len(ppIDs))
	return nil
}

// reconcileLaunchArgs merges flags the user actually set with the optional
// --config JSON and the built-in defaults, CLI winning on conflict.
func reconcileLaunchArgs(cmd *cobra.Command) (map[string]any, error) {
	cli := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("job_id") {
		cli["job_id"] = launchJobID
	}
	if flags.Changed("experiment_name") {
		cli["experiment_name"] = launchExperiment
	}
	if flags.Changed("cpu") {
		cli["cpu"] = launchCPU
	}
	if flags.Changed("timeout") {
		cli["timeout"] = launchTimeout
	}
	if flags.Changed("explicit") {
		cli["explicit"] = launchExplicit
	}
	// Presence of the flag means true; absence defers to the config file.
	if flags.Changed("run_dependent_tasks_on_fail") {
		cli["run_dependent_tasks_on_fail"] = true
	}

	doc := map[string]any{}
	if flags.Changed("config") {
		var err error
		doc, err = flagconf.LoadFile(launchConfigPath)
		if err != nil {
			return nil, err
		}
	}

	merged := flagconf.ApplyDefaults(flagconf.Merge(cli, doc), launchDefaults)
	if err := flagconf.ValidateRequired(merged, []string{"experiment_name", "job_id"}); err != nil {
		return nil, err
	}
	return merged, nil
}

// postprocessStages derives the execution stages from the experiment's
// postprocessing scripts. A missing directory simply means no stages.
func postprocessStages(expDir string) ([][]string, error) {
	dir := filepath.Join(expDir, experiment.PostprocessingScriptsDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var scripts []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			scripts = append(scripts, entry.Name())
		}
	}
	return plan.DeriveExecutionBatches(scripts)
}

// launchTasks builds the task argument sets: explicit CSV rows when given,
// otherwise one task per region subdirectory of the experiment.
func launchTasks(expDir, explicitCSV string) ([]plan.TaskArgs, error) {
	if explicitCSV != "" {
		table, err := plan.ReadExplicitCSV(explicitCSV)
		if err != nil {
			return nil, err
		}
		return table.Tasks(), nil
	}
	statesDir := filepath.Join(expDir, experiment.StatesDir)
	entries, err := os.ReadDir(statesDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s (run `scenarios create` first): %w", statesDir, err)
	}
	var codes []string
	for _, entry := range entries {
		if entry.IsDir() {
			codes = append(codes, entry.Name())
		}
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("no region subdirectories under %s, run `scenarios create` first", statesDir)
	}
	return plan.ImplicitArgs(codes), nil
}

// settingsFile resolves the settings path relative to the working area
// unless overridden.
func settingsFile(wd string) string {
	if settingsPath != "" {
		return settingsPath
	}
	return filepath.Join(wd, config.DefaultPath)
}

// registerLaunchFlags binds the launch flags to a command. job_id and
// experiment_name are not marked required here: the --config file may
// supply them, so requiredness is checked after reconciliation.
func registerLaunchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&launchJobID, "job_id", "j", "", "unique id for this batch job")
	cmd.Flags().StringVarP(&launchExperiment, "experiment_name", "e", "", "experiment to launch, resolved within the working area")
	cmd.Flags().IntVarP(&launchCPU, "cpu", "c", 8, "cpu count of the machines running each task (2, 4, or 8)")
	cmd.Flags().IntVarP(&launchTimeout, "timeout", "t", 600, "minutes to monitor the job; tasks are never terminated on timeout")
	cmd.Flags().StringVar(&launchExplicit, "explicit", "", "path to an explicit task arguments csv")
	cmd.Flags().StringVar(&launchConfigPath, "config", "", "path to a json file pre-filling any launch flag")
	cmd.Flags().BoolVar(&launchRunDepOnFail, "run_dependent_tasks_on_fail", false, "run postprocessing stages even when tasks fail")
}

func init() {
	registerLaunchFlags(launchCmd)
}
