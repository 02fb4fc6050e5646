// Package launch submits an experiment's task plan to AWS Batch and watches
// it run. One job is submitted per task; postprocessing stages are chained
// with job dependencies so a stage starts only after the previous one (and
// every region task) reached a terminal state. Scheduling, retries, and
// placement all belong to the batch service.
package launch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"scenarios/internal/plan"
)

// BatchAPI is the slice of the AWS Batch client the launcher uses.
type BatchAPI interface {
	SubmitJob(ctx context.Context, in *batch.SubmitJobInput, opts ...func(*batch.Options)) (*batch.SubmitJobOutput, error)
	DescribeJobs(ctx context.Context, in *batch.DescribeJobsInput, opts ...func(*batch.Options)) (*batch.DescribeJobsOutput, error)
}

// Options configures a Launcher.
type Options struct {
	JobID         string // experiment job id, prefixes every task name
	JobQueue      string
	JobDefinition string
	// RunDependentTasksOnFail is forwarded to every task as an opaque
	// parameter; the task wrapper decides what to do with failed parents.
	RunDependentTasksOnFail bool
}

// Launcher submits tasks for one experiment run.
type Launcher struct {
	client BatchAPI
	opts   Options
	log    *zap.Logger
}

// New builds a Launcher.
func New(client BatchAPI, opts Options, log *zap.Logger) *Launcher {
	return &Launcher{client: client, opts: opts, log: log}
}

// SubmitTasks submits one compute job per task and returns the batch job ids.
func (l *Launcher) SubmitTasks(ctx context.Context, tasks []plan.TaskArgs) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		id, err := l.submit(ctx, taskName(l.opts.JobID, task.Label()), task.CommandLine(), nil)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SubmitPostprocess submits the postprocessing stages. Every job in a stage
// depends on all jobs of the previous stage; the first stage depends on the
// given upstream (region task) job ids. Returns ids of all submitted jobs.
func (l *Launcher) SubmitPostprocess(ctx context.Context, stages [][]string, upstream []string) ([]string, error) {
	var all []string
	prev := upstream
	for _, stage := range stages {
		var current []string
		for _, script := range stage {
			id, err := l.submit(ctx, taskName(l.opts.JobID, script), []string{script}, prev)
			if err != nil {
				return all, err
			}
			current = append(current, id)
			all = append(all, id)
		}
		prev = current
	}
	return all, nil
}

func (l *Launcher) submit(ctx context.Context, name string, command []string, dependsOn []string) (string, error) {
	in := &batch.SubmitJobInput{
		JobName:       aws.String(name),
		JobQueue:      aws.String(l.opts.JobQueue),
		JobDefinition: aws.String(l.opts.JobDefinition),
		ContainerOverrides: &types.ContainerOverrides{
			Command: command,
		},
		Parameters: map[string]string{
			"run_dependent_tasks_on_fail": strconv.FormatBool(l.opts.RunDependentTasksOnFail),
		},
	}
	for _, dep := range dependsOn {
		in.DependsOn = append(in.DependsOn, types.JobDependency{JobId: aws.String(dep)})
	}
	out, err := l.client.SubmitJob(ctx, in)
	if err != nil {
		return "", fmt.Errorf("submitting task %s: %w", name, err)
	}
	id := aws.ToString(out.JobId)
	l.log.Info("submitted task",
		zap.String("name", name),
		zap.String("batch_job_id", id),
		zap.Int("depends_on", len(dependsOn)))
	return id, nil
}

// taskName builds a batch-safe job name: job id, task label, and a short
// unique suffix so re-submissions never collide.
func taskName(jobID, label string) string {
	suffix := uuid.NewString()[:8]
	return sanitizeName(jobID) + "-" + sanitizeName(label) + "-" + suffix
}

// sanitizeName keeps the characters batch job names allow.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	const maxLabel = 48
	out := b.String()
	if len(out) > maxLabel {
		out = out[:maxLabel]
	}
	return out
}
