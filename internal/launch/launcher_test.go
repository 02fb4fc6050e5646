package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scenarios/internal/plan"
)

type submitted struct {
	name      string
	queue     string
	command   []string
	dependsOn []string
	params    map[string]string
}

// fakeBatch records submissions and serves scripted job statuses.
type fakeBatch struct {
	jobs      []submitted
	statuses  map[string]types.JobStatus
	submitErr error
}

func (f *fakeBatch) SubmitJob(_ context.Context, in *batch.SubmitJobInput, _ ...func(*batch.Options)) (*batch.SubmitJobOutput, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	var deps []string
	for _, d := range in.DependsOn {
		deps = append(deps, aws.ToString(d.JobId))
	}
	f.jobs = append(f.jobs, submitted{
		name:      aws.ToString(in.JobName),
		queue:     aws.ToString(in.JobQueue),
		command:   in.ContainerOverrides.Command,
		dependsOn: deps,
		params:    in.Parameters,
	})
	return &batch.SubmitJobOutput{JobId: aws.String(fmt.Sprintf("job-%d", len(f.jobs)))}, nil
}

func (f *fakeBatch) DescribeJobs(_ context.Context, in *batch.DescribeJobsInput, _ ...func(*batch.Options)) (*batch.DescribeJobsOutput, error) {
	out := &batch.DescribeJobsOutput{}
	for _, id := range in.Jobs {
		out.Jobs = append(out.Jobs, types.JobDetail{
			JobId:  aws.String(id),
			Status: f.statuses[id],
		})
	}
	return out, nil
}

func newLauncher(t *testing.T, client BatchAPI, opts Options) *Launcher {
	t.Helper()
	if opts.JobID == "" {
		opts.JobID = "flu-2024"
	}
	if opts.JobQueue == "" {
		opts.JobQueue = "scenarios-8cpu"
	}
	if opts.JobDefinition == "" {
		opts.JobDefinition = "scenarios-run-task"
	}
	return New(client, opts, zaptest.NewLogger(t))
}

func TestSubmitTasks(t *testing.T) {
	client := &fakeBatch{}
	l := newLauncher(t, client, Options{})

	ids, err := l.SubmitTasks(context.Background(), plan.ImplicitArgs([]string{"CA", "TX"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1", "job-2"}, ids)
	require.Len(t, client.jobs, 2)

	t.Run("commands carry the task flags", func(t *testing.T) {
		assert.Equal(t, []string{"--state", "CA"}, client.jobs[0].command)
		assert.Equal(t, []string{"--state", "TX"}, client.jobs[1].command)
	})

	t.Run("names prefix job id and label", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(client.jobs[0].name, "flu-2024-CA-"), client.jobs[0].name)
	})

	t.Run("region tasks have no dependencies", func(t *testing.T) {
		assert.Empty(t, client.jobs[0].dependsOn)
	})

	t.Run("failure policy forwarded", func(t *testing.T) {
		assert.Equal(t, "false", client.jobs[0].params["run_dependent_tasks_on_fail"])
	})
}

func TestSubmitTasksError(t *testing.T) {
	client := &fakeBatch{submitErr: errors.New("queue disabled")}
	l := newLauncher(t, client, Options{})
	_, err := l.SubmitTasks(context.Background(), plan.ImplicitArgs([]string{"CA"}))
	assert.ErrorContains(t, err, "queue disabled")
}

func TestSubmitPostprocess(t *testing.T) {
	client := &fakeBatch{}
	l := newLauncher(t, client, Options{RunDependentTasksOnFail: true})

	upstream := []string{"st-1", "st-2"}
	ids, err := l.SubmitPostprocess(context.Background(),
		[][]string{{"1_collect.py"}, {"2_plot.py", "2_summarize.py"}}, upstream)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	require.Len(t, client.jobs, 3)

	t.Run("first stage depends on region tasks", func(t *testing.T) {
		assert.Equal(t, upstream, client.jobs[0].dependsOn)
	})

	t.Run("second stage depends on first stage only", func(t *testing.T) {
		assert.Equal(t, []string{"job-1"}, client.jobs[1].dependsOn)
		assert.Equal(t, []string{"job-1"}, client.jobs[2].dependsOn)
	})

	t.Run("script name is the command", func(t *testing.T) {
		assert.Equal(t, []string{"1_collect.py"}, client.jobs[0].command)
	})

	t.Run("failure policy forwarded", func(t *testing.T) {
		assert.Equal(t, "true", client.jobs[0].params["run_dependent_tasks_on_fail"])
	})
}

func TestMonitor(t *testing.T) {
	old := pollInterval
	pollInterval = time.Millisecond
	t.Cleanup(func() { pollInterval = old })

	t.Run("returns when all terminal", func(t *testing.T) {
		client := &fakeBatch{statuses: map[string]types.JobStatus{
			"a": types.JobStatusSucceeded,
			"b": types.JobStatusFailed,
		}}
		l := newLauncher(t, client, Options{})
		failed, err := l.Monitor(context.Background(), []string{"a", "b"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
	})

	t.Run("timeout stops watching without error", func(t *testing.T) {
		client := &fakeBatch{statuses: map[string]types.JobStatus{
			"a": types.JobStatusRunning,
		}}
		l := newLauncher(t, client, Options{})
		failed, err := l.Monitor(context.Background(), []string{"a"}, 0)
		require.NoError(t, err)
		assert.Zero(t, failed)
	})

	t.Run("no jobs is a no-op", func(t *testing.T) {
		l := newLauncher(t, &fakeBatch{}, Options{})
		failed, err := l.Monitor(context.Background(), nil, time.Minute)
		require.NoError(t, err)
		assert.Zero(t, failed)
	})

	t.Run("context cancellation surfaces", func(t *testing.T) {
		client := &fakeBatch{statuses: map[string]types.JobStatus{
			"a": types.JobStatusRunning,
		}}
		l := newLauncher(t, client, Options{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := l.Monitor(ctx, []string{"a"}, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "1_collect_py", sanitizeName("1_collect.py"))
	assert.Equal(t, strings.Repeat("a", 48), sanitizeName(strings.Repeat("a", 80)))
}
