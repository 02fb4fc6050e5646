package launch

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"
	"go.uber.org/zap"
)

// describeChunk is the DescribeJobs request limit.
const describeChunk = 100

// pollInterval is how often job statuses are re-read while monitoring.
var pollInterval = 30 * time.Second

// Monitor polls the given jobs until all reach a terminal state or timeout
// elapses. Hitting the timeout stops watching but never terminates the
// remote jobs; a warning is logged and no error returned. Failed jobs are
// reported through the returned count.
func (l *Launcher) Monitor(ctx context.Context, jobIDs []string, timeout time.Duration) (failed int, err error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		counts, err := l.describeAll(ctx, jobIDs)
		if err != nil {
			return 0, err
		}
		running := len(jobIDs) - counts[types.JobStatusSucceeded] - counts[types.JobStatusFailed]
		l.log.Info("job status",
			zap.String("job_id", l.opts.JobID),
			zap.Int("running", running),
			zap.Int("succeeded", counts[types.JobStatusSucceeded]),
			zap.Int("failed", counts[types.JobStatusFailed]))
		if running == 0 {
			return counts[types.JobStatusFailed], nil
		}
		if time.Now().After(deadline) {
			l.log.Warn("monitor timeout reached, jobs keep running remotely",
				zap.String("job_id", l.opts.JobID),
				zap.Int("still_running", running))
			return counts[types.JobStatusFailed], nil
		}
		select {
		case <-ctx.Done():
			return counts[types.JobStatusFailed], ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Launcher) describeAll(ctx context.Context, jobIDs []string) (map[types.JobStatus]int, error) {
	counts := map[types.JobStatus]int{}
	for start := 0; start < len(jobIDs); start += describeChunk {
		end := start + describeChunk
		if end > len(jobIDs) {
			end = len(jobIDs)
		}
		out, err := l.client.DescribeJobs(ctx, &batch.DescribeJobsInput{Jobs: jobIDs[start:end]})
		if err != nil {
			return nil, err
		}
		for _, job := range out.Jobs {
			counts[job.Status]++
		}
	}
	return counts, nil
}
