// reporter Lambda aggregates a recorded suite execution into the status
// report and dispatches it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/flightcheck-systems/flightcheck/internal/lambda"
	"github.com/flightcheck-systems/flightcheck/internal/report"
	"github.com/flightcheck-systems/flightcheck/internal/suite"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

var (
	deps     *intlambda.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*intlambda.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background())
	})
	return deps, depsErr
}

// handleReport loads the recorded execution, probes the deployment facts, and
// builds and dispatches the aggregated report. The launcher records only run
// references, so the triggered runs' terminal states are read live from the
// deployment here, once they have had time to settle.
func handleReport(ctx context.Context, d *intlambda.Deps, req intlambda.ReportRequest) (intlambda.ReportResponse, error) {
	exec, err := loadExecution(ctx, d, req.ExecutionID)
	if err != nil {
		return intlambda.ReportResponse{}, err
	}

	facts, probeTasks := suite.ProbeFacts(ctx, d.Client, d.Config.Report, d.Logger)

	// Re-running the reporter replaces earlier probe results instead of
	// stacking duplicates onto the record.
	own := make([]types.TaskResult, 0, len(exec.OwnTasks)+len(probeTasks))
	probed := make(map[string]bool, len(probeTasks))
	for _, t := range probeTasks {
		probed[t.TaskID] = true
	}
	for _, t := range exec.OwnTasks {
		if !probed[t.TaskID] {
			own = append(own, t)
		}
	}
	own = append(own, probeTasks...)

	summary, dispatchErr := d.Reporter.Run(ctx, report.Input{
		Refs:       exec.Refs,
		Facts:      facts,
		OwnTasks:   own,
		MonitorURL: suite.MonitorURL(d.Config, d.Client.BaseURL()),
	})

	exec.Facts = facts
	exec.OwnTasks = own
	exec.Report = summary.Text
	exec.DagCount = summary.DagCount
	exec.FailedDagCount = summary.FailedDagCount
	now := time.Now().UTC()
	exec.CompletedAt = &now
	if dispatchErr == nil {
		exec.DispatchedAt = &now
	}
	if err := d.Store.PutExecution(ctx, *exec); err != nil {
		d.Logger.Warn("updating execution record failed", "executionId", exec.ID, "error", err)
	}

	return intlambda.ReportResponse{
		ExecutionID:    exec.ID,
		DagCount:       summary.DagCount,
		FailedDagCount: summary.FailedDagCount,
		Dispatched:     dispatchErr == nil,
	}, dispatchErr
}

// loadExecution fetches one recorded execution, or the most recent execution
// of the configured suite when id is empty.
func loadExecution(ctx context.Context, d *intlambda.Deps, id string) (*types.SuiteExecution, error) {
	if id != "" {
		exec, err := d.Store.GetExecution(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading execution: %w", err)
		}
		return exec, nil
	}

	execs, err := d.Store.ListExecutions(ctx, d.Config.Suite.Name, 1)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	if len(execs) == 0 {
		return nil, fmt.Errorf("no recorded executions for suite %s", d.Config.Suite.Name)
	}
	return &execs[0], nil
}

func handler(ctx context.Context, req intlambda.ReportRequest) (intlambda.ReportResponse, error) {
	d, err := getDeps()
	if err != nil {
		return intlambda.ReportResponse{}, err
	}
	return handleReport(ctx, d, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
