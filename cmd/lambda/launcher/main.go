// launcher Lambda resets and triggers every suite DAG run without waiting
// for the runs to finish.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	intlambda "github.com/flightcheck-systems/flightcheck/internal/lambda"
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

// handleLaunch resets and triggers every configured DAG run and records the
// execution for the reporter Lambda to aggregate later. Triggered runs can
// take hours, far beyond one invocation, so nothing here waits for them.
// Groups trigger concurrently and each group stays a sequential chain, like
// the interactive executor: a trigger error stops its chain and the rest of
// the group surfaces as upstream_failed.
func handleLaunch(ctx context.Context, d *intlambda.Deps, req intlambda.LaunchRequest) (intlambda.LaunchResponse, error) {
	logicalDate := req.LogicalDate
	if logicalDate == "" {
		logicalDate = time.Now().UTC().Format("2006-01-02")
	}

	exec := types.SuiteExecution{
		ID:          ulid.Make().String(),
		SuiteName:   d.Config.Suite.Name,
		LogicalDate: logicalDate,
		StartedAt:   time.Now().UTC(),
	}
	d.Logger.Info("launching suite runs",
		"executionId", exec.ID,
		"suite", exec.SuiteName,
		"logicalDate", logicalDate,
	)

	groups := d.Config.Suite.Groups
	groupTasks := make([][]suite.TriggerTask, len(groups))
	var runIDs []string
	for i, g := range groups {
		tasks, ids := suite.Build(g.DAGs, logicalDate)
		groupTasks[i] = tasks
		runIDs = append(runIDs, ids...)
		for _, t := range tasks {
			exec.Refs = append(exec.Refs, types.RunRef{TaskID: t.TaskID, DagID: t.DagID, RunID: t.RunID})
		}
	}

	// Chain goroutines return nil so one bad group never cancels the others;
	// per-task results land in the indexed slice instead.
	own := make([][]types.TaskResult, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range groups {
		eg.Go(func() error {
			own[i] = triggerChain(egCtx, d, groupTasks[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		d.Logger.Error("trigger fan-out failed", "error", err)
	}

	resp := intlambda.LaunchResponse{
		ExecutionID: exec.ID,
		LogicalDate: logicalDate,
		RunIDs:      runIDs,
	}
	for _, chain := range own {
		exec.OwnTasks = append(exec.OwnTasks, chain...)
		for _, t := range chain {
			switch t.Outcome {
			case types.OutcomeSuccess:
				resp.Triggered++
			case types.OutcomeFailed:
				resp.Failed++
			}
		}
	}

	// The stored record is the reporter Lambda's only handle on this
	// execution, so losing it is fatal.
	if err := d.Store.PutExecution(ctx, exec); err != nil {
		return intlambda.LaunchResponse{}, fmt.Errorf("recording execution: %w", err)
	}

	d.Logger.Info("suite runs launched",
		"executionId", exec.ID,
		"triggered", resp.Triggered,
		"failed", resp.Failed,
	)
	return resp, nil
}

// triggerChain fires one group's triggers in order without waiting on the
// runs. A trigger error halts the chain.
func triggerChain(ctx context.Context, d *intlambda.Deps, tasks []suite.TriggerTask) []types.TaskResult {
	own := make([]types.TaskResult, 0, len(tasks))
	halted := false
	for _, task := range tasks {
		if halted {
			own = append(own, types.TaskResult{TaskID: task.TaskID, State: "upstream_failed", Outcome: types.OutcomeUpstreamFailed})
			continue
		}
		if err := task.Trigger(ctx, d.Client); err != nil {
			d.Logger.Error("trigger failed", "dagId", task.DagID, "runId", task.RunID, "error", err)
			own = append(own, types.TaskResult{TaskID: task.TaskID, State: "failed", Outcome: types.OutcomeFailed})
			halted = true
			continue
		}
		own = append(own, types.TaskResult{TaskID: task.TaskID, State: "success", Outcome: types.OutcomeSuccess})
	}
	return own
}

func handler(ctx context.Context, req intlambda.LaunchRequest) (intlambda.LaunchResponse, error) {
	d, err := getDeps()
	if err != nil {
		return intlambda.LaunchResponse{}, err
	}
	return handleLaunch(ctx, d, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
