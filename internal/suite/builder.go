package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/flightcheck-systems/flightcheck/internal/airflow"
	"github.com/flightcheck-systems/flightcheck/internal/metrics"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// Polling gives up after this many consecutive transport failures. One flaky
// response never aborts a run that may take hours.
const maxPollFailures = 5

// TriggerClient is the orchestrator surface a trigger task runs against.
type TriggerClient interface {
	ResetDAGRun(ctx context.Context, dagID, runID string) error
	TriggerDAGRun(ctx context.Context, dagID string, req airflow.TriggerRunRequest) (*airflow.DAGRun, error)
	GetDAGRun(ctx context.Context, dagID, runID string) (*airflow.DAGRun, error)
}

// TriggerTask starts one remote DAG run and waits for it to reach a terminal
// state. A failed remote run is an acceptable outcome, not an error.
type TriggerTask struct {
	TaskID      string
	DagID       string
	RunID       string
	LogicalDate string
}

// Build produces one TriggerTask per spec plus the parallel list of run IDs,
// preserving input order. Run IDs are deterministic so a retried suite
// execution resets and reuses the same remote runs.
func Build(specs []types.TriggerSpec, logicalDate string) ([]TriggerTask, []string) {
	tasks := make([]TriggerTask, 0, len(specs))
	runIDs := make([]string, 0, len(specs))
	for _, spec := range specs {
		runID := fmt.Sprintf("%s_%s_%s", spec.TaskID, spec.DagID, logicalDate)
		tasks = append(tasks, TriggerTask{
			TaskID:      spec.TaskID,
			DagID:       spec.DagID,
			RunID:       runID,
			LogicalDate: logicalDate,
		})
		runIDs = append(runIDs, runID)
	}
	return tasks, runIDs
}

// Trigger resets any pre-existing run under this task's run ID and starts a
// fresh one, without waiting for it. Callers that cannot outlive the run,
// like the launcher Lambda, stop here and leave polling to a later pass.
func (t *TriggerTask) Trigger(ctx context.Context, client TriggerClient) error {
	if err := client.ResetDAGRun(ctx, t.DagID, t.RunID); err != nil {
		return fmt.Errorf("resetting run %s: %w", t.RunID, err)
	}

	metrics.TriggersTotal.Add(1)
	if _, err := client.TriggerDAGRun(ctx, t.DagID, airflow.TriggerRunRequest{
		RunID:       t.RunID,
		LogicalDate: normalizeLogicalDate(t.LogicalDate),
	}); err != nil {
		metrics.TriggersFailed.Add(1)
		return fmt.Errorf("triggering %s: %w", t.DagID, err)
	}
	return nil
}

// Run resets any pre-existing run under this task's run ID, triggers the DAG,
// and polls until the remote run is terminal. The terminal state is returned
// whether it is success or failed; only transport-level trouble is an error.
func (t *TriggerTask) Run(ctx context.Context, client TriggerClient, pollInterval, runTimeout time.Duration) (types.RunState, error) {
	if err := t.Trigger(ctx, client); err != nil {
		return "", err
	}

	deadline := time.NewTimer(runTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var pollErrs int
	for {
		run, err := client.GetDAGRun(ctx, t.DagID, t.RunID)
		switch {
		case err == nil:
			pollErrs = 0
			if run.State.Terminal() {
				if run.State == types.RunSuccess {
					metrics.RunsSucceeded.Add(1)
				} else {
					metrics.RunsFailed.Add(1)
				}
				return run.State, nil
			}
		case airflow.IsNotFound(err):
			// The run was just triggered and may not be visible yet.
			pollErrs = 0
		default:
			pollErrs++
			if pollErrs >= maxPollFailures {
				return "", fmt.Errorf("polling run %s: %w", t.RunID, err)
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("run %s did not reach a terminal state within %s", t.RunID, runTimeout)
		case <-ticker.C:
		}
	}
}

// normalizeLogicalDate widens a date-only timestamp to RFC 3339 for the API.
// The raw value stays in the run ID.
func normalizeLogicalDate(v string) string {
	if _, err := time.Parse("2006-01-02", v); err == nil {
		return v + "T00:00:00Z"
	}
	return v
}
