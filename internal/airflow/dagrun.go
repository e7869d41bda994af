package airflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// DAGRun mirrors the API's dag-run resource.
type DAGRun struct {
	DagID       string         `json:"dag_id"`
	RunID       string         `json:"dag_run_id"`
	State       types.RunState `json:"state"`
	LogicalDate string         `json:"logical_date,omitempty"`
}

// TaskInstance mirrors the API's task-instance resource.
type TaskInstance struct {
	TaskID string `json:"task_id"`
	State  string `json:"state"`
}

// TriggerRunRequest names the parameters for creating a dag run.
type TriggerRunRequest struct {
	RunID       string                 `json:"dag_run_id"`
	LogicalDate string                 `json:"logical_date,omitempty"`
	Conf        map[string]interface{} `json:"conf,omitempty"`
}

// TriggerDAGRun creates a run of dagID under the caller-chosen run ID.
func (c *Client) TriggerDAGRun(ctx context.Context, dagID string, req TriggerRunRequest) (*DAGRun, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("airflow: dag_run_id is required")
	}
	var run DAGRun
	if err := c.do(ctx, http.MethodPost, "/dags/"+dagID+"/dagRuns", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetDAGRun fetches the current state of one run.
func (c *Client) GetDAGRun(ctx context.Context, dagID, runID string) (*DAGRun, error) {
	var run DAGRun
	if err := c.do(ctx, http.MethodGet, "/dags/"+dagID+"/dagRuns/"+url.PathEscape(runID), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteDAGRun removes a run and its task instances.
func (c *Client) DeleteDAGRun(ctx context.Context, dagID, runID string) error {
	return c.do(ctx, http.MethodDelete, "/dags/"+dagID+"/dagRuns/"+url.PathEscape(runID), nil, nil)
}

// ResetDAGRun clears any previous run under this ID so the same logical
// execution can be triggered again. A run that never existed is not an error.
func (c *Client) ResetDAGRun(ctx context.Context, dagID, runID string) error {
	if err := c.DeleteDAGRun(ctx, dagID, runID); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

type taskInstanceList struct {
	TaskInstances []TaskInstance `json:"task_instances"`
	TotalEntries  int            `json:"total_entries"`
}

// ListTaskInstances returns every task instance of a run, following the API's
// paging. Dynamic task mapping can push a run past one page.
func (c *Client) ListTaskInstances(ctx context.Context, dagID, runID string) ([]TaskInstance, error) {
	const pageSize = 100
	var all []TaskInstance
	for offset := 0; ; offset += pageSize {
		path := fmt.Sprintf("/dags/%s/dagRuns/%s/taskInstances?limit=%d&offset=%d",
			dagID, url.PathEscape(runID), pageSize, offset)
		var page taskInstanceList
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.TaskInstances...)
		if len(page.TaskInstances) == 0 || len(all) >= page.TotalEntries {
			return all, nil
		}
	}
}

// RunRecord loads a run together with its classified child task outcomes.
// Raw task states enter the closed outcome enum here and nowhere else; the
// API reports unscheduled tasks with a null state, which we surface as "none".
func (c *Client) RunRecord(ctx context.Context, dagID, runID string) (*types.RunRecord, error) {
	run, err := c.GetDAGRun(ctx, dagID, runID)
	if err != nil {
		return nil, err
	}
	instances, err := c.ListTaskInstances(ctx, dagID, runID)
	if err != nil {
		return nil, err
	}

	rec := &types.RunRecord{
		DagID: run.DagID,
		RunID: run.RunID,
		State: run.State,
		Tasks: make([]types.TaskResult, 0, len(instances)),
	}
	for _, ti := range instances {
		state := ti.State
		if state == "" {
			state = "none"
		}
		rec.Tasks = append(rec.Tasks, types.TaskResult{
			TaskID:  ti.TaskID,
			State:   state,
			Outcome: types.ClassifyTaskState(state),
		})
	}
	return rec, nil
}
