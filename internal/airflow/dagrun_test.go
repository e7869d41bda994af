package airflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerDAGRun_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/dags/example_load_file/dagRuns", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "example_load_file_example_load_file_2025-08-01", req["dag_run_id"])
		assert.Equal(t, "2025-08-01T00:00:00Z", req["logical_date"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"dag_id":     "example_load_file",
			"dag_run_id": req["dag_run_id"],
			"state":      "queued",
		})
	}))
	defer srv.Close()

	run, err := newTestClient(t, srv.URL).TriggerDAGRun(context.Background(), "example_load_file", TriggerRunRequest{
		RunID:       "example_load_file_example_load_file_2025-08-01",
		LogicalDate: "2025-08-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, types.RunQueued, run.State)
	assert.Equal(t, "example_load_file_example_load_file_2025-08-01", run.RunID)
}

func TestTriggerDAGRun_RequiresRunID(t *testing.T) {
	_, err := newTestClient(t, "http://localhost:8080").TriggerDAGRun(context.Background(), "d", TriggerRunRequest{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dag_run_id is required")
}

func TestGetDAGRun_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Contains(t, r.URL.Path, "/api/v1/dags/my_dag/dagRuns/run-123")

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"dag_id":     "my_dag",
			"dag_run_id": "run-123",
			"state":      "success",
		})
	}))
	defer srv.Close()

	run, err := newTestClient(t, srv.URL).GetDAGRun(context.Background(), "my_dag", "run-123")
	require.NoError(t, err)
	assert.Equal(t, types.RunSuccess, run.State)
	assert.True(t, run.State.Terminal())
}

func TestResetDAGRun_ToleratesMissingRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).ResetDAGRun(context.Background(), "my_dag", "run-123")
	assert.NoError(t, err)
}

func TestResetDAGRun_DeletesExistingRun(t *testing.T) {
	var deleted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).ResetDAGRun(context.Background(), "my_dag", "run-123")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestResetDAGRun_PropagatesOtherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).ResetDAGRun(context.Background(), "my_dag", "run-123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestListTaskInstances_Paging(t *testing.T) {
	const total = 150
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		require.Positive(t, limit)

		var page []map[string]interface{}
		for i := offset; i < offset+limit && i < total; i++ {
			page = append(page, map[string]interface{}{
				"task_id": fmt.Sprintf("task_%03d", i),
				"state":   "success",
			})
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"task_instances": page,
			"total_entries":  total,
		})
	}))
	defer srv.Close()

	instances, err := newTestClient(t, srv.URL).ListTaskInstances(context.Background(), "my_dag", "run-123")
	require.NoError(t, err)
	assert.Len(t, instances, total)
	assert.Equal(t, "task_000", instances[0].TaskID)
	assert.Equal(t, "task_149", instances[total-1].TaskID)
}

func TestRunRecord_ClassifiesOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if r.URL.Query().Has("limit") {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"task_instances": []map[string]interface{}{
					{"task_id": "extract", "state": "success"},
					{"task_id": "load", "state": "failed"},
					{"task_id": "verify", "state": "upstream_failed"},
					{"task_id": "optional", "state": "skipped"},
					{"task_id": "never_ran", "state": nil},
				},
				"total_entries": 5,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"dag_id":     "my_dag",
			"dag_run_id": "run-123",
			"state":      "failed",
		})
	}))
	defer srv.Close()

	rec, err := newTestClient(t, srv.URL).RunRecord(context.Background(), "my_dag", "run-123")
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, rec.State)
	require.Len(t, rec.Tasks, 5)

	assert.Equal(t, types.OutcomeSuccess, rec.Tasks[0].Outcome)
	assert.Equal(t, types.OutcomeFailed, rec.Tasks[1].Outcome)
	assert.Equal(t, types.OutcomeUpstreamFailed, rec.Tasks[2].Outcome)
	assert.Equal(t, types.OutcomeOther, rec.Tasks[3].Outcome)
	assert.Equal(t, "skipped", rec.Tasks[3].State)
	assert.Equal(t, types.OutcomeOther, rec.Tasks[4].Outcome)
	assert.Equal(t, "none", rec.Tasks[4].State)
}

func TestRunRecord_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"title": "DAGRun not found"})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).RunRecord(context.Background(), "my_dag", "gone")
	assert.Error(t, err)
	assert.True(t, IsNotFound(err))
}
