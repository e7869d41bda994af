package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flightcheck-systems/flightcheck/internal/airflow"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	records map[string]*types.RunRecord
	errs    map[string]error
}

func (s *stubLoader) RunRecord(_ context.Context, _, runID string) (*types.RunRecord, error) {
	if err, ok := s.errs[runID]; ok {
		return nil, err
	}
	if rec, ok := s.records[runID]; ok {
		return rec, nil
	}
	return nil, &airflow.APIError{StatusCode: 404, Body: "not found"}
}

type stubDispatcher struct {
	messages []string
	err      error
}

func (s *stubDispatcher) Dispatch(_ context.Context, message string) error {
	s.messages = append(s.messages, message)
	return s.err
}

func task(id, state string) types.TaskResult {
	return types.TaskResult{TaskID: id, State: state, Outcome: types.ClassifyTaskState(state)}
}

func reportConfig() types.ReportConfig {
	return types.ReportConfig{ExcludeTasks: []string{"end", "get_report"}}
}

func newTestReporter(loader Loader, dispatcher Dispatcher) *Reporter {
	return New(loader, dispatcher, reportConfig())
}

func refs(pairs ...[2]string) []types.RunRef {
	out := make([]types.RunRef, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, types.RunRef{TaskID: p[0], DagID: p[0], RunID: p[1]})
	}
	return out
}

func TestBuild_AllSuccess(t *testing.T) {
	loader := &stubLoader{records: map[string]*types.RunRecord{
		"run-1": {
			DagID: "example_load_file", RunID: "run-1", State: types.RunSuccess,
			Tasks: []types.TaskResult{task("extract", "success"), task("load", "success"), task("end", "success")},
		},
		"run-2": {
			DagID: "example_dataframe", RunID: "run-2", State: types.RunSuccess,
			Tasks: []types.TaskResult{task("transform", "success")},
		},
	}}
	r := newTestReporter(loader, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{
		Refs:       refs([2]string{"example_load_file", "run-1"}, [2]string{"example_dataframe", "run-2"}),
		MonitorURL: "https://airflow.example.com/home?tags=nightly",
	})

	assert.Equal(t, 2, summary.DagCount)
	assert.Equal(t, 0, summary.FailedDagCount)
	assert.Contains(t, summary.Text, "*Total DAGS*: 2 \n")
	assert.Contains(t, summary.Text, "*Success DAGS*: 2 :green_apple: \n")
	assert.Contains(t, summary.Text, "*Failed DAGS*: 0 :apple: \n \n")
	assert.NotContains(t, summary.Text, "*Failure Details:*")
	assert.NotContains(t, summary.Text, "Some suite tasks failed")
	assert.Contains(t, summary.Text, "<https://airflow.example.com/home?tags=nightly|Link>")
}

func TestBuild_FailureBreakdown(t *testing.T) {
	loader := &stubLoader{records: map[string]*types.RunRecord{
		"run-1": {
			DagID: "example_load_file", RunID: "run-1", State: types.RunSuccess,
			Tasks: []types.TaskResult{task("load", "success")},
		},
		"run-2": {
			DagID: "example_transform_mssql", RunID: "run-2", State: types.RunFailed,
			Tasks: []types.TaskResult{
				task("extract", "success"),
				task("transform", "failed"),
				task("save", "upstream_failed"),
				task("end", "failed"), // excluded bookkeeping task
			},
		},
	}}
	r := newTestReporter(loader, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{
		Refs: refs([2]string{"example_load_file", "run-1"}, [2]string{"example_transform_mssql", "run-2"}),
	})

	assert.Equal(t, 2, summary.DagCount)
	assert.Equal(t, 1, summary.FailedDagCount)
	assert.Contains(t, summary.Text, "*Failure Details:* \n")
	assert.Contains(t, summary.Text, " *example_transform_mssql : failed* \n")
	assert.Contains(t, summary.Text, ":red_circle:  transform : failed \n")
	assert.Contains(t, summary.Text, ":large_orange_circle:  save : upstream_failed \n")
	assert.NotContains(t, summary.Text, "end : failed")
	assert.NotContains(t, summary.Text, "example_load_file :")
}

func TestBuild_NonTerminalTaskGetsGenericMarker(t *testing.T) {
	loader := &stubLoader{records: map[string]*types.RunRecord{
		"run-1": {
			DagID: "example_append", RunID: "run-1", State: types.RunRunning,
			Tasks: []types.TaskResult{task("append", "skipped")},
		},
	}}
	r := newTestReporter(loader, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{Refs: refs([2]string{"example_append", "run-1"})})

	assert.Equal(t, 1, summary.FailedDagCount)
	assert.Contains(t, summary.Text, ":black_circle:  append : skipped \n")
	assert.Contains(t, summary.Text, " *example_append : running* \n")
}

func TestBuild_MissingRunSkipped(t *testing.T) {
	loader := &stubLoader{records: map[string]*types.RunRecord{
		"run-1": {
			DagID: "example_load_file", RunID: "run-1", State: types.RunSuccess,
			Tasks: []types.TaskResult{task("load", "success")},
		},
	}}
	r := newTestReporter(loader, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{
		Refs: refs([2]string{"example_load_file", "run-1"}, [2]string{"example_merge_bigquery", "never-started"}),
	})

	assert.Equal(t, 1, summary.DagCount)
	assert.Equal(t, 0, summary.FailedDagCount)
	assert.Contains(t, summary.Text, "*Total DAGS*: 1 \n")
}

func TestBuild_LoaderErrorSkipped(t *testing.T) {
	loader := &stubLoader{
		records: map[string]*types.RunRecord{
			"run-1": {
				DagID: "example_load_file", RunID: "run-1", State: types.RunSuccess,
				Tasks: []types.TaskResult{task("load", "success")},
			},
		},
		errs: map[string]error{"run-2": errors.New("connection reset")},
	}
	r := newTestReporter(loader, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{
		Refs: refs([2]string{"example_load_file", "run-1"}, [2]string{"example_dataframe", "run-2"}),
	})

	assert.Equal(t, 1, summary.DagCount)
}

func TestBuild_FactsHeader(t *testing.T) {
	r := newTestReporter(&stubLoader{}, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{
		Facts: types.Facts{
			RuntimeVersion: "9.2.0",
			AirflowVersion: "2.7.1",
			Executor:       "CeleryExecutor",
		},
	})

	assert.Contains(t, summary.Text, "*Runtime version:* `9.2.0`\n")
	assert.Contains(t, summary.Text, "*Python version:* `N/A`\n")
	assert.Contains(t, summary.Text, "*Airflow version:* `2.7.1`\n")
	assert.Contains(t, summary.Text, "*Executor:* `CeleryExecutor`\n")
	assert.Contains(t, summary.Text, "*Astro-SDK version:* `N/A`\n")
	assert.Contains(t, summary.Text, "*Cloud provider:* `N/A`\n")

	// Facts appear in their declared order.
	runtimeIdx := strings.Index(summary.Text, "*Runtime version:*")
	executorIdx := strings.Index(summary.Text, "*Executor:*")
	cloudIdx := strings.Index(summary.Text, "*Cloud provider:*")
	assert.Less(t, runtimeIdx, executorIdx)
	assert.Less(t, executorIdx, cloudIdx)
}

func TestBuild_OwnTaskFailures(t *testing.T) {
	r := newTestReporter(&stubLoader{}, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{
		OwnTasks: []types.TaskResult{
			task("start_transfer", "failed"),
			task("probe_facts", "success"),
		},
	})

	assert.Contains(t, summary.Text, "\nSome suite tasks failed, please check with the monitoring link below \n")
	assert.Contains(t, summary.Text, ":red_circle: start_transfer \n")
	assert.NotContains(t, summary.Text, "probe_facts")
}

func TestBuild_Idempotent(t *testing.T) {
	loader := &stubLoader{records: map[string]*types.RunRecord{
		"run-1": {
			DagID: "example_load_file", RunID: "run-1", State: types.RunFailed,
			Tasks: []types.TaskResult{task("load", "failed")},
		},
	}}
	r := newTestReporter(loader, &stubDispatcher{})

	in := Input{
		Refs:       refs([2]string{"example_load_file", "run-1"}),
		Facts:      types.Facts{AirflowVersion: "2.7.1"},
		MonitorURL: "https://airflow.example.com/home?tags=nightly",
	}

	first := r.Build(context.Background(), in)
	second := r.Build(context.Background(), in)
	assert.Equal(t, first.Text, second.Text)
}

func TestBuild_ExactFormat(t *testing.T) {
	loader := &stubLoader{records: map[string]*types.RunRecord{
		"run-1": {
			DagID: "example_load_file", RunID: "run-1", State: types.RunFailed,
			Tasks: []types.TaskResult{task("load", "failed")},
		},
	}}
	r := newTestReporter(loader, &stubDispatcher{})

	summary := r.Build(context.Background(), Input{
		Refs: refs([2]string{"example_load_file", "run-1"}),
		Facts: types.Facts{
			RuntimeVersion: "9.2.0",
			PythonVersion:  "3.10.12",
			AirflowVersion: "2.7.1",
			Executor:       "CeleryExecutor",
			SDKVersion:     "1.7.0",
			CloudProvider:  "aws",
		},
		OwnTasks:   []types.TaskResult{task("start_transfer", "failed")},
		MonitorURL: "https://airflow.example.com/home?tags=nightly",
	})

	expected := "Results generated for:\n\n" +
		"*Runtime version:* `9.2.0`\n" +
		"*Python version:* `3.10.12`\n" +
		"*Airflow version:* `2.7.1`\n" +
		"*Executor:* `CeleryExecutor`\n" +
		"*Astro-SDK version:* `1.7.0`\n" +
		"*Cloud provider:* `aws`\n" +
		"\n" +
		"*Total DAGS*: 1 \n" +
		"*Success DAGS*: 0 :green_apple: \n" +
		"*Failed DAGS*: 1 :apple: \n \n" +
		"*Failure Details:* \n" +
		" *example_load_file : failed* \n" +
		":red_circle:  load : failed \n" +
		"\nSome suite tasks failed, please check with the monitoring link below \n" +
		":red_circle: start_transfer \n" +
		"\n <https://airflow.example.com/home?tags=nightly|Link> to the monitoring view of the above run \n"

	assert.Equal(t, expected, summary.Text)
}

func TestRun_DispatchesReport(t *testing.T) {
	dispatcher := &stubDispatcher{}
	r := newTestReporter(&stubLoader{}, dispatcher)

	summary, err := r.Run(context.Background(), Input{MonitorURL: "https://airflow.example.com"})
	require.NoError(t, err)
	require.Len(t, dispatcher.messages, 1)
	assert.Equal(t, summary.Text, dispatcher.messages[0])
}

func TestRun_DispatchFailureReturned(t *testing.T) {
	dispatcher := &stubDispatcher{err: errors.New("webhook down")}
	r := newTestReporter(&stubLoader{}, dispatcher)

	summary, err := r.Run(context.Background(), Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatching report")
	assert.NotNil(t, summary)
}
