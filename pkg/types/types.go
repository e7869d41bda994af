// Package types defines the public domain types for the flightcheck verification suite.
package types

import "time"

// RunRef identifies one triggered DAG run on the target deployment.
type RunRef struct {
	TaskID string `json:"taskId"`
	DagID  string `json:"dagId"`
	RunID  string `json:"runId"`
}

// TaskResult is one named task's terminal outcome. The raw orchestrator state
// is kept for display; the closed Outcome classification is decided once, at
// the boundary where the state enters this process.
type TaskResult struct {
	TaskID  string      `json:"taskId"`
	State   string      `json:"state"`
	Outcome TaskOutcome `json:"outcome"`
}

// RunRecord is the loaded record of one triggered run: its terminal state and
// the outcomes of its child tasks.
type RunRecord struct {
	DagID string       `json:"dagId"`
	RunID string       `json:"runId"`
	State RunState     `json:"state"`
	Tasks []TaskResult `json:"tasks,omitempty"`
}

// Facts are the probed deployment attributes shown in the report header.
// Empty values render as "N/A".
type Facts struct {
	RuntimeVersion string `json:"runtimeVersion,omitempty"`
	PythonVersion  string `json:"pythonVersion,omitempty"`
	AirflowVersion string `json:"airflowVersion,omitempty"`
	Executor       string `json:"executor,omitempty"`
	SDKVersion     string `json:"sdkVersion,omitempty"`
	CloudProvider  string `json:"cloudProvider,omitempty"`
}

// SuiteExecution is the persisted record of one master suite execution.
type SuiteExecution struct {
	ID             string       `json:"id"`
	SuiteName      string       `json:"suiteName"`
	LogicalDate    string       `json:"logicalDate"`
	Refs           []RunRef     `json:"refs,omitempty"`
	OwnTasks       []TaskResult `json:"ownTasks,omitempty"`
	Facts          Facts        `json:"facts,omitempty"`
	DagCount       int          `json:"dagCount"`
	FailedDagCount int          `json:"failedDagCount"`
	Report         string       `json:"report,omitempty"`
	StartedAt      time.Time    `json:"startedAt"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	DispatchedAt   *time.Time   `json:"dispatchedAt,omitempty"`
}

// Failed reports whether the execution ended with any failed triggered run or
// any failed task of the master execution itself.
func (e SuiteExecution) Failed() bool {
	if e.FailedDagCount > 0 {
		return true
	}
	for _, t := range e.OwnTasks {
		if t.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
