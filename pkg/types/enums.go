package types

// RunState represents the state of a triggered DAG run as reported by the
// orchestrator.
type RunState string

// RunState values mirror the Airflow dag-run state machine.
const (
	RunQueued  RunState = "queued"
	RunRunning RunState = "running"
	RunSuccess RunState = "success"
	RunFailed  RunState = "failed"
)

// Terminal reports whether the run has finished. Both terminal states are
// acceptable suite outcomes; a failed run is reported, not retried.
func (s RunState) Terminal() bool {
	return s == RunSuccess || s == RunFailed
}

// TaskOutcome is the closed classification of a task state used everywhere
// past the orchestrator boundary.
type TaskOutcome string

// TaskOutcome values enumerate the recognized task classifications.
const (
	OutcomeSuccess        TaskOutcome = "success"
	OutcomeFailed         TaskOutcome = "failed"
	OutcomeUpstreamFailed TaskOutcome = "upstream_failed"
	OutcomeOther          TaskOutcome = "other"
)

// ClassifyTaskState maps a raw orchestrator task state onto the closed outcome
// set. Any state outside the three recognized ones, including non-terminal
// states still present at aggregation time, is OutcomeOther.
func ClassifyTaskState(state string) TaskOutcome {
	switch state {
	case "success":
		return OutcomeSuccess
	case "failed":
		return OutcomeFailed
	case "upstream_failed":
		return OutcomeUpstreamFailed
	default:
		return OutcomeOther
	}
}

// NotifierType defines the notification sink type.
type NotifierType string

// NotifierType values enumerate the supported notification backends.
const (
	NotifySlack   NotifierType = "slack"
	NotifyConsole NotifierType = "console"
	NotifyFile    NotifierType = "file"
	NotifySNS     NotifierType = "sns"
)

// HistoryProvider selects the execution history backend.
type HistoryProvider string

// HistoryProvider values enumerate the supported history backends.
const (
	HistoryMemory   HistoryProvider = "memory"
	HistoryDynamoDB HistoryProvider = "dynamodb"
)
