// Package lambda provides shared types and initialization for Lambda handlers.
package lambda

// LaunchRequest is the input to the launcher Lambda.
type LaunchRequest struct {
	LogicalDate string `json:"logicalDate,omitempty"`
}

// LaunchResponse is the output of the launcher Lambda.
type LaunchResponse struct {
	ExecutionID string   `json:"executionId"`
	LogicalDate string   `json:"logicalDate"`
	Triggered   int      `json:"triggered"`
	Failed      int      `json:"failed"`
	RunIDs      []string `json:"runIds,omitempty"`
}

// ReportRequest is the input to the reporter Lambda. An empty execution ID
// selects the most recent recorded execution of the configured suite.
type ReportRequest struct {
	ExecutionID string `json:"executionId,omitempty"`
}

// ReportResponse is the output of the reporter Lambda.
type ReportResponse struct {
	ExecutionID    string `json:"executionId"`
	DagCount       int    `json:"dagCount"`
	FailedDagCount int    `json:"failedDagCount"`
	Dispatched     bool   `json:"dispatched"`
}
