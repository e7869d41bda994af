// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	TriggersTotal       = expvar.NewInt("triggers_total")
	TriggersFailed      = expvar.NewInt("triggers_failed")
	RunsSucceeded       = expvar.NewInt("runs_succeeded")
	RunsFailed          = expvar.NewInt("runs_failed")
	ProbesFailed        = expvar.NewInt("probes_failed")
	ReportsDispatched   = expvar.NewInt("reports_dispatched")
	DispatchesFailed    = expvar.NewInt("dispatches_failed")
	InstancesLaunched   = expvar.NewInt("instances_launched")
	InstancesTerminated = expvar.NewInt("instances_terminated")
	ExecutionsRecorded  = expvar.NewInt("executions_recorded")
	HistoryWritesFailed = expvar.NewInt("history_writes_failed")
)
