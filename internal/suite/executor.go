// Package suite builds and executes the verification suite: it provisions
// the transfer endpoint, probes the deployment, triggers the example DAGs in
// chained groups, and hands the outcome to the report aggregator.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/flightcheck-systems/flightcheck/internal/airflow"
	"github.com/flightcheck-systems/flightcheck/internal/history"
	"github.com/flightcheck-systems/flightcheck/internal/metrics"
	"github.com/flightcheck-systems/flightcheck/internal/report"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// An instance that has not come up in this long never will; the wait is
// bounded separately from the much longer run timeout.
const transferWaitTimeout = 15 * time.Minute

// Suite phase task IDs recorded alongside the trigger tasks.
const (
	startTask            = "start"
	transferServicesTask = "start_transfer_services"
	transferConnsTask    = "create_transfer_connections"
)

// Client is the orchestrator surface the executor drives.
type Client interface {
	TriggerClient
	ProbeClient
	UpsertConnection(ctx context.Context, conn airflow.Connection) error
	BaseURL() string
}

// TransferManager provisions the transient file-transfer endpoint.
type TransferManager interface {
	Launch(ctx context.Context) (string, error)
	WaitRunning(ctx context.Context, instanceID string) (string, error)
	Terminate(ctx context.Context, instanceID string) error
}

// Executor runs one whole suite execution.
type Executor struct {
	cfg      *types.Config
	client   Client
	reporter *report.Reporter
	transfer TransferManager
	store    history.Store
	logger   *slog.Logger

	startupDelay time.Duration
	pollInterval time.Duration
	runTimeout   time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTransferManager enables the transfer-endpoint phase.
func WithTransferManager(m TransferManager) ExecutorOption {
	return func(e *Executor) { e.transfer = m }
}

// WithHistory records finished executions in the given store.
func WithHistory(s history.Store) ExecutorOption {
	return func(e *Executor) { e.store = s }
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor wires an executor from the loaded configuration.
func NewExecutor(cfg *types.Config, client Client, reporter *report.Reporter, opts ...ExecutorOption) (*Executor, error) {
	e := &Executor{
		cfg:          cfg,
		client:       client,
		reporter:     reporter,
		logger:       slog.Default(),
		startupDelay: 30 * time.Second,
		pollInterval: 30 * time.Second,
		runTimeout:   2 * time.Hour,
	}
	for _, field := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"suite.startupDelay", cfg.Suite.StartupDelay, &e.startupDelay},
		{"airflow.pollInterval", cfg.Airflow.PollInterval, &e.pollInterval},
		{"airflow.runTimeout", cfg.Airflow.RunTimeout, &e.runTimeout},
	} {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			return nil, fmt.Errorf("suite: invalid %s: %w", field.name, err)
		}
		*field.dst = d
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Run executes the suite once. The report is always attempted no matter what
// happened earlier; the returned error reflects report dispatch or context
// cancellation, never a failed triggered run.
func (e *Executor) Run(ctx context.Context, logicalDate string) (*types.SuiteExecution, error) {
	if logicalDate == "" {
		logicalDate = time.Now().UTC().Format("2006-01-02")
	}

	exec := &types.SuiteExecution{
		ID:          ulid.Make().String(),
		SuiteName:   e.cfg.Suite.Name,
		LogicalDate: logicalDate,
		StartedAt:   time.Now().UTC(),
	}
	e.logger.Info("suite execution starting",
		"executionId", exec.ID,
		"suite", exec.SuiteName,
		"logicalDate", logicalDate,
	)

	if err := e.sleep(ctx, e.startupDelay); err != nil {
		return exec, err
	}
	exec.OwnTasks = append(exec.OwnTasks, successTask(startTask))

	blocked := false
	if e.transfer != nil {
		instanceID, own := e.provisionTransfer(ctx)
		exec.OwnTasks = append(exec.OwnTasks, own...)
		if instanceID != "" {
			defer e.terminateTransfer(instanceID)
		}
		blocked = anyFailed(own)
	}

	// Every group's tasks are built up front: the aggregator sees the full
	// list of run IDs in group order even for groups that never start.
	groups := e.cfg.Suite.Groups
	groupTasks := make([][]TriggerTask, len(groups))
	for i, g := range groups {
		tasks, _ := Build(g.DAGs, logicalDate)
		groupTasks[i] = tasks
		for _, t := range tasks {
			exec.Refs = append(exec.Refs, types.RunRef{TaskID: t.TaskID, DagID: t.DagID, RunID: t.RunID})
		}
	}

	if blocked {
		// The transfer endpoint is a prerequisite for the whole fleet, so
		// nothing downstream runs and every task surfaces as upstream_failed.
		for _, id := range probeTaskIDs(e.cfg.Report) {
			exec.OwnTasks = append(exec.OwnTasks, upstreamFailedTask(id))
		}
		for _, tasks := range groupTasks {
			for _, t := range tasks {
				exec.OwnTasks = append(exec.OwnTasks, upstreamFailedTask(t.TaskID))
			}
		}
	} else {
		facts, probeTasks := ProbeFacts(ctx, e.client, e.cfg.Report, e.logger)
		exec.Facts = facts
		exec.OwnTasks = append(exec.OwnTasks, probeTasks...)

		results := make([][]types.TaskResult, len(groups))
		var wg sync.WaitGroup
		for i := range groups {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = e.runGroup(ctx, groups[idx].Name, groupTasks[idx])
			}(i)
		}
		wg.Wait()
		for _, own := range results {
			exec.OwnTasks = append(exec.OwnTasks, own...)
		}
	}

	summary, dispatchErr := e.report(ctx, exec)
	exec.Report = summary.Text
	exec.DagCount = summary.DagCount
	exec.FailedDagCount = summary.FailedDagCount

	now := time.Now().UTC()
	exec.CompletedAt = &now
	if dispatchErr == nil {
		exec.DispatchedAt = &now
	}

	e.record(exec)

	if dispatchErr != nil {
		return exec, dispatchErr
	}
	return exec, ctx.Err()
}

// runGroup runs one group's triggers as a sequential chain. A trigger error
// stops the chain and the remaining tasks surface as upstream_failed; a
// failed remote run does not stop the chain.
func (e *Executor) runGroup(ctx context.Context, name string, tasks []TriggerTask) []types.TaskResult {
	own := make([]types.TaskResult, 0, len(tasks))
	halted := false
	for _, task := range tasks {
		if halted {
			own = append(own, upstreamFailedTask(task.TaskID))
			continue
		}
		state, err := task.Run(ctx, e.client, e.pollInterval, e.runTimeout)
		if err != nil {
			e.logger.Error("trigger task failed", "group", name, "taskId", task.TaskID, "error", err)
			own = append(own, failedTask(task.TaskID))
			halted = true
			continue
		}
		e.logger.Info("triggered run finished", "group", name, "dagId", task.DagID, "runId", task.RunID, "state", state)
		own = append(own, successTask(task.TaskID))
	}
	return own
}

// provisionTransfer stands up the transfer instance and registers the SFTP
// and FTP connections pointing at it.
func (e *Executor) provisionTransfer(ctx context.Context) (string, []types.TaskResult) {
	instanceID, err := e.transfer.Launch(ctx)
	if err != nil {
		e.logger.Error("launching transfer instance failed", "error", err)
		return "", []types.TaskResult{failedTask(transferServicesTask)}
	}

	waitCtx, cancel := context.WithTimeout(ctx, transferWaitTimeout)
	defer cancel()
	host, err := e.transfer.WaitRunning(waitCtx, instanceID)
	if err != nil {
		e.logger.Error("transfer instance never became available", "instanceId", instanceID, "error", err)
		return instanceID, []types.TaskResult{failedTask(transferServicesTask)}
	}
	own := []types.TaskResult{successTask(transferServicesTask)}

	connFailed := false
	for _, conn := range transferConnections(host, e.cfg.Transfer) {
		if err := e.client.UpsertConnection(ctx, conn); err != nil {
			e.logger.Error("registering connection failed", "connectionId", conn.ID, "error", err)
			connFailed = true
		}
	}
	if connFailed {
		return instanceID, append(own, failedTask(transferConnsTask))
	}
	return instanceID, append(own, successTask(transferConnsTask))
}

// transferConnections builds the connection pair the transfer DAGs read from.
func transferConnections(host string, cfg types.TransferConfig) []airflow.Connection {
	return []airflow.Connection{
		{ID: "sftp_conn", ConnType: "sftp", Host: host, Login: cfg.SFTP.Username, Password: cfg.SFTP.Password},
		{ID: "ftp_conn", ConnType: "ftp", Host: host, Login: cfg.FTP.Username, Password: cfg.FTP.Password},
	}
}

// terminateTransfer runs on the way out regardless of how the suite ended,
// on a fresh context so cancellation cannot leak the instance.
func (e *Executor) terminateTransfer(instanceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := e.transfer.Terminate(ctx, instanceID); err != nil {
		e.logger.Error("terminating transfer instance failed", "instanceId", instanceID, "error", err)
	}
}

// report assembles and dispatches the final message. It runs even when the
// suite context is already canceled.
func (e *Executor) report(ctx context.Context, exec *types.SuiteExecution) (*report.Summary, error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
	}
	return e.reporter.Run(ctx, report.Input{
		Refs:       exec.Refs,
		Facts:      exec.Facts,
		OwnTasks:   exec.OwnTasks,
		MonitorURL: e.monitorURL(),
	})
}

// record persists the finished execution; history is best effort.
func (e *Executor) record(exec *types.SuiteExecution) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.store.PutExecution(ctx, *exec); err != nil {
		metrics.HistoryWritesFailed.Add(1)
		e.logger.Warn("recording execution failed", "executionId", exec.ID, "error", err)
		return
	}
	metrics.ExecutionsRecorded.Add(1)
}

// MonitorURL resolves the link target for the delivered report: the
// configured override, or the deployment's home view filtered to the suite's
// tag.
func MonitorURL(cfg *types.Config, baseURL string) string {
	if cfg.Report.MonitorURL != "" {
		return cfg.Report.MonitorURL
	}
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf("%s/home?tags=%s", base, url.QueryEscape(cfg.Suite.Name))
}

func (e *Executor) monitorURL() string {
	return MonitorURL(e.cfg, e.client.BaseURL())
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func successTask(id string) types.TaskResult {
	return types.TaskResult{TaskID: id, State: "success", Outcome: types.OutcomeSuccess}
}

func failedTask(id string) types.TaskResult {
	return types.TaskResult{TaskID: id, State: "failed", Outcome: types.OutcomeFailed}
}

func upstreamFailedTask(id string) types.TaskResult {
	return types.TaskResult{TaskID: id, State: "upstream_failed", Outcome: types.OutcomeUpstreamFailed}
}

func anyFailed(tasks []types.TaskResult) bool {
	for _, t := range tasks {
		if t.Outcome == types.OutcomeFailed {
			return true
		}
	}
	return false
}
