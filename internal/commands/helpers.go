// Package commands implements the CLI subcommands for the flightcheck binary.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flightcheck-systems/flightcheck/internal/airflow"
	"github.com/flightcheck-systems/flightcheck/internal/history"
	"github.com/flightcheck-systems/flightcheck/internal/notify"
	"github.com/flightcheck-systems/flightcheck/internal/report"
	"github.com/flightcheck-systems/flightcheck/internal/suite"
	"github.com/flightcheck-systems/flightcheck/internal/transfer"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// configDir reads the root --config flag, defaulting to the working directory.
func configDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = "."
	}
	return dir
}

// buildExecutor wires the suite executor and its collaborators from config.
func buildExecutor(ctx context.Context, cfg *types.Config) (*suite.Executor, error) {
	client, err := airflow.NewClient(cfg.Airflow)
	if err != nil {
		return nil, fmt.Errorf("creating airflow client: %w", err)
	}

	dispatcher, err := notify.NewDispatcher(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}
	reporter := report.New(client, dispatcher, cfg.Report)

	opts := []suite.ExecutorOption{}
	if cfg.Transfer.Enabled {
		mgr, err := transfer.New(cfg.Transfer)
		if err != nil {
			return nil, fmt.Errorf("creating transfer manager: %w", err)
		}
		opts = append(opts, suite.WithTransferManager(mgr))
	}

	store, err := history.New(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("creating history store: %w", err)
	}
	opts = append(opts, suite.WithHistory(store))

	return suite.NewExecutor(cfg, client, reporter, opts...)
}

// loadExecution fetches one recorded execution, or the most recent execution
// of the suite when id is empty.
func loadExecution(ctx context.Context, store history.Store, suiteName, id string) (*types.SuiteExecution, error) {
	if id != "" {
		exec, err := store.GetExecution(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading execution: %w", err)
		}
		return exec, nil
	}

	execs, err := store.ListExecutions(ctx, suiteName, 1)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	if len(execs) == 0 {
		return nil, fmt.Errorf("no recorded executions for suite %s", suiteName)
	}
	return &execs[0], nil
}

// failedOwnTasks lists the suite's own tasks that ended failed.
func failedOwnTasks(tasks []types.TaskResult) []string {
	var failed []string
	for _, t := range tasks {
		if t.Outcome == types.OutcomeFailed {
			failed = append(failed, t.TaskID)
		}
	}
	return failed
}

// printExecution renders the execution summary for the terminal.
func printExecution(exec *types.SuiteExecution) {
	fmt.Println()
	fmt.Printf("  Execution:    %s\n", exec.ID)
	fmt.Printf("  Logical date: %s\n", exec.LogicalDate)
	fmt.Printf("  Total DAGs:   %d\n", exec.DagCount)
	if exec.FailedDagCount > 0 {
		fmt.Printf("  Failed DAGs:  %s\n", color.RedString("%d", exec.FailedDagCount))
	} else {
		fmt.Printf("  Failed DAGs:  %d\n", exec.FailedDagCount)
	}
	if failed := failedOwnTasks(exec.OwnTasks); len(failed) > 0 {
		color.Red("  Failed suite tasks: %s", strings.Join(failed, ", "))
	}
	if exec.DispatchedAt != nil {
		color.Green("  Report dispatched")
	} else {
		color.Yellow("  Report not dispatched")
	}
	fmt.Println()
}
