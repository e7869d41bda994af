package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flightcheck-systems/flightcheck/internal/config"
	"github.com/flightcheck-systems/flightcheck/internal/history"
)

const historyTimeout = 10 * time.Second

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [execution-id]",
		Short: "Show recorded suite executions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			return runHistory(configDir(cmd), id, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of executions to list")
	return cmd
}

func runHistory(dir, id string, limit int) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	store, err := history.New(ctx, cfg.History)
	if err != nil {
		return fmt.Errorf("creating history store: %w", err)
	}

	if id != "" {
		return showExecution(ctx, store, id)
	}
	return listExecutions(ctx, store, cfg.Suite.Name, limit)
}

func listExecutions(ctx context.Context, store history.Store, suiteName string, limit int) error {
	execs, err := store.ListExecutions(ctx, suiteName, limit)
	if err != nil {
		return fmt.Errorf("listing executions: %w", err)
	}

	if len(execs) == 0 {
		fmt.Println("No recorded executions.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Recent executions for %s:\n", suiteName)
	fmt.Println()

	for _, e := range execs {
		verdict := color.GreenString("PASS")
		switch {
		case e.CompletedAt == nil:
			verdict = color.YellowString("INCOMPLETE")
		case e.Failed():
			verdict = color.RedString("FAIL")
		}
		fmt.Printf("  %s  %s  %-10s dags=%d failed=%d\n",
			e.ID, e.StartedAt.Format(time.RFC3339), verdict, e.DagCount, e.FailedDagCount)
	}
	fmt.Println()
	return nil
}

func showExecution(ctx context.Context, store history.Store, id string) error {
	e, err := store.GetExecution(ctx, id)
	if err != nil {
		return fmt.Errorf("loading execution: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Execution: %s\n", e.ID)
	fmt.Printf("  Suite:        %s\n", e.SuiteName)
	fmt.Printf("  Logical date: %s\n", e.LogicalDate)
	fmt.Printf("  Started:      %s\n", e.StartedAt.Format(time.RFC3339))
	if e.CompletedAt != nil {
		fmt.Printf("  Completed:    %s\n", e.CompletedAt.Format(time.RFC3339))
	}
	if e.DispatchedAt != nil {
		fmt.Printf("  Dispatched:   %s\n", e.DispatchedAt.Format(time.RFC3339))
	}
	fmt.Printf("  DAG runs:     %d total, %d failed\n", e.DagCount, e.FailedDagCount)

	if failed := failedOwnTasks(e.OwnTasks); len(failed) > 0 {
		color.Red("  Failed suite tasks: %s", strings.Join(failed, ", "))
	}

	if e.Report != "" {
		fmt.Println()
		_, _ = bold.Println("Delivered report:")
		fmt.Println(e.Report)
	}
	return nil
}
