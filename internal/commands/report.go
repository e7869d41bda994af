package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flightcheck-systems/flightcheck/internal/airflow"
	"github.com/flightcheck-systems/flightcheck/internal/config"
	"github.com/flightcheck-systems/flightcheck/internal/history"
	"github.com/flightcheck-systems/flightcheck/internal/notify"
	"github.com/flightcheck-systems/flightcheck/internal/report"
	"github.com/flightcheck-systems/flightcheck/internal/suite"
)

const reportTimeout = 5 * time.Minute

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	var noDispatch bool

	cmd := &cobra.Command{
		Use:   "report [execution-id]",
		Short: "Rebuild the report for a recorded execution",
		Long: `Reloads run states from the deployment for a recorded execution and rebuilds
its report. Without an ID the most recent execution of the suite is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			return runReport(configDir(cmd), id, noDispatch)
		},
	}

	cmd.Flags().BoolVar(&noDispatch, "no-dispatch", false, "Print the report instead of sending it to the configured sinks")
	return cmd
}

func runReport(dir, id string, noDispatch bool) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	store, err := history.New(ctx, cfg.History)
	if err != nil {
		return fmt.Errorf("creating history store: %w", err)
	}

	execution, err := loadExecution(ctx, store, cfg.Suite.Name, id)
	if err != nil {
		return err
	}

	client, err := airflow.NewClient(cfg.Airflow)
	if err != nil {
		return fmt.Errorf("creating airflow client: %w", err)
	}
	dispatcher, err := notify.NewDispatcher(cfg.Notify)
	if err != nil {
		return fmt.Errorf("creating notifier: %w", err)
	}
	reporter := report.New(client, dispatcher, cfg.Report)

	in := report.Input{
		Refs:       execution.Refs,
		Facts:      execution.Facts,
		OwnTasks:   execution.OwnTasks,
		MonitorURL: suite.MonitorURL(cfg, client.BaseURL()),
	}

	if noDispatch {
		summary := reporter.Build(ctx, in)
		fmt.Print(summary.Text)
		return nil
	}

	summary, err := reporter.Run(ctx, in)
	if err != nil {
		return err
	}
	color.Green("Report dispatched for execution %s (%d DAGs, %d failed)",
		execution.ID, summary.DagCount, summary.FailedDagCount)
	return nil
}
