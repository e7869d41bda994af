package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flightcheck-systems/flightcheck/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "flightcheck",
		Short: "Integration verification suite for Airflow deployments",
		Long: `Flightcheck exercises an Airflow deployment by triggering its example DAGs
in chained groups, waiting for every run to reach a terminal state, and
delivering a status report. It provisions the transient SFTP/FTP endpoint
the transfer examples need, probes the deployment for version facts, and
records executions for later inspection.`,
		Version: version,
	}
	root.PersistentFlags().String("config", ".", "Directory containing flightcheck.yaml")

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewReportCmd(),
		commands.NewHistoryCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
