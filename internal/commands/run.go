package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flightcheck-systems/flightcheck/internal/config"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var logicalDate string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the verification suite and dispatch the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(configDir(cmd), logicalDate)
		},
	}

	cmd.Flags().StringVar(&logicalDate, "logical-date", "", "Logical date for the run IDs (YYYY-MM-DD, default today UTC)")
	return cmd
}

func runSuite(dir, logicalDate string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		color.Yellow("\nReceived %s, wrapping up...", sig)
		cancel()
	}()

	exec, err := buildExecutor(ctx, cfg)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Running verification suite: %s\n", cfg.Suite.Name)

	execution, runErr := exec.Run(ctx, logicalDate)
	printExecution(execution)

	if runErr != nil {
		return runErr
	}
	if execution.Failed() {
		return fmt.Errorf("suite %s finished with failures", cfg.Suite.Name)
	}
	color.Green("Suite passed: all %d runs succeeded", execution.DagCount)
	return nil
}
