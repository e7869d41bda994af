package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flightcheck-systems/flightcheck/internal/config"
)

const starterConfig = `airflow:
  baseUrl: https://your-deployment.example.com
  # Credentials can live here or in the environment:
  # AIRFLOW_TOKEN, or AIRFLOW_USERNAME / AIRFLOW_PASSWORD.
  pollInterval: 30s
  runTimeout: 2h

suite:
  name: example-suite
  startupDelay: 30s
  # Omit groups to run the stock astro-sdk example set. To customize:
  # groups:
  #   - name: load_file
  #     dags:
  #       - taskId: load_file
  #         dagId: example_load_file

report:
  sdkDistribution: astro-sdk-python
  # runtimeVersion: "9.2.0"
  # pythonVersion: "3.9"

notify:
  - type: console
  # - type: slack
  #   webhookUrl: https://hooks.slack.com/services/T000/B000/XXXX
  #   channel: "#provider-alert"
  #   username: airflow_app
  # - type: sns
  #   topicArn: arn:aws:sns:us-east-1:123456789012:flightcheck-reports

history:
  provider: memory
  # provider: dynamodb
  # dynamodb:
  #   tableName: flightcheck-executions
  #   region: us-east-1
  #   createTable: true

transfer:
  enabled: false
  # amiId: ami-0123456789abcdef0
  # securityGroupId: sg-0123456789abcdef0
  # region: us-east-1
  # sftp:
  #   username: sftp_user
  #   password: change-me
  # ftp:
  #   username: ftp_user
  #   password: change-me
`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-name]",
		Short: "Scaffold a flightcheck project",
		Long:  "Creates a project directory with a starter flightcheck.yaml covering the stock example DAG groups.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0])
		},
	}
}

func runInit(projectName string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing flightcheck project: %s\n", projectName)

	if err := os.MkdirAll(projectName, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", projectName, err)
	}

	configPath := filepath.Join(projectName, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("  ✓ Wrote %s", configPath)
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  flightcheck run")
	fmt.Println("  flightcheck history")
	return nil
}
