package main

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)
	cfg := DefaultConfig()

	if name := os.Getenv("FLIGHTCHECK_TABLE_NAME"); name != "" {
		cfg.TableName = name
	}
	if url := os.Getenv("AIRFLOW_BASE_URL"); url != "" {
		cfg.AirflowBaseURL = url
	}
	if arn := os.Getenv("SLACK_WEBHOOK_SECRET_ARN"); arn != "" {
		cfg.WebhookSecretARN = arn
	}
	if expr := os.Getenv("FLIGHTCHECK_SCHEDULE"); expr != "" {
		cfg.ScheduleExpression = expr
	}
	cfg.DestroyOnDelete = os.Getenv("FLIGHTCHECK_DESTROY_ON_DELETE") == "true"

	stackName := "FlightcheckStack"
	if name := os.Getenv("FLIGHTCHECK_STACK_NAME"); name != "" {
		stackName = name
	}

	NewFlightcheckStack(app, stackName, cfg)
	app.Synth(nil)
}
