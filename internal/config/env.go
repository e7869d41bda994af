package config

import (
	"os"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// applyEnv overlays recognized environment variables onto the configuration.
// The environment wins over the file so deployments can inject credentials
// without templating YAML. Slack and SNS sinks are appended when their
// settings arrive purely through the environment, which is how the Lambda
// entrypoints and most CI wiring configure notification.
func applyEnv(cfg *types.Config) {
	setIfEnv(&cfg.Airflow.BaseURL, "AIRFLOW_BASE_URL")
	setIfEnv(&cfg.Airflow.Username, "AIRFLOW_USERNAME")
	setIfEnv(&cfg.Airflow.Password, "AIRFLOW_PASSWORD")
	setIfEnv(&cfg.Airflow.Token, "AIRFLOW_TOKEN")
	setIfEnv(&cfg.Transfer.AMIID, "AWS_AMI_ID")
	setIfEnv(&cfg.Transfer.SecurityGroupID, "AWS_INBOUND_SECURITY_GROUP_ID")
	setIfEnv(&cfg.Transfer.SFTP.Username, "SFTP_USERNAME")
	setIfEnv(&cfg.Transfer.SFTP.Password, "SFTP_PASSWORD")
	setIfEnv(&cfg.Transfer.FTP.Username, "FTP_USERNAME")
	setIfEnv(&cfg.Transfer.FTP.Password, "FTP_PASSWORD")
	setIfEnv(&cfg.Report.RuntimeVersion, "RUNTIME_VERSION")
	setIfEnv(&cfg.Report.PythonVersion, "PYTHON_VERSION")
	setIfEnv(&cfg.Report.CloudProvider, "CLOUD_PROVIDER")

	if !hasSink(cfg, types.NotifySlack) && (os.Getenv("SLACK_WEBHOOK_URL") != "" || os.Getenv("SLACK_WEBHOOK_SECRET_ARN") != "") {
		cfg.Notify = append(cfg.Notify, types.SinkConfig{Type: types.NotifySlack})
	}
	if !hasSink(cfg, types.NotifySNS) && os.Getenv("SNS_TOPIC_ARN") != "" {
		cfg.Notify = append(cfg.Notify, types.SinkConfig{Type: types.NotifySNS})
	}
	for i := range cfg.Notify {
		switch cfg.Notify[i].Type {
		case types.NotifySlack:
			setIfEnv(&cfg.Notify[i].WebhookURL, "SLACK_WEBHOOK_URL")
			setIfEnv(&cfg.Notify[i].WebhookSecretARN, "SLACK_WEBHOOK_SECRET_ARN")
			setIfEnv(&cfg.Notify[i].Channel, "SLACK_CHANNEL")
			setIfEnv(&cfg.Notify[i].Username, "SLACK_USERNAME")
		case types.NotifySNS:
			setIfEnv(&cfg.Notify[i].TopicARN, "SNS_TOPIC_ARN")
			setIfEnv(&cfg.Notify[i].Subject, "SNS_SUBJECT")
		}
	}

	if table := os.Getenv("TABLE_NAME"); table != "" {
		cfg.History.Provider = types.HistoryDynamoDB
		if cfg.History.DynamoDB == nil {
			cfg.History.DynamoDB = &types.DynamoDBConfig{}
		}
		cfg.History.DynamoDB.TableName = table
		setIfEnv(&cfg.History.DynamoDB.Region, "AWS_REGION")
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func hasSink(cfg *types.Config, t types.NotifierType) bool {
	for _, s := range cfg.Notify {
		if s.Type == t {
			return true
		}
	}
	return false
}
