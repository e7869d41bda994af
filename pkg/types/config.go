package types

// TriggerSpec names one example DAG to trigger and the master task that owns
// the trigger. The pair also determines the deterministic run ID.
type TriggerSpec struct {
	TaskID string `yaml:"taskId" json:"taskId"`
	DagID  string `yaml:"dagId" json:"dagId"`
}

// GroupConfig is an ordered chain of trigger specs. Specs within a group run
// strictly in order; distinct groups run concurrently.
type GroupConfig struct {
	Name string        `yaml:"name" json:"name"`
	DAGs []TriggerSpec `yaml:"dags" json:"dags"`
}

// AirflowConfig holds connection settings for the target Airflow deployment.
type AirflowConfig struct {
	BaseURL      string `yaml:"baseUrl" json:"baseUrl"`
	Username     string `yaml:"username,omitempty" json:"username,omitempty"`
	Password     string `yaml:"password,omitempty" json:"password,omitempty"`
	Token        string `yaml:"token,omitempty" json:"token,omitempty"`
	Timeout      string `yaml:"timeout,omitempty" json:"timeout,omitempty"`           // per request, e.g. "30s"
	PollInterval string `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"` // between run-state polls, e.g. "30s"
	RunTimeout   string `yaml:"runTimeout,omitempty" json:"runTimeout,omitempty"`     // per triggered run, e.g. "2h"
}

// SuiteConfig defines the verification suite: which DAG groups to exercise and
// how the master execution paces itself.
type SuiteConfig struct {
	Name         string        `yaml:"name" json:"name"`
	StartupDelay string        `yaml:"startupDelay,omitempty" json:"startupDelay,omitempty"` // e.g. "30s"
	Groups       []GroupConfig `yaml:"groups" json:"groups"`
}

// CredentialConfig is a username/password pair for a provisioned service
// connection.
type CredentialConfig struct {
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// TransferConfig provisions the transient SFTP/FTP endpoint that the file
// transfer example DAGs read from.
type TransferConfig struct {
	Enabled         bool             `yaml:"enabled" json:"enabled"`
	Region          string           `yaml:"region,omitempty" json:"region,omitempty"`
	AMIID           string           `yaml:"amiId,omitempty" json:"amiId,omitempty"`
	SecurityGroupID string           `yaml:"securityGroupId,omitempty" json:"securityGroupId,omitempty"`
	InstanceType    string           `yaml:"instanceType,omitempty" json:"instanceType,omitempty"` // default "t2.micro"
	LaunchWait      string           `yaml:"launchWait,omitempty" json:"launchWait,omitempty"`     // settle time before polling, default "2m"
	PollInterval    string           `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"` // default "30s"
	SFTP            CredentialConfig `yaml:"sftp,omitempty" json:"sftp,omitempty"`
	FTP             CredentialConfig `yaml:"ftp,omitempty" json:"ftp,omitempty"`
}

// SinkConfig defines a notification sink for the suite report.
type SinkConfig struct {
	Type             NotifierType `yaml:"type" json:"type"`
	WebhookURL       string       `yaml:"webhookUrl,omitempty" json:"webhookUrl,omitempty"`
	WebhookSecretARN string       `yaml:"webhookSecretArn,omitempty" json:"webhookSecretArn,omitempty"`
	Channel          string       `yaml:"channel,omitempty" json:"channel,omitempty"`
	Username         string       `yaml:"username,omitempty" json:"username,omitempty"`
	Path             string       `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN         string       `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
	Subject          string       `yaml:"subject,omitempty" json:"subject,omitempty"`
}

// ReportConfig tunes report aggregation.
type ReportConfig struct {
	ExcludeTasks    []string `yaml:"excludeTasks,omitempty" json:"excludeTasks,omitempty"`       // default: end, get_report
	RuntimeVersion  string   `yaml:"runtimeVersion,omitempty" json:"runtimeVersion,omitempty"`   // deployment attribute, not probeable
	PythonVersion   string   `yaml:"pythonVersion,omitempty" json:"pythonVersion,omitempty"`     // deployment attribute, not probeable
	CloudProvider   string   `yaml:"cloudProvider,omitempty" json:"cloudProvider,omitempty"`     // overrides the remote-log probe
	SDKDistribution string   `yaml:"sdkDistribution,omitempty" json:"sdkDistribution,omitempty"` // provider package to version-probe
	MonitorURL      string   `yaml:"monitorUrl,omitempty" json:"monitorUrl,omitempty"`           // overrides the derived deployment link
}

// DynamoDBConfig holds DynamoDB connection and table settings.
type DynamoDBConfig struct {
	TableName   string `yaml:"tableName" json:"tableName"`
	Region      string `yaml:"region" json:"region"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreateTable bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// HistoryConfig selects where suite executions are recorded.
type HistoryConfig struct {
	Provider HistoryProvider `yaml:"provider,omitempty" json:"provider,omitempty"` // default "memory"
	TTL      string          `yaml:"ttl,omitempty" json:"ttl,omitempty"`           // retention, e.g. "720h"
	DynamoDB *DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// Config is the top-level flightcheck.yaml configuration. It is populated once
// at process start; components receive the sections they need and never read
// the environment themselves.
type Config struct {
	Airflow  AirflowConfig  `yaml:"airflow" json:"airflow"`
	Suite    SuiteConfig    `yaml:"suite" json:"suite"`
	Transfer TransferConfig `yaml:"transfer,omitempty" json:"transfer,omitempty"`
	Report   ReportConfig   `yaml:"report,omitempty" json:"report,omitempty"`
	Notify   []SinkConfig   `yaml:"notify,omitempty" json:"notify,omitempty"`
	History  HistoryConfig  `yaml:"history,omitempty" json:"history,omitempty"`
}
