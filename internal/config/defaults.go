package config

import "github.com/flightcheck-systems/flightcheck/pkg/types"

// Fallbacks applied after the environment pass. Durations are kept as strings
// in the config struct and parsed once by each component's constructor.
const (
	defaultSuiteName       = "example-suite"
	defaultStartupDelay    = "30s"
	defaultRequestTimeout  = "30s"
	defaultPollInterval    = "30s"
	defaultRunTimeout      = "2h"
	defaultInstanceType    = "t2.micro"
	defaultLaunchWait      = "2m"
	defaultTransferPoll    = "30s"
	defaultHistoryTTL      = "720h"
	defaultSDKDistribution = "astro-sdk-python"
	defaultSlackChannel    = "#provider-alert"
	defaultSlackUsername   = "airflow_app"
)

func applyDefaults(cfg *types.Config) {
	if cfg.Suite.Name == "" {
		cfg.Suite.Name = defaultSuiteName
	}
	if cfg.Suite.StartupDelay == "" {
		cfg.Suite.StartupDelay = defaultStartupDelay
	}
	if len(cfg.Suite.Groups) == 0 {
		cfg.Suite.Groups = DefaultGroups()
	}
	if cfg.Airflow.Timeout == "" {
		cfg.Airflow.Timeout = defaultRequestTimeout
	}
	if cfg.Airflow.PollInterval == "" {
		cfg.Airflow.PollInterval = defaultPollInterval
	}
	if cfg.Airflow.RunTimeout == "" {
		cfg.Airflow.RunTimeout = defaultRunTimeout
	}
	if cfg.Transfer.InstanceType == "" {
		cfg.Transfer.InstanceType = defaultInstanceType
	}
	if cfg.Transfer.LaunchWait == "" {
		cfg.Transfer.LaunchWait = defaultLaunchWait
	}
	if cfg.Transfer.PollInterval == "" {
		cfg.Transfer.PollInterval = defaultTransferPoll
	}
	if len(cfg.Report.ExcludeTasks) == 0 {
		cfg.Report.ExcludeTasks = []string{"end", "get_report"}
	}
	if cfg.Report.SDKDistribution == "" {
		cfg.Report.SDKDistribution = defaultSDKDistribution
	}
	if cfg.History.Provider == "" {
		cfg.History.Provider = types.HistoryMemory
	}
	if cfg.History.TTL == "" {
		cfg.History.TTL = defaultHistoryTTL
	}
	for i := range cfg.Notify {
		if cfg.Notify[i].Type != types.NotifySlack {
			continue
		}
		if cfg.Notify[i].Channel == "" {
			cfg.Notify[i].Channel = defaultSlackChannel
		}
		if cfg.Notify[i].Username == "" {
			cfg.Notify[i].Username = defaultSlackUsername
		}
	}
}

// DefaultGroups returns the stock verification fleet: the astro-sdk example
// DAGs grouped by provider, one chain per group. Task and DAG IDs coincide for
// the stock fleet, which keeps run IDs readable.
func DefaultGroups() []types.GroupConfig {
	group := func(name string, dagIDs ...string) types.GroupConfig {
		specs := make([]types.TriggerSpec, len(dagIDs))
		for i, id := range dagIDs {
			specs[i] = types.TriggerSpec{TaskID: id, DagID: id}
		}
		return types.GroupConfig{Name: name, DAGs: specs}
	}
	return []types.GroupConfig{
		group("load_file",
			"example_google_bigquery_gcs_load_and_save",
			"example_amazon_s3_postgres_load_and_save",
			"example_amazon_s3_postgres",
			"example_load_file",
		),
		group("transform",
			"example_amazon_s3_snowflake_transform",
			"example_transform_mssql",
		),
		group("dataframe", "example_dataframe"),
		group("append",
			"example_append",
			"example_snowflake_partial_table_with_append",
		),
		group("merge", "example_merge_bigquery"),
		group("dynamic_tasks",
			"example_dynamic_map_task",
			"example_dynamic_task_template",
		),
		group("data_validation", "data_validation_check_column"),
		group("datasets", "example_dataset_producer"),
		group("cleanup_snowflake", "example_snowflake_cleanup"),
	}
}
