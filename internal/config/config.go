// Package config handles loading and validation of flightcheck.yaml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file flightcheck looks for in the config directory.
const FileName = "flightcheck.yaml"

// Load reads flightcheck.yaml from the given directory, applies environment
// overrides and defaults, and validates the result. Components downstream
// receive the returned struct; nothing else reads the environment.
func Load(dir string) (*types.Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a configuration from environment variables alone, for
// entrypoints that have no config file (the Lambda pair). The default suite
// groups are used unless overridden later by the caller.
func FromEnv() (*types.Config, error) {
	var cfg types.Config
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *types.Config) error {
	if cfg.Airflow.BaseURL == "" {
		return fmt.Errorf("airflow.baseUrl is required")
	}
	for _, field := range []struct{ name, value string }{
		{"airflow.timeout", cfg.Airflow.Timeout},
		{"airflow.pollInterval", cfg.Airflow.PollInterval},
		{"airflow.runTimeout", cfg.Airflow.RunTimeout},
		{"suite.startupDelay", cfg.Suite.StartupDelay},
		{"transfer.launchWait", cfg.Transfer.LaunchWait},
		{"transfer.pollInterval", cfg.Transfer.PollInterval},
		{"history.ttl", cfg.History.TTL},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	if len(cfg.Suite.Groups) == 0 {
		return fmt.Errorf("suite.groups is required")
	}
	seen := make(map[string]bool, len(cfg.Suite.Groups))
	for _, g := range cfg.Suite.Groups {
		if g.Name == "" {
			return fmt.Errorf("group name is required")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate group %q", g.Name)
		}
		seen[g.Name] = true
		if len(g.DAGs) == 0 {
			return fmt.Errorf("group %q has no dags", g.Name)
		}
		for _, d := range g.DAGs {
			if d.TaskID == "" || d.DagID == "" {
				return fmt.Errorf("group %q: taskId and dagId are required", g.Name)
			}
		}
	}
	if cfg.Transfer.Enabled {
		if cfg.Transfer.AMIID == "" {
			return fmt.Errorf("transfer.amiId is required when transfer is enabled")
		}
		if cfg.Transfer.SecurityGroupID == "" {
			return fmt.Errorf("transfer.securityGroupId is required when transfer is enabled")
		}
	}
	for i, sink := range cfg.Notify {
		switch sink.Type {
		case types.NotifySlack:
			if sink.WebhookURL == "" && sink.WebhookSecretARN == "" {
				return fmt.Errorf("notify[%d]: slack sink needs webhookUrl or webhookSecretArn", i)
			}
		case types.NotifyConsole:
		case types.NotifyFile:
			if sink.Path == "" {
				return fmt.Errorf("notify[%d]: file sink needs a path", i)
			}
		case types.NotifySNS:
			if sink.TopicARN == "" {
				return fmt.Errorf("notify[%d]: sns sink needs a topicArn", i)
			}
		default:
			return fmt.Errorf("notify[%d]: unknown sink type %q", i, sink.Type)
		}
	}
	switch cfg.History.Provider {
	case types.HistoryMemory:
	case types.HistoryDynamoDB:
		if cfg.History.DynamoDB == nil || cfg.History.DynamoDB.TableName == "" {
			return fmt.Errorf("history.dynamodb.tableName is required when provider is dynamodb")
		}
	default:
		return fmt.Errorf("unknown history provider %q", cfg.History.Provider)
	}
	return nil
}
