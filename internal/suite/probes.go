package suite

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/flightcheck-systems/flightcheck/internal/metrics"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// ProbeClient is the orchestrator surface used to resolve environment facts.
type ProbeClient interface {
	Version(ctx context.Context) (string, error)
	ConfigValue(ctx context.Context, section, option string) (string, error)
	ProviderVersion(ctx context.Context, name string) (string, error)
}

// Probe task IDs, one per resolved fact.
const (
	probeVersionTask  = "get_airflow_version"
	probeExecutorTask = "get_airflow_executor"
	probeSDKTask      = "get_astro_sdk_version"
	probeCloudTask    = "get_astro_cloud_provider"
)

// probeTaskIDs lists the probes ProbeFacts would run for this configuration.
func probeTaskIDs(cfg types.ReportConfig) []string {
	ids := []string{probeVersionTask, probeExecutorTask, probeSDKTask}
	if cfg.CloudProvider == "" {
		ids = append(ids, probeCloudTask)
	}
	return ids
}

// ProbeFacts resolves the version/environment facts for the report header.
// Probes run concurrently; a failed probe leaves its fact empty, which the
// report renders as "N/A". The second return value is one task result per
// probe, in declared order.
func ProbeFacts(ctx context.Context, client ProbeClient, cfg types.ReportConfig, logger *slog.Logger) (types.Facts, []types.TaskResult) {
	facts := types.Facts{
		RuntimeVersion: cfg.RuntimeVersion,
		PythonVersion:  cfg.PythonVersion,
	}

	type probe struct {
		taskID string
		fn     func(context.Context) (string, error)
		dst    *string
	}
	probes := []probe{
		{probeVersionTask, client.Version, &facts.AirflowVersion},
		{probeExecutorTask, func(ctx context.Context) (string, error) {
			return client.ConfigValue(ctx, "core", "executor")
		}, &facts.Executor},
		{probeSDKTask, func(ctx context.Context) (string, error) {
			return client.ProviderVersion(ctx, cfg.SDKDistribution)
		}, &facts.SDKVersion},
	}
	if cfg.CloudProvider != "" {
		facts.CloudProvider = cfg.CloudProvider
	} else {
		probes = append(probes, probe{probeCloudTask, func(ctx context.Context) (string, error) {
			connID, err := client.ConfigValue(ctx, "logging", "remote_log_conn_id")
			if err != nil {
				return "", err
			}
			return classifyCloudProvider(connID), nil
		}, &facts.CloudProvider})
	}

	values := make([]string, len(probes))
	errs := make([]error, len(probes))
	var wg sync.WaitGroup

	for i, p := range probes {
		wg.Add(1)
		go func(idx int, p probe) {
			defer wg.Done()
			values[idx], errs[idx] = p.fn(ctx)
		}(i, p)
	}
	wg.Wait()

	results := make([]types.TaskResult, 0, len(probes))
	for i, p := range probes {
		if errs[i] != nil {
			metrics.ProbesFailed.Add(1)
			logger.Warn("environment probe failed", "probe", p.taskID, "error", errs[i])
			results = append(results, types.TaskResult{TaskID: p.taskID, State: "failed", Outcome: types.OutcomeFailed})
			continue
		}
		*p.dst = strings.TrimSpace(values[i])
		results = append(results, types.TaskResult{TaskID: p.taskID, State: "success", Outcome: types.OutcomeSuccess})
	}
	return facts, results
}

// classifyCloudProvider maps the deployment's remote-log connection ID onto
// the hosting cloud.
func classifyCloudProvider(connID string) string {
	switch {
	case strings.Contains(connID, "azure"):
		return "azure"
	case strings.Contains(connID, "s3"):
		return "aws"
	case strings.Contains(connID, "gcs"):
		return "gcs"
	default:
		return "unknown"
	}
}
