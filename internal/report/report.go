// Package report assembles and delivers the end-of-suite status message.
//
// The message is Slack mrkdwn: a facts header, run counters, a per-DAG
// failure breakdown, any failures among the suite's own tasks, and a link to
// the monitoring view.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flightcheck-systems/flightcheck/internal/airflow"
	"github.com/flightcheck-systems/flightcheck/internal/metrics"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// Markers prefixing failing task lines, one per outcome class.
const (
	markerFailed         = ":red_circle:"
	markerUpstreamFailed = ":large_orange_circle:"
	markerOther          = ":black_circle:"
)

// Loader fetches the terminal record of one triggered DAG run.
type Loader interface {
	RunRecord(ctx context.Context, dagID, runID string) (*types.RunRecord, error)
}

// Dispatcher delivers the finished report text.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string) error
}

// Input carries everything a report needs besides the run records themselves.
type Input struct {
	Refs       []types.RunRef
	Facts      types.Facts
	OwnTasks   []types.TaskResult
	MonitorURL string
}

// Summary is a built report plus the counters behind it.
type Summary struct {
	Text           string
	DagCount       int
	FailedDagCount int
}

// Reporter loads triggered run records and turns them into one status message.
type Reporter struct {
	loader     Loader
	dispatcher Dispatcher
	exclude    map[string]struct{}
	logger     *slog.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the reporter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// New creates a Reporter. Tasks named in cfg.ExcludeTasks are bookkeeping
// tasks of the triggered DAGs and never appear in the failure breakdown.
func New(loader Loader, dispatcher Dispatcher, cfg types.ReportConfig, opts ...Option) *Reporter {
	r := &Reporter{
		loader:     loader,
		dispatcher: dispatcher,
		exclude:    make(map[string]struct{}, len(cfg.ExcludeTasks)),
		logger:     slog.Default(),
	}
	for _, id := range cfg.ExcludeTasks {
		r.exclude[id] = struct{}{}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Build loads the referenced run records and assembles the report text. It
// never dispatches; callers that want delivery use Run. Runs that cannot be
// loaded are skipped, never fatal.
func (r *Reporter) Build(ctx context.Context, in Input) *Summary {
	var dagCount, failedDagCount int
	var details strings.Builder

	for _, ref := range in.Refs {
		rec, err := r.loader.RunRecord(ctx, ref.DagID, ref.RunID)
		if err != nil {
			if airflow.IsNotFound(err) {
				r.logger.Debug("run record not found, skipping", "dagId", ref.DagID, "runId", ref.RunID)
			} else {
				r.logger.Warn("loading run record failed, skipping", "dagId", ref.DagID, "runId", ref.RunID, "error", err)
			}
			continue
		}
		dagCount++

		var failing []string
		for _, task := range rec.Tasks {
			if _, ok := r.exclude[task.TaskID]; ok {
				continue
			}
			if task.Outcome == types.OutcomeSuccess {
				continue
			}
			// Marker and task id are two spaces apart in the delivered message.
			failing = append(failing, fmt.Sprintf("%s  %s : %s \n", outcomeMarker(task.Outcome), task.TaskID, task.State))
		}
		if len(failing) == 0 {
			continue
		}
		failedDagCount++
		fmt.Fprintf(&details, " *%s : %s* \n", rec.DagID, rec.State)
		for _, line := range failing {
			details.WriteString(line)
		}
	}

	var b strings.Builder
	b.WriteString("Results generated for:\n\n")
	for _, line := range factLines(in.Facts) {
		b.WriteString(line)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "*Total DAGS*: %d \n", dagCount)
	fmt.Fprintf(&b, "*Success DAGS*: %d :green_apple: \n", dagCount-failedDagCount)
	fmt.Fprintf(&b, "*Failed DAGS*: %d :apple: \n \n", failedDagCount)
	if failedDagCount > 0 {
		b.WriteString("*Failure Details:* \n")
		b.WriteString(details.String())
	}

	var ownFailed []string
	for _, task := range in.OwnTasks {
		if task.Outcome == types.OutcomeFailed {
			ownFailed = append(ownFailed, fmt.Sprintf("%s %s \n", markerFailed, task.TaskID))
		}
	}
	if len(ownFailed) > 0 {
		b.WriteString("\nSome suite tasks failed, please check with the monitoring link below \n")
		for _, line := range ownFailed {
			b.WriteString(line)
		}
	}

	fmt.Fprintf(&b, "\n <%s|Link> to the monitoring view of the above run \n", in.MonitorURL)

	return &Summary{
		Text:           b.String(),
		DagCount:       dagCount,
		FailedDagCount: failedDagCount,
	}
}

// Run builds the report, logs it, and dispatches it. Dispatch failure is the
// one fatal error here: logged, then returned.
func (r *Reporter) Run(ctx context.Context, in Input) (*Summary, error) {
	summary := r.Build(ctx, in)
	r.logger.Info("suite report assembled",
		"dagCount", summary.DagCount,
		"failedDagCount", summary.FailedDagCount,
		"report", summary.Text,
	)

	if err := r.dispatcher.Dispatch(ctx, summary.Text); err != nil {
		metrics.DispatchesFailed.Add(1)
		r.logger.Error("report dispatch failed", "error", err)
		return summary, fmt.Errorf("dispatching report: %w", err)
	}
	metrics.ReportsDispatched.Add(1)
	return summary, nil
}

// factLines renders the version/environment facts in their declared order.
// Facts that could not be resolved render as "N/A".
func factLines(f types.Facts) []string {
	facts := []struct {
		label string
		value string
	}{
		{"Runtime version", f.RuntimeVersion},
		{"Python version", f.PythonVersion},
		{"Airflow version", f.AirflowVersion},
		{"Executor", f.Executor},
		{"Astro-SDK version", f.SDKVersion},
		{"Cloud provider", f.CloudProvider},
	}

	lines := make([]string, 0, len(facts))
	for _, fact := range facts {
		value := fact.value
		if value == "" {
			value = "N/A"
		}
		lines = append(lines, fmt.Sprintf("*%s:* `%s`\n", fact.label, value))
	}
	return lines
}

func outcomeMarker(o types.TaskOutcome) string {
	switch o {
	case types.OutcomeFailed:
		return markerFailed
	case types.OutcomeUpstreamFailed:
		return markerUpstreamFailed
	default:
		return markerOther
	}
}
