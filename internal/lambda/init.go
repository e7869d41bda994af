package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/flightcheck-systems/flightcheck/internal/airflow"
	"github.com/flightcheck-systems/flightcheck/internal/config"
	"github.com/flightcheck-systems/flightcheck/internal/history"
	"github.com/flightcheck-systems/flightcheck/internal/notify"
	"github.com/flightcheck-systems/flightcheck/internal/report"
	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// Deps holds shared dependencies for Lambda handlers.
type Deps struct {
	Config   *types.Config
	Client   *airflow.Client
	Store    history.Store
	Reporter *report.Reporter
	Logger   *slog.Logger
}

// Init creates shared dependencies from environment variables. Lambda
// deployments have no config file, so everything comes through the
// AIRFLOW_*, SLACK_*, SNS_* and TABLE_NAME variables that config.FromEnv
// recognizes; the stock suite groups apply.
func Init(ctx context.Context) (*Deps, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	client, err := airflow.NewClient(cfg.Airflow)
	if err != nil {
		return nil, fmt.Errorf("creating airflow client: %w", err)
	}

	dispatcher, err := notify.NewDispatcher(cfg.Notify, notify.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}

	store, err := history.New(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	return &Deps{
		Config:   cfg,
		Client:   client,
		Store:    store,
		Reporter: report.New(client, dispatcher, cfg.Report, report.WithLogger(logger)),
		Logger:   logger,
	}, nil
}
