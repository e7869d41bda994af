// Package notify delivers the suite report to configured destinations.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// Notifier is a report destination.
type Notifier interface {
	Send(ctx context.Context, message string) error
	Name() string
}

// Dispatcher fans the report out to every configured sink. Report delivery is
// the suite's one load-bearing side effect, so unlike fire-and-forget
// alerting, sink errors are collected and returned to the caller.
type Dispatcher struct {
	sinks  []Notifier
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSink appends a pre-built sink (useful for testing).
func WithSink(n Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, n) }
}

// NewDispatcher creates a dispatcher from sink configs.
func NewDispatcher(configs []types.SinkConfig, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// Dispatch sends the message to every sink. Every sink is attempted even when
// an earlier one fails; failures are logged and joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) error {
	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, message); err != nil {
			d.logger.Error("report delivery failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func newSink(cfg types.SinkConfig) (Notifier, error) {
	switch cfg.Type {
	case types.NotifySlack:
		return NewSlackSink(cfg)
	case types.NotifyConsole:
		return NewConsoleSink(), nil
	case types.NotifyFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.NotifySNS:
		return NewSNSSink(cfg)
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
