// Package history persists completed suite executions so past runs can be
// listed and re-reported.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// ErrNotFound is returned when an execution record does not exist.
var ErrNotFound = errors.New("execution not found")

// Store is the persistence interface for suite executions.
type Store interface {
	// PutExecution stores or replaces an execution record.
	PutExecution(ctx context.Context, exec types.SuiteExecution) error
	// GetExecution retrieves one execution by ID.
	GetExecution(ctx context.Context, id string) (*types.SuiteExecution, error)
	// ListExecutions returns recent executions for a suite, newest first.
	ListExecutions(ctx context.Context, suiteName string, limit int) ([]types.SuiteExecution, error)
}

// New creates the configured store, ready to use.
func New(ctx context.Context, cfg types.HistoryConfig) (Store, error) {
	switch cfg.Provider {
	case types.HistoryMemory, "":
		return NewMemoryStore(), nil
	case types.HistoryDynamoDB:
		if cfg.DynamoDB == nil || cfg.DynamoDB.TableName == "" {
			return nil, fmt.Errorf("history: dynamodb tableName is required")
		}
		store, err := NewDynamoDBStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.Start(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("history: unsupported provider: %s", cfg.Provider)
	}
}
