package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps executions in process memory. It backs the default
// configuration, where history does not need to outlive the process.
type MemoryStore struct {
	mu    sync.RWMutex
	execs map[string]types.SuiteExecution
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{execs: make(map[string]types.SuiteExecution)}
}

// PutExecution stores or replaces an execution record.
func (s *MemoryStore) PutExecution(_ context.Context, exec types.SuiteExecution) error {
	if exec.ID == "" {
		return fmt.Errorf("execution ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[exec.ID] = exec
	return nil
}

// GetExecution retrieves one execution by ID.
func (s *MemoryStore) GetExecution(_ context.Context, id string) (*types.SuiteExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, fmt.Errorf("execution %q: %w", id, ErrNotFound)
	}
	return &exec, nil
}

// ListExecutions returns recent executions for a suite, newest first.
func (s *MemoryStore) ListExecutions(_ context.Context, suiteName string, limit int) ([]types.SuiteExecution, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.SuiteExecution
	for _, exec := range s.execs {
		if exec.SuiteName == suiteName {
			out = append(out, exec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
