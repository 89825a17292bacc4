// Package runlog persists node lifecycle records so finished runs can be
// inspected after the realtime status stream is gone. The driver appends one
// entry per published status event; append failures are advisory and never
// fail the run.
package runlog

import (
	"context"
	"sync"
	"time"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/status"
)

type (
	// Entry is one persisted node lifecycle record.
	Entry struct {
		RunID    string         `json:"runId" bson:"run_id"`
		NodeID   string         `json:"nodeId" bson:"node_id"`
		NodeKind graph.NodeKind `json:"nodeKind" bson:"node_kind"`
		Status   status.Status  `json:"status" bson:"status"`
		At       time.Time      `json:"at" bson:"at"`
	}

	// Store appends lifecycle records for later inspection.
	Store interface {
		// Append persists one record. Implementations should be fast; the
		// driver calls this on the run's critical path.
		Append(ctx context.Context, entry Entry) error
	}

	appendFunc func(ctx context.Context, entry Entry) error
)

// Append implements Store.
func (f appendFunc) Append(ctx context.Context, entry Entry) error { return f(ctx, entry) }

// Discard is a Store that drops every entry.
var Discard Store = appendFunc(func(context.Context, Entry) error { return nil })

// Memory is an in-process Store keeping entries in append order. Tests and
// single-process deployments use it in place of a database.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the appended records in order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ForRun returns the records of one run, in append order.
func (m *Memory) ForRun(runID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}
