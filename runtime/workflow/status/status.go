// Package status defines the realtime node lifecycle channel. Every
// executor publishes exactly one loading event followed by exactly one
// terminal (success or error) event per node. All node kinds share a single
// topic; events carry the kind so subscribers can fan out visually without
// per-kind channels.
package status

import (
	"context"

	"github.com/loomworks/loom/runtime/workflow/graph"
)

// Status is a node lifecycle state as shown to the owning UI session.
type Status string

const (
	// StatusLoading is published when an executor starts work on a node.
	StatusLoading Status = "loading"
	// StatusSuccess is published when a node completes.
	StatusSuccess Status = "success"
	// StatusError is published when a node fails.
	StatusError Status = "error"
)

// Topic is the single channel topic carrying node lifecycle events.
const Topic = "status"

type (
	// Event is one node lifecycle record. Delivery is at-least-once and
	// per-subscriber FIFO; events from distinct nodes are only loosely
	// ordered. Credential plaintext must never appear here.
	Event struct {
		// WorkflowRunID identifies the run the event belongs to.
		WorkflowRunID string `json:"workflowRunId"`
		// NodeID identifies the node whose lifecycle changed.
		NodeID string `json:"nodeId"`
		// NodeKind is the node's kind, carried for UI fan-out.
		NodeKind graph.NodeKind `json:"nodeKind,omitempty"`
		// Status is the new lifecycle state.
		Status Status `json:"status"`
	}

	// Publisher delivers events to the run's subscribers. Implementations
	// must be safe for use from a single run goroutine; distinct runs own
	// distinct publishers.
	Publisher interface {
		// Publish sends one lifecycle event. Errors are advisory: the driver
		// logs and continues, because a UI outage must not fail the run.
		Publish(ctx context.Context, event Event) error
	}

	// PublishFunc adapts a function to the Publisher interface.
	PublishFunc func(ctx context.Context, event Event) error
)

// Publish implements Publisher.
func (f PublishFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard is a Publisher that drops every event, for runs without an
// attached UI session.
var Discard Publisher = PublishFunc(func(context.Context, Event) error { return nil })
