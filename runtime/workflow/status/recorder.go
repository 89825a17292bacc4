package status

import (
	"context"
	"sync"
)

// Recorder is an in-memory Publisher that keeps every published event in
// order. Tests use it to assert lifecycle sequences.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish appends the event to the recorded sequence.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded sequence in publication order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ForNode returns the recorded statuses for one node id, in order.
func (r *Recorder) ForNode(nodeID string) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Status
	for _, e := range r.events {
		if e.NodeID == nodeID {
			out = append(out, e.Status)
		}
	}
	return out
}
