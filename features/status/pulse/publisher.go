package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/runtime/workflow/status"
)

type (
	// PublisherOptions configures the Pulse-backed status publisher.
	PublisherOptions struct {
		// Client publishes the events. Required.
		Client Client
		// StreamID derives the target stream from an event. Defaults to
		// run/<WorkflowRunID>/status.
		StreamID func(status.Event) (string, error)
	}

	// Publisher implements status.Publisher over Pulse streams. Safe for
	// concurrent Publish calls.
	Publisher struct {
		client   Client
		streamID func(status.Event) (string, error)
	}

	// envelope wraps a status event for transmission. The timestamp lets
	// subscribers order events from a replayed stream without trusting Redis
	// entry ids.
	envelope struct {
		Event     status.Event `json:"event"`
		Timestamp time.Time    `json:"timestamp"`
	}
)

// NewPublisher constructs a Pulse-backed status publisher.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	streamID := opts.StreamID
	if streamID == nil {
		streamID = defaultStreamID
	}
	return &Publisher{client: opts.Client, streamID: streamID}, nil
}

// Publish implements status.Publisher. The event name on the wire is the
// status value so stream consumers can filter terminal events cheaply.
func (p *Publisher) Publish(ctx context.Context, event status.Event) error {
	id, err := p.streamID(event)
	if err != nil {
		return err
	}
	str, err := p.client.Stream(id)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Event: event, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}
	if _, err := str.Add(ctx, string(event.Status), payload); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying client.
func (p *Publisher) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}

// defaultStreamID names the per-run status stream.
func defaultStreamID(event status.Event) (string, error) {
	if event.WorkflowRunID == "" {
		return "", errors.New("status event missing run id")
	}
	return fmt.Sprintf("run/%s/%s", event.WorkflowRunID, status.Topic), nil
}
