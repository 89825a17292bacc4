package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	streamopts "goa.design/pulse/streaming/options"

	"github.com/loomworks/loom/runtime/workflow/status"
)

type (
	// SubscriberOptions configures a Pulse-backed status subscriber.
	SubscriberOptions struct {
		// Client consumes the events. Required.
		Client Client
		// SinkName identifies the consumer group. Defaults to
		// "loom_status_subscriber".
		SinkName string
		// Buffer is the event channel capacity. Defaults to 64.
		Buffer int
	}

	// Subscriber consumes a run's status stream and emits decoded events.
	Subscriber struct {
		client Client
		name   string
		buffer int
	}
)

// NewSubscriber constructs a Pulse-backed status subscriber.
func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	name := opts.SinkName
	if name == "" {
		name = "loom_status_subscriber"
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Subscriber{client: opts.Client, name: name, buffer: buffer}, nil
}

// Subscribe opens a consumer group on the run's status stream and returns
// channels for events and errors. The returned cancel function stops
// consumption and closes both channels.
func (s *Subscriber) Subscribe(ctx context.Context, runID string) (<-chan status.Event, <-chan error, context.CancelFunc, error) {
	if runID == "" {
		return nil, nil, nil, errors.New("run id is required")
	}
	str, err := s.client.Stream(fmt.Sprintf("run/%s/%s", runID, status.Topic))
	if err != nil {
		return nil, nil, nil, err
	}
	// Replay from the start so subscribers attaching mid-run still see the
	// full lifecycle.
	sink, err := str.NewSink(ctx, s.name, streamopts.WithSinkStartAtOldest())
	if err != nil {
		return nil, nil, nil, err
	}

	events := make(chan status.Event, s.buffer)
	errs := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go s.consume(runCtx, sink, events, errs)
	cancelFunc := func() {
		cancel()
		sink.Close(context.Background())
	}
	return events, errs, cancelFunc, nil
}

// consume reads entries from the sink, decodes the envelope, and emits the
// contained status event, acking after emission.
func (s *Subscriber) consume(ctx context.Context, sink Sink, out chan<- status.Event, errs chan<- error) {
	defer close(out)
	defer close(errs)
	ch := sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal(evt.Payload, &env); err != nil {
				errs <- fmt.Errorf("pulse decode payload: %w", err)
				return
			}
			select {
			case out <- env.Event:
			case <-ctx.Done():
				return
			}
			if err := sink.Ack(ctx, evt); err != nil {
				errs <- fmt.Errorf("pulse ack: %w", err)
				return
			}
		}
	}
}
