package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/status"
)

type fakeClient struct {
	streams   map[string]*fakeStream
	streamErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{streams: make(map[string]*fakeStream)}
}

func (c *fakeClient) Stream(name string) (Stream, error) {
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	s, ok := c.streams[name]
	if !ok {
		s = &fakeStream{}
		c.streams[name] = s
	}
	return s, nil
}

func (c *fakeClient) Close(context.Context) error { return nil }

type fakeStream struct {
	added  []addedEntry
	addErr error
	sink   *fakeSink
}

type addedEntry struct {
	event   string
	payload []byte
}

func (s *fakeStream) Add(_ context.Context, event string, payload []byte) (string, error) {
	if s.addErr != nil {
		return "", s.addErr
	}
	s.added = append(s.added, addedEntry{event: event, payload: payload})
	return "1-0", nil
}

func (s *fakeStream) NewSink(context.Context, string, ...streamopts.Sink) (Sink, error) {
	return s.sink, nil
}

func (s *fakeStream) Destroy(context.Context) error { return nil }

type fakeSink struct {
	ch    chan *streaming.Event
	acked []string
}

func (s *fakeSink) Subscribe() <-chan *streaming.Event { return s.ch }

func (s *fakeSink) Ack(_ context.Context, evt *streaming.Event) error {
	s.acked = append(s.acked, evt.ID)
	return nil
}

func (s *fakeSink) Close(context.Context) {}

func TestPublishWritesRunStream(t *testing.T) {
	cli := newFakeClient()
	pub, err := NewPublisher(PublisherOptions{Client: cli})
	require.NoError(t, err)

	event := status.Event{
		WorkflowRunID: "run-123",
		NodeID:        "n1",
		NodeKind:      graph.KindHTTPRequest,
		Status:        status.StatusLoading,
	}
	require.NoError(t, pub.Publish(context.Background(), event))

	str := cli.streams["run/run-123/status"]
	require.NotNil(t, str)
	require.Len(t, str.added, 1)
	require.Equal(t, "loading", str.added[0].event)

	var env envelope
	require.NoError(t, json.Unmarshal(str.added[0].payload, &env))
	require.Equal(t, event, env.Event)
	require.WithinDuration(t, time.Now(), env.Timestamp, time.Minute)
}

func TestPublishRequiresRunID(t *testing.T) {
	pub, err := NewPublisher(PublisherOptions{Client: newFakeClient()})
	require.NoError(t, err)
	err = pub.Publish(context.Background(), status.Event{NodeID: "n1", Status: status.StatusSuccess})
	require.EqualError(t, err, "status event missing run id")
}

func TestPublishPropagatesErrors(t *testing.T) {
	cli := newFakeClient()
	cli.streamErr = errors.New("boom")
	pub, err := NewPublisher(PublisherOptions{Client: cli})
	require.NoError(t, err)
	require.EqualError(t, pub.Publish(context.Background(), status.Event{WorkflowRunID: "r"}), "boom")

	cli = newFakeClient()
	cli.streams["run/r/status"] = &fakeStream{addErr: errors.New("add-failed")}
	pub, err = NewPublisher(PublisherOptions{Client: cli})
	require.NoError(t, err)
	require.EqualError(t, pub.Publish(context.Background(), status.Event{WorkflowRunID: "r", Status: status.StatusError}), "add-failed")
}

func TestCustomStreamID(t *testing.T) {
	cli := newFakeClient()
	pub, err := NewPublisher(PublisherOptions{
		Client: cli,
		StreamID: func(e status.Event) (string, error) {
			return "custom/" + e.WorkflowRunID, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), status.Event{WorkflowRunID: "r1", Status: status.StatusSuccess}))
	require.NotNil(t, cli.streams["custom/r1"])
}

func TestSubscribeEmitsDecodedEvents(t *testing.T) {
	sinkFake := &fakeSink{ch: make(chan *streaming.Event, 1)}
	cli := newFakeClient()
	cli.streams["run/run-123/status"] = &fakeStream{sink: sinkFake}

	sub, err := NewSubscriber(SubscriberOptions{Client: cli, Buffer: 2})
	require.NoError(t, err)

	events, errs, cancel, err := sub.Subscribe(context.Background(), "run-123")
	require.NoError(t, err)
	defer cancel()

	payload, _ := json.Marshal(envelope{
		Event: status.Event{
			WorkflowRunID: "run-123",
			NodeID:        "n1",
			Status:        status.StatusSuccess,
		},
		Timestamp: time.Now().UTC(),
	})
	sinkFake.ch <- &streaming.Event{ID: "1-0", Payload: payload}
	close(sinkFake.ch)

	e := <-events
	require.Equal(t, "n1", e.NodeID)
	require.Equal(t, status.StatusSuccess, e.Status)
	require.Equal(t, []string{"1-0"}, sinkFake.acked)
	require.Empty(t, errs)
}

func TestSubscribeDecodeError(t *testing.T) {
	sinkFake := &fakeSink{ch: make(chan *streaming.Event, 1)}
	cli := newFakeClient()
	cli.streams["run/r/status"] = &fakeStream{sink: sinkFake}

	sub, err := NewSubscriber(SubscriberOptions{Client: cli})
	require.NoError(t, err)
	events, errs, cancel, err := sub.Subscribe(context.Background(), "r")
	require.NoError(t, err)
	defer cancel()

	sinkFake.ch <- &streaming.Event{ID: "1-0", Payload: []byte("not json")}
	close(sinkFake.ch)

	require.Empty(t, events)
	require.ErrorContains(t, <-errs, "pulse decode payload")
}
