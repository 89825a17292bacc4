package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/runtime/workflow/model"
)

type fakeClient struct {
	err   error
	calls int
}

func (f *fakeClient) Complete(_ context.Context, _ *model.Request) (*model.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{Content: "ok"}, nil
}

func TestMiddlewareDelegates(t *testing.T) {
	l := NewAdaptiveRateLimiter(600000, 600000)
	fake := &fakeClient{}
	client := l.Middleware()(fake)

	resp, err := client.Complete(context.Background(), &model.Request{
		Messages: []model.Message{model.UserMessage("hello")},
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, 1, fake.calls)
}

func TestBackoffHalvesBudgetOnRateLimit(t *testing.T) {
	l := NewAdaptiveRateLimiter(600000, 600000)
	fake := &fakeClient{err: model.ErrRateLimited}
	client := l.Middleware()(fake)

	before := l.tpm()
	_, err := client.Complete(context.Background(), &model.Request{
		Messages: []model.Message{model.UserMessage("hello")},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
	require.InDelta(t, before*0.5, l.tpm(), 1)
}

func TestProbeRecoversAdditively(t *testing.T) {
	l := NewAdaptiveRateLimiter(600000, 600000)
	l.backoff()
	halved := l.tpm()

	fake := &fakeClient{}
	client := l.Middleware()(fake)
	_, err := client.Complete(context.Background(), &model.Request{
		Messages: []model.Message{model.UserMessage("hello")},
	})
	require.NoError(t, err)
	require.Greater(t, l.tpm(), halved)
}

func TestBudgetNeverDropsBelowFloor(t *testing.T) {
	l := NewAdaptiveRateLimiter(1000, 1000)
	for i := 0; i < 20; i++ {
		l.backoff()
	}
	require.GreaterOrEqual(t, l.tpm(), l.minTPM)
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 500, estimateTokens(&model.Request{}))

	got := estimateTokens(&model.Request{
		System:   "You are helpful.",
		Messages: []model.Message{model.UserMessage("What is the weather?")},
	})
	require.Greater(t, got, 500)
}
