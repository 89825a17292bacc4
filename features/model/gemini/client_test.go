package gemini_test

import (
	"context"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/features/model/gemini"
	"github.com/loomworks/loom/runtime/workflow/model"
)

type mockChatClient struct {
	captured goopenai.ChatCompletionRequest
}

func (m *mockChatClient) CreateChatCompletion(_ context.Context, request goopenai.ChatCompletionRequest) (
	goopenai.ChatCompletionResponse, error) {
	m.captured = request
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{Role: "assistant", Content: "pong"},
		}},
	}, nil
}

func TestClientDefaultsToFlash(t *testing.T) {
	mock := &mockChatClient{}
	client, err := gemini.New(mock, "")
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), &model.Request{
		Messages: []model.Message{model.UserMessage("ping")},
	})
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Content)
	require.Equal(t, gemini.DefaultModel, mock.captured.Model)
}

func TestNewFromAPIKeyRequiresKey(t *testing.T) {
	_, err := gemini.NewFromAPIKey("", "")
	require.Error(t, err)
}
