// Package gemini provides a model.Client for Google Gemini models. Gemini
// exposes an OpenAI-compatible Chat Completions endpoint, so the adapter
// reuses the go-openai transport pointed at the Gemini base URL rather than
// carrying a second SDK.
package gemini

import (
	"errors"

	goopenai "github.com/sashabaranov/go-openai"

	openaimodel "github.com/loomworks/loom/features/model/openai"
	"github.com/loomworks/loom/runtime/workflow/model"
)

// DefaultModel is the model used when a chat-model node does not name one.
const DefaultModel = "gemini-2.0-flash"

// BaseURL is Gemini's OpenAI-compatible endpoint.
const BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// New builds a Gemini-backed model client from the provided chat client.
// Tests pass a mock; production callers use NewFromAPIKey.
func New(chat openaimodel.ChatClient, defaultModel string) (model.Client, error) {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	return openaimodel.New(openaimodel.Options{
		Client:       chat,
		DefaultModel: defaultModel,
		Provider:     "gemini",
	})
}

// NewFromAPIKey constructs a client talking to the Gemini OpenAI-compatible
// endpoint.
func NewFromAPIKey(apiKey, defaultModel string) (model.Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = BaseURL
	return New(goopenai.NewClientWithConfig(cfg), defaultModel)
}
