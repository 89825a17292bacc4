// Package model defines the provider-agnostic chat model contract the agent
// executor drives. Provider adapters under features/model translate these
// requests into the Anthropic, OpenAI, and Gemini wire formats; the executor
// never imports a provider SDK directly.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRateLimited reports that the provider rejected the call for exceeding
// its rate limits. Adapters translate provider 429 responses into this
// sentinel so middlewares can react uniformly.
var ErrRateLimited = errors.New("model: rate limited")

type (
	// Client is a chat completion client for one provider and model.
	Client interface {
		// Complete sends the conversation and returns the assistant turn.
		// The returned response carries either text content, tool calls, or
		// both; an empty response is valid.
		Complete(ctx context.Context, req *Request) (*Response, error)
	}

	// Request is a single chat completion call.
	Request struct {
		// System is the system prompt, empty for none.
		System string
		// Messages is the conversation so far, oldest first.
		Messages []Message
		// Tools lists the tools the model may call, nil for none.
		Tools []ToolDefinition
		// MaxTokens caps the completion length, 0 for the adapter default.
		MaxTokens int
		// Temperature is the sampling temperature, nil for the provider
		// default.
		Temperature *float64
	}

	// Message is one turn of the conversation.
	Message struct {
		// Role is one of "user", "assistant", or "tool".
		Role string
		// Content is the text content of the turn.
		Content string
		// ToolCalls carries the calls an assistant turn requested.
		ToolCalls []ToolCall
		// ToolCallID links a tool turn back to the call it answers.
		ToolCallID string
	}

	// ToolDefinition describes one callable tool to the model.
	ToolDefinition struct {
		// Name is the tool identifier the model calls it by.
		Name string
		// Description tells the model what the tool does.
		Description string
		// Schema is the JSON Schema of the tool's arguments.
		Schema json.RawMessage
	}

	// ToolCall is a single tool invocation the model requested.
	ToolCall struct {
		// ID is the provider-assigned call identifier.
		ID string
		// Name is the tool name.
		Name string
		// Arguments is the JSON-encoded argument object.
		Arguments json.RawMessage
	}

	// Response is the assistant turn returned by Complete.
	Response struct {
		// Content is the text content, empty when the model only called
		// tools.
		Content string
		// ToolCalls are the tool invocations the model requested this turn.
		ToolCalls []ToolCall
		// Usage reports token consumption when the provider supplies it.
		Usage TokenUsage
	}

	// TokenUsage is the token accounting for one completion.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
	}
)

// Message role names.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResult builds a tool turn answering the given call.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// Err wraps a provider error with the provider and model it came from so
// operators can attribute failures without parsing SDK error strings.
type Err struct {
	Provider string
	Model    string
	Cause    error
}

// Error implements error.
func (e *Err) Error() string {
	return fmt.Sprintf("%s model %q: %v", e.Provider, e.Model, e.Cause)
}

// Unwrap returns the underlying provider error.
func (e *Err) Unwrap() error { return e.Cause }
