package model

// Provider names recognised by chat-model configuration.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default model identifiers per provider, applied when a chat-model node
// does not name a model.
const (
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultAnthropicModel = "claude-sonnet-4-5"
)

// NormalizeProvider maps a stored provider string onto the recognised set.
// Unknown providers fall back to gemini so half-configured chat-model nodes
// still resolve.
func NormalizeProvider(provider string) string {
	switch provider {
	case ProviderOpenAI, ProviderAnthropic:
		return provider
	default:
		return ProviderGemini
	}
}

// DefaultModelFor returns the default model identifier for a normalised
// provider name.
func DefaultModelFor(provider string) string {
	switch NormalizeProvider(provider) {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	default:
		return DefaultGeminiModel
	}
}

// Factory builds a provider client from a decrypted API key. The worker
// binds it to the feature adapters; tests substitute fakes.
type Factory func(provider, apiKey, modelID string) (Client, error)
