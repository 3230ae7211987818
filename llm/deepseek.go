// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Supports deepseek-chat and deepseek-reasoner models

package llm

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Provider interface for DeepSeek.
type DeepSeekProvider struct {
	*OpenAIProvider
}

// NewDeepSeekProvider creates a new DeepSeek provider.
// WithBaseURL overrides the DeepSeek endpoint.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32, opts ...ProviderOption) *DeepSeekProvider {
	opts = append([]ProviderOption{WithBaseURL(deepseekBaseURL)}, opts...)
	inner := NewOpenAIProvider(apiKey, model, maxTokens, temperature, opts...)
	inner.name = "deepseek"
	inner.legacyMaxTokens = true
	return &DeepSeekProvider{OpenAIProvider: inner}
}

// Verify DeepSeekProvider implements Provider
var _ Provider = (*DeepSeekProvider)(nil)
