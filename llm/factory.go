// Provider construction from resolved settings.
//
// Information Hiding:
// - Vendor constructor selection hidden
// - Fallback model and generation limits hidden

package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned when a provider is built without credentials.
var ErrMissingAPIKey = errors.New("missing API key")

// ProviderType identifies a model vendor.
type ProviderType int

const (
	ProviderOpenAI ProviderType = iota
	ProviderAnthropic
	ProviderDeepSeek
	ProviderGemini
)

const (
	defaultMaxTokens   uint32  = 4096
	defaultTemperature float32 = 0.2
)

var providerNames = map[ProviderType]string{
	ProviderOpenAI:    "openai",
	ProviderAnthropic: "anthropic",
	ProviderDeepSeek:  "deepseek",
	ProviderGemini:    "gemini",
}

var providerAliases = map[string]ProviderType{
	"openai":    ProviderOpenAI,
	"gpt":       ProviderOpenAI,
	"anthropic": ProviderAnthropic,
	"claude":    ProviderAnthropic,
	"deepseek":  ProviderDeepSeek,
	"gemini":    ProviderGemini,
	"google":    ProviderGemini,
}

func (p ProviderType) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return "unknown"
}

// DefaultModel is the model used when a ProviderConfig names none.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return ModelOpenAIGPT4oMini
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	case ProviderDeepSeek:
		return ModelDeepSeekChat
	case ProviderGemini:
		return ModelGeminiFlash25
	default:
		return ""
	}
}

// ParseProviderType accepts a provider name or alias, ignoring case.
func ParseProviderType(s string) (ProviderType, error) {
	if p, ok := providerAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown provider: %s", s)
}

// ProviderConfig is everything needed to build one provider.
// Zero MaxTokens and nil Temperature fall back to 4096 and 0.2.
type ProviderConfig struct {
	Type        ProviderType
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   uint32
	Temperature *float32
}

// NewProvider builds the provider described by cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Type, ErrMissingAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = cfg.Type.DefaultModel()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := defaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	var opts []ProviderOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	switch cfg.Type {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, model, maxTokens, temperature, opts...), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, model, maxTokens, temperature, opts...), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(cfg.APIKey, model, maxTokens, temperature, opts...), nil
	case ProviderGemini:
		return NewGeminiProvider(cfg.APIKey, model, maxTokens, temperature, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", cfg.Type)
	}
}

// Fallback model identifiers.
const (
	ModelOpenAIGPT4oMini        = "gpt-4o-mini"
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelDeepSeekChat           = "deepseek-chat"
	ModelGeminiFlash25          = "gemini-2.5-flash"
)
