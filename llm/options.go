package llm

// ProviderOption configures optional provider settings.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	baseURL string
}

// WithBaseURL points the provider at an alternate endpoint,
// such as a proxy or an OpenAI-compatible server.
func WithBaseURL(url string) ProviderOption {
	return func(o *providerOptions) {
		o.baseURL = url
	}
}

func applyOptions(opts []ProviderOption) providerOptions {
	var o providerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
