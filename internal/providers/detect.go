package providers

import "context"

// Detect chooses a provider by the precedence spec: an explicit
// configured provider wins outright; otherwise ANTHROPIC_API_KEY, then
// OPENAI_API_KEY, then a local Ollama endpoint probe.
func Detect(ctx context.Context, configured string) (Provider, error) {
	switch configured {
	case "anthropic":
		return RateLimited(NewAnthropicProvider(DetectAnthropicAPIKey()), 0, 0), nil
	case "openai":
		return RateLimited(NewOpenAIProvider(DetectOpenAIAPIKey()), 0, 0), nil
	case "":
		// fall through to auto-detection below
	default:
		return RateLimited(NewOpenAIProvider("", WithOpenAIBaseURL(configured)), 0, 0), nil
	}

	if key := DetectAnthropicAPIKey(); key != "" {
		return RateLimited(NewAnthropicProvider(key), 0, 0), nil
	}
	if key := DetectOpenAIAPIKey(); key != "" {
		return RateLimited(NewOpenAIProvider(key), 0, 0), nil
	}
	if baseURL, ok := DetectLocalOllama(ctx); ok {
		// Local inference has no vendor-side quota to protect against.
		return NewOpenAIProvider("ollama", WithOpenAIBaseURL(baseURL)), nil
	}
	return nil, errNoProviderDetected
}

var errNoProviderDetected = providerDetectionError{}

type providerDetectionError struct{}

func (providerDetectionError) Error() string {
	return "no provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, or run a local Ollama server"
}
