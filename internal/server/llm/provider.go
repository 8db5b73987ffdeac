package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ProviderConfig selects and configures a Completer.
type ProviderConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
}

// NewCompleter builds the Completer named by cfg.Provider. The HTTP client
// timeout bounds every model call.
func NewCompleter(ctx context.Context, cfg ProviderConfig) (Completer, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai provider needs an API key")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, httpClient), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider needs an API key")
		}
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, httpClient)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
