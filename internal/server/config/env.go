package config

import "github.com/dmitrijs2005/failseed/internal/flagx"

// parseEnv fills the LLM API key from the provider's conventional
// environment variable when neither defaults nor JSON supplied one.
func parseEnv(cfg *Config) {
	if cfg.LLMAPIKey != "" {
		return
	}
	switch cfg.LLMProvider {
	case "openai":
		flagx.StringFromEnv(&cfg.LLMAPIKey, "OPENAI_API_KEY")
	case "gemini":
		flagx.StringFromEnv(&cfg.LLMAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
}
