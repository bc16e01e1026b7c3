package llm

import (
	"fmt"
	"os"
)

// NewProvider creates a provider from its configuration.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	name := cfg.Name
	if name == "" {
		name = "ollama"
	}

	// Get API key from config, falling back to environment variables
	if cfg.APIKey == "" {
		cfg.APIKey = getAPIKeyFromEnv(name)
	}

	switch name {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: ollama, openai)", name)
	}
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"openai": "OPENAI_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}
