package factory

import (
	"fmt"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/llm/gemini"
	"ai-tutor-be/pkg/llm/ollama"
)

// NewProvider builds a provider for a vendor family. credential is the API
// key for hosted vendors and the base URL for local ones.
func NewProvider(vendor, modelName, credential string) (llm.Provider, error) {
	switch vendor {
	case "ollama":
		baseURL := credential
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "gemini":
		return gemini.NewGeminiProvider(credential, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", vendor)
	}
}
