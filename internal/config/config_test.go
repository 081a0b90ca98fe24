package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadGeminiKeyNames(t *testing.T) {
	t.Run("short name wins", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "short-name-key")
		t.Setenv("GOOGLE_GEMINI_API_KEY", "long-name-key")
		assert.Equal(t, "short-name-key", Load().Keys.GoogleGemini)
	})

	t.Run("long name still recognized", func(t *testing.T) {
		t.Setenv("GOOGLE_GEMINI_API_KEY", "long-name-key")
		assert.Equal(t, "long-name-key", Load().Keys.GoogleGemini)
	})
}

func TestLoadPreloadModelsList(t *testing.T) {
	t.Setenv("PRELOAD_MODELS", " mathematics, programming ,,science")
	assert.Equal(t, []string{"mathematics", "programming", "science"}, Load().Ai.PreloadModels)

	t.Setenv("PRELOAD_MODELS", "")
	assert.Empty(t, Load().Ai.PreloadModels)
}
