package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/pkg/llm"
)

func TestChat(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   gotReq.Model,
			Message: ollamaMessage{Role: "assistant", Content: "4"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	answer, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "be brief"},
		{Role: "model", Content: "prior"},
		{Role: "user", Content: "What is 2+2?"},
	})

	require.NoError(t, err)
	assert.Equal(t, "4", answer)
	assert.Equal(t, "llama3", gotReq.Model)
	assert.False(t, gotReq.Stream)
	// "model" normalizes to the wire role "assistant".
	assert.Equal(t, "assistant", gotReq.Messages[1].Role)
}

func TestChatModelOverride(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Content: "ok"}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	_, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "q"}},
		llm.WithModel("qwen2.5"))

	require.NoError(t, err)
	assert.Equal(t, "qwen2.5", gotReq.Model)
}

func TestChatStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, llm.ErrAuth},
		{http.StatusForbidden, llm.ErrAuth},
		{http.StatusTooManyRequests, llm.ErrQuota},
		{http.StatusInternalServerError, llm.ErrOverload},
		{http.StatusBadRequest, llm.ErrContent},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))

		p := NewOllamaProvider(srv.URL, "llama3")
		_, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "q"}})
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		srv.Close()
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(ollamaTagsResponse{Models: []struct {
			Name string `json:"name"`
		}{{Name: "llama3"}, {Name: "qwen2.5"}}})
	}))
	defer srv.Close()

	present := NewOllamaProvider(srv.URL, "llama3")
	assert.NoError(t, present.Ping(context.Background()))

	missing := NewOllamaProvider(srv.URL, "mistral")
	err := missing.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral")
}
