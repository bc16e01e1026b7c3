package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaChat(t *testing.T) {
	var gotReq ollamaChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := ollamaChatResponse{
			Model: "test-model",
			Message: ollamaMessage{
				Role:    "assistant",
				Content: "Get-ChildItem -Force",
			},
			Done:            true,
			PromptEvalCount: 42,
			EvalCount:       8,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOllamaProvider(&ProviderConfig{
		Endpoint: server.URL,
		Model:    "test-model",
	})

	resp, err := provider.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "You translate commands.",
		Messages: []Message{
			{Role: "user", Content: "list hidden files"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Get-ChildItem -Force", resp.Content)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 42, resp.PromptTokens)
	assert.Equal(t, 8, resp.CompletionTokens)
	assert.Equal(t, 50, resp.TokensUsed)

	// Request shape: non-streaming, system prompt first.
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "You translate commands.", gotReq.Messages[0].Content)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestOllamaChatServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllamaProvider(&ProviderConfig{
		Endpoint: server.URL,
		Model:    "missing",
	})

	_, err := provider.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaChatEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	provider := NewOllamaProvider(&ProviderConfig{
		Endpoint: server.URL,
		Model:    "test-model",
	})

	_, err := provider.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestOllamaAvailable(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"models present", `{"models":[{"name":"llama3.2"}]}`, true},
		{"no models", `{"models":[]}`, false},
		{"malformed", `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/tags", r.URL.Path)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL})
			assert.Equal(t, tt.want, provider.Available())
		})
	}
}

func TestOllamaAvailableDeadEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	provider := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL})
	assert.False(t, provider.Available())
}
