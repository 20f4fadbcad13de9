package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	t.Parallel()

	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3","response":"Cardiovascular|Oncological","done":true}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL + "/", Model: "llama3", Temperature: 0.1, Seed: 42})
	out, err := client.Generate(context.Background(), "Title: x\nCategory:")
	require.NoError(t, err)

	assert.Equal(t, "Cardiovascular|Oncological", out)
	assert.False(t, got.Stream)
	assert.Equal(t, "llama3", got.Model)
	assert.InDelta(t, 0.1, got.Options.Temperature, 1e-9)
	assert.InDelta(t, 0.95, got.Options.TopP, 1e-9)
	assert.Equal(t, 100, got.Options.NumPredict)
	assert.Equal(t, 42, got.Options.Seed)
}

func TestOllamaStatusErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "llama3"})
	_, err := client.Generate(context.Background(), "p")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.True(t, statusErr.Temporary())
	assert.Contains(t, statusErr.Error(), "loading model")
}

func TestOllamaMalformedResponseKeepsCause(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":`))
	}))
	defer srv.Close()

	_, err := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "llama3"}).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode generate response")
	assert.Contains(t, fmt.Sprintf("%+v", err), "ollama.go", "wrapped errors carry a stack trace")
}

func TestOllamaPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest"}]}`))
	}))
	defer srv.Close()

	require.NoError(t, NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "llama3"}).Ping(context.Background()))

	err := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "mistral"}).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pulled")
}

func TestStatusErrorTemporary(t *testing.T) {
	t.Parallel()

	cases := map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusNotFound:            false,
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	}
	for code, want := range cases {
		assert.Equal(t, want, (&StatusError{StatusCode: code}).Temporary(), code)
	}
}

func TestChatGPTGenerate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Neurological"}}]}`))
	}))
	defer srv.Close()

	client, err := NewChatGPTClient(ChatGPTConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini", Temperature: 0.1})
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "Category:")
	require.NoError(t, err)
	assert.Equal(t, "Neurological", out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "Category:", messages[1].(map[string]any)["content"])
}

func TestChatGPTStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	client, err := NewChatGPTClient(ChatGPTConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "Category:")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.True(t, statusErr.Temporary())
}

func TestNewChatGPTClientRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewChatGPTClient(ChatGPTConfig{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
