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

func TestAnthropicComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "You are a forecaster.", req.System)
		require.Len(t, req.Messages, 1)

		resp := anthropicResponse{
			Model:   "claude-test",
			Content: []anthropicContent{{Type: "text", Text: `{"decision":"FOR"}`}},
			Usage:   anthropicUsage{InputTokens: 10, OutputTokens: 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewAnthropicClient("test-key", "claude-test")
	c.baseURL = server.URL

	resp, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "You are a forecaster."},
		{Role: "user", Content: "Predict."},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"FOR"}`, resp.Content)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
}

func TestAnthropicComplete_RateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewAnthropicClient("test-key", "claude-test")
	c.baseURL = server.URL

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestAnthropicComplete_AuthIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewAnthropicClient("bad-key", "claude-test")
	c.baseURL = server.URL

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestAnthropicComplete_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewAnthropicClient("test-key", "claude-test")
	c.baseURL = server.URL

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestAnthropicComplete_ConnectionRefusedIsTransient(t *testing.T) {
	c := NewAnthropicClient("test-key", "claude-test")
	c.baseURL = "http://127.0.0.1:1" // nothing listens here

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOpenAIComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := openAIResponse{
			Model:   "gpt-test",
			Choices: []openAIChoice{{Message: openAIMessage{Role: "assistant", Content: "hello"}}},
			Usage:   openAIUsage{PromptTokens: 7, CompletionTokens: 3},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewOpenAIClient("test-key", "gpt-test")
	c.baseURL = server.URL

	resp, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 7, resp.InputTokens)
}

func TestGoogleComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":1}}`))
	}))
	defer server.Close()

	c := NewGoogleClient("test-key", "gemini-test")
	c.baseURL = server.URL

	resp, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 4, resp.InputTokens)
}

func TestGoogleComplete_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	c := NewGoogleClient("test-key", "gemini-test")
	c.baseURL = server.URL

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}
