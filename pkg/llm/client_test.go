package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satyam-ai-go/internal/config"
)

func testLLMConfig(provider, baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    provider,
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test-model",
		Temperature: 0.3,
		Timeout:     5 * time.Second,
		Retry:       config.LLMRetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond},
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be strict", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		require.NotNil(t, req.Temperature)
		assert.Equal(t, 0.3, *req.Temperature)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Section 37 answer"}}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(testLLMConfig(ProviderOpenAI, srv.URL))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "be strict", "question")
	require.NoError(t, err)
	assert.Equal(t, "Section 37 answer", out)
}

func TestOpenAIRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_exceeded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(testLLMConfig(ProviderOpenAI, srv.URL))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOpenAIServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	client, err := NewClient(testLLMConfig(ProviderOpenAI, srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRetriesExhausted))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "sys", req.SystemInstruction.Parts[0].Text)
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "question", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"part one, "},{"text":"part two"}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(testLLMConfig(ProviderGemini, srv.URL))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", out)
}

func TestGeminiRateLimitExhausts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(testLLMConfig(ProviderGemini, srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.EqualValues(t, 3, calls.Load())
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(testLLMConfig("unknown-provider", ""))
	assert.Error(t, err)
}

func TestTemperatureZeroIsSent(t *testing.T) {
	cases := []struct {
		name        string
		temperature float64
		want        *float64
	}{
		{name: "zero", temperature: 0, want: new(float64)},
		{name: "negative means provider default", temperature: -1, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
			}))
			defer srv.Close()

			cfg := testLLMConfig(ProviderOpenAI, srv.URL)
			cfg.Temperature = tc.temperature
			client, err := NewClient(cfg)
			require.NoError(t, err)
			_, err = client.Complete(context.Background(), "sys", "question")
			require.NoError(t, err)

			temp, ok := got["temperature"]
			if tc.want == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok, "temperature 0 must be sent explicitly")
			assert.Equal(t, *tc.want, temp)
		})
	}
}
