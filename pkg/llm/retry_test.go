package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satyam-ai-go/internal/config"
)

type scriptedClient struct {
	calls   atomic.Int32
	results []error
	text    string
}

func (s *scriptedClient) Complete(_ context.Context, _, _ string) (string, error) {
	i := int(s.calls.Add(1)) - 1
	if i < len(s.results) && s.results[i] != nil {
		return "", s.results[i]
	}
	return s.text, nil
}

func fastPolicy(attempts int) config.LLMRetryConfig {
	return config.LLMRetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxJitter: 0}
}

// retryCount 读取 provider 对应的限流重试计数，未注册时为 0。
func retryCount(t *testing.T, provider string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "satyam_llm_rate_limit_retries_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "provider" && l.GetValue() == provider {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRetryingClientCountsOnlyRealRetries(t *testing.T) {
	rl := &RateLimitError{Provider: "test", StatusCode: 429}

	before := retryCount(t, "custom")
	exhausted := NewRetryingClient(&scriptedClient{results: []error{rl, rl, rl}}, fastPolicy(3))
	_, err := exhausted.Complete(context.Background(), "sys", "user")
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, before+2, retryCount(t, "custom"), "three attempts are two retries")

	before = retryCount(t, "custom")
	recovered := NewRetryingClient(&scriptedClient{results: []error{rl}, text: "ok"}, fastPolicy(3))
	_, err = recovered.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, before+1, retryCount(t, "custom"))
}

func TestRetryingClientRecoversAfterTwoRateLimits(t *testing.T) {
	inner := &scriptedClient{
		results: []error{
			&RateLimitError{Provider: "test", StatusCode: 429},
			errors.New("Error code: 429 - rate limited"),
		},
		text: "ok",
	}
	client := NewRetryingClient(inner, fastPolicy(3))

	out, err := client.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, inner.calls.Load(), "two retries after the first call")
}

func TestRetryingClientExhausted(t *testing.T) {
	rl := &RateLimitError{Provider: "test", StatusCode: 429}
	inner := &scriptedClient{results: []error{rl, rl, rl, rl}}
	client := NewRetryingClient(inner, fastPolicy(3))

	_, err := client.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))

	var exhausted *RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestRetryingClientDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("invalid api key")
	inner := &scriptedClient{results: []error{boom}}
	client := NewRetryingClient(inner, fastPolicy(3))

	_, err := client.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrRetriesExhausted))
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestRetryingClientDefaultsAttempts(t *testing.T) {
	rl := errors.New("RESOURCE_EXHAUSTED")
	inner := &scriptedClient{results: []error{rl, rl, rl, rl, rl}}
	client := NewRetryingClient(inner, config.LLMRetryConfig{MaxAttempts: 0, BaseDelay: time.Millisecond})

	_, err := client.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.EqualValues(t, defaultMaxAttempts, inner.calls.Load())
}

func TestRetryingClientStopsOnCancel(t *testing.T) {
	rl := &RateLimitError{Provider: "test", StatusCode: 429}
	inner := &scriptedClient{results: []error{rl, rl, rl}}
	client := NewRetryingClient(inner, config.LLMRetryConfig{MaxAttempts: 3, BaseDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Complete(ctx, "sys", "user")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Minute)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, BackoffDelay(0, time.Second, 0))
	assert.Equal(t, 4*time.Second, BackoffDelay(1, time.Second, 0))
	assert.Equal(t, 8*time.Second, BackoffDelay(2, time.Second, 0))

	for i := 0; i < 50; i++ {
		d := BackoffDelay(0, time.Second, time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, IsRateLimit(&RateLimitError{StatusCode: 429}))
	assert.True(t, IsRateLimit(errors.New("openai: RateLimitError: quota")))
	assert.True(t, IsRateLimit(errors.New("code rate_limit_exceeded")))
	assert.True(t, IsRateLimit(errors.New("status RESOURCE_EXHAUSTED")))
	assert.False(t, IsRateLimit(errors.New("connection refused")))
	assert.False(t, IsRateLimit(nil))
}
