package llm

import (
	"context"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"

	"satyam-ai-go/internal/config"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/metrics"
)

const defaultMaxAttempts = 3

// retryingClient 在限流时按指数退避重试，其他错误立即返回。
type retryingClient struct {
	inner  Client
	policy config.LLMRetryConfig
}

// NewRetryingClient 为 inner 包装限流重试。MaxAttempts <= 0 时使用 3。
func NewRetryingClient(inner Client, policy config.LLMRetryConfig) Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	if policy.MaxJitter < 0 {
		policy.MaxJitter = 0
	}
	return &retryingClient{inner: inner, policy: policy}
}

// BackoffDelay 返回第 n 次（从 0 开始）重试前的等待时间：base*2^(n+1) + [0, jitter)。
func BackoffDelay(n uint, base, jitter time.Duration) time.Duration {
	d := base * time.Duration(uint64(1)<<(n+1))
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter)))
	}
	return d
}

func (c *retryingClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			out, err := c.inner.Complete(ctx, systemPrompt, userPrompt)
			if err != nil {
				return err
			}
			text = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.policy.MaxAttempts)),
		retry.RetryIf(IsRateLimit),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return BackoffDelay(n, c.policy.BaseDelay, c.policy.MaxJitter)
		}),
		retry.OnRetry(func(n uint, err error) {
			// 最后一次尝试失败后 OnRetry 仍会被调用，但之后不再重试
			if int(n)+1 >= c.policy.MaxAttempts {
				return
			}
			metrics.IncLLMRetry(providerName(c.inner))
			log.Warnf("[LLMClient] 模型服务限流，准备第 %d/%d 次尝试: %v", n+2, c.policy.MaxAttempts, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return text, nil
	}
	if IsRateLimit(err) {
		log.Errorf("[LLMClient] 限流重试 %d 次后仍失败: %v", c.policy.MaxAttempts, err)
		return "", &RetriesExhaustedError{Attempts: c.policy.MaxAttempts, Last: err}
	}
	return "", err
}

func providerName(c Client) string {
	switch c.(type) {
	case *openAIClient:
		return ProviderOpenAI
	case *geminiClient:
		return ProviderGemini
	default:
		return "custom"
	}
}
