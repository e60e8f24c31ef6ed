package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRetriesExhausted 表示限流重试次数已用尽。
var ErrRetriesExhausted = errors.New("max retries exceeded for LLM API")

// RateLimitError 表示服务商返回了限流信号（HTTP 429）。
type RateLimitError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("RateLimitError: %s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// 错误信息中出现这些标记时同样视为限流。
var rateLimitMarkers = []string{"429", "RateLimitError", "rate_limit", "RESOURCE_EXHAUSTED"}

// IsRateLimit 判断 err 是否为可重试的限流错误。
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := err.Error()
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RetriesExhaustedError 记录重试次数与最后一次限流错误。
// errors.Is(err, ErrRetriesExhausted) 对它成立。
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}
