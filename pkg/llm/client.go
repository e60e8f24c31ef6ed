// Package llm provides clients for interacting with Large Language Models.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"satyam-ai-go/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Client 是所有模型服务商的统一调用契约。
type Client interface {
	// Complete 以一条 system 提示和一条 user 提示调用模型，返回完整的回答文本。
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewClient 根据配置中的 provider 创建客户端，并统一包装限流重试。
func NewClient(cfg config.LLMConfig) (Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var inner Client
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		inner = newOpenAIClient(cfg, httpClient)
	case ProviderGemini:
		inner = newGeminiClient(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	return NewRetryingClient(inner, cfg.Retry), nil
}

// generationTemperature 在 Temperature 为负数时返回 nil，交给服务商默认值；0 会原样发送。
func generationTemperature(cfg config.LLMConfig) *float64 {
	if cfg.Temperature < 0 {
		return nil
	}
	t := cfg.Temperature
	return &t
}

func generationMaxTokens(cfg config.LLMConfig) *int {
	if cfg.MaxTokens == 0 {
		return nil
	}
	m := cfg.MaxTokens
	return &m
}
