package service

import (
	"context"
	"strings"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/llm"
	"satyam-ai-go/pkg/log"
)

const defaultRewriteWindow = 4

// QueryRewriter 结合最近的对话把追问改写成可独立检索的问题。
type QueryRewriter struct {
	llm    llm.Client
	window int
}

// NewQueryRewriter 创建改写器，window 是参与改写的最近历史条数。
func NewQueryRewriter(llmClient llm.Client, window int) *QueryRewriter {
	if window <= 0 {
		window = defaultRewriteWindow
	}
	return &QueryRewriter{llm: llmClient, window: window}
}

// Rewrite 返回用于检索的问题。没有历史时原样返回且不调用模型；
// 模型调用失败或输出为空时也返回原问题。
func (r *QueryRewriter) Rewrite(ctx context.Context, query string, history []model.ChatTurn) string {
	if len(history) == 0 {
		return query
	}

	recent := model.FormatHistory(model.LastTurns(history, r.window))
	out, err := r.llm.Complete(ctx, rewriteSystemPrompt, rewritePrompt(recent, query))
	if err != nil {
		log.Warnf("[QueryRewriter] 改写问题失败，使用原问题: %v", err)
		return query
	}

	rewritten := cleanRewrite(out)
	if rewritten == "" {
		log.Warnf("[QueryRewriter] 模型返回空的改写结果，使用原问题")
		return query
	}
	log.Infof("[QueryRewriter] 原问题: '%s' -> 改写后: '%s'", query, rewritten)
	return rewritten
}

func cleanRewrite(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
