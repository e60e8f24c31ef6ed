package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"satyam-ai-go/internal/config"
	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/llm"
	"satyam-ai-go/pkg/log"
)

const defaultContextLimit = 3

// 回答来源类别，用于指标与日志。
const (
	regimeCanned   = "canned"
	regimeCache    = "cache"
	regimeGrounded = "grounded"
	regimeFallback = "fallback"
	regimeRefusal  = "refusal"
	regimeError    = "error"
	regimeRejected = "rejected"
)

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "greetings": {}, "namaste": {}, "hola": {},
	"who are you": {}, "what is your name": {},
}

// AnswerCache 是仲裁器使用的回答缓存。
type AnswerCache interface {
	Get(ctx context.Context, query string) (model.AnswerResult, bool)
	Put(ctx context.Context, query string, result model.AnswerResult)
}

// AnswerArbitrator 决定一个问题由哪种方式回答：
// 固定回答、缓存、基于检索内容的回答、通用知识兜底，或错误结果。
type AnswerArbitrator struct {
	llm          llm.Client
	cache        AnswerCache
	contextLimit int
	assistant    config.AssistantConfig

	// randIn 返回 [lo, hi] 内的整数，测试中可替换。
	randIn func(lo, hi int) int
}

// NewAnswerArbitrator 创建仲裁器。cache 为 nil 时不读写缓存。
func NewAnswerArbitrator(llmClient llm.Client, cache AnswerCache, contextLimit int, assistant config.AssistantConfig) *AnswerArbitrator {
	if contextLimit <= 0 {
		contextLimit = defaultContextLimit
	}
	if assistant.GreetingAnswer == "" {
		assistant.GreetingAnswer = defaultGreetingAnswer
	}
	if assistant.CreatorAnswer == "" {
		assistant.CreatorAnswer = defaultCreatorAnswer
	}
	return &AnswerArbitrator{
		llm:          llmClient,
		cache:        cache,
		contextLimit: contextLimit,
		assistant:    assistant,
		randIn: func(lo, hi int) int {
			return lo + rand.IntN(hi-lo+1)
		},
	}
}

// Canned 返回问候与身份类问题的固定回答。
func (a *AnswerArbitrator) Canned(query string) (model.AnswerResult, bool) {
	q := strings.TrimRight(strings.ToLower(strings.TrimSpace(query)), "!.,?")
	if _, ok := greetings[q]; ok || strings.Contains(q, "who are you") {
		return model.AnswerResult{Answer: a.assistant.GreetingAnswer, Sources: []string{}, Confidence: 100}, true
	}
	if strings.Contains(q, "who created you") || strings.Contains(q, "who made you") {
		return model.AnswerResult{Answer: a.assistant.CreatorAnswer, Sources: []string{}, Confidence: 100}, true
	}
	return model.AnswerResult{}, false
}

// Failure 把任意错误转换成置信度为 0 的结果。
func (a *AnswerArbitrator) Failure(err error) model.AnswerResult {
	return model.AnswerResult{Answer: failurePrefix + err.Error(), Sources: []string{}, Confidence: 0}
}

// Rejected 是空问题的回答。输入被拒绝不属于上游故障，因此不使用 Failure 的措辞。
func (a *AnswerArbitrator) Rejected() model.AnswerResult {
	return model.AnswerResult{Answer: emptyQueryAnswer, Sources: []string{}, Confidence: 0}
}

// Arbitrate 为 query 生成最终回答。contexts 与 sources 按下标对齐，history 已经过授权。
// 任何错误都会被转换为置信度 0 的结果，不会返回给调用方。
func (a *AnswerArbitrator) Arbitrate(ctx context.Context, query string, contexts, sources []string, history []model.ChatTurn) model.AnswerResult {
	result, _ := a.arbitrate(ctx, query, contexts, sources, history)
	return result
}

func (a *AnswerArbitrator) arbitrate(ctx context.Context, query string, contexts, sources []string, history []model.ChatTurn) (model.AnswerResult, string) {
	// 1. 问候与身份
	if result, ok := a.Canned(query); ok {
		return result, regimeCanned
	}

	// 2. 缓存
	if a.cache != nil {
		if result, ok := a.cache.Get(ctx, query); ok {
			return result, regimeCache
		}
	}

	// 3. 基于检索内容回答
	if len(contexts) > 0 {
		result, ok, err := a.grounded(ctx, query, contexts, sources, history)
		if err != nil {
			log.Errorf("[AnswerArbitrator] 基于数据库生成回答失败: %v", err)
			return a.Failure(err), regimeError
		}
		if ok {
			if a.cache != nil {
				a.cache.Put(ctx, query, result)
			}
			return result, regimeGrounded
		}
		log.Infof("[AnswerArbitrator] 模型判定检索内容不足，转入通用知识回答, query: '%s'", query)
	}

	// 4. 通用知识兜底
	result, regime, err := a.fallback(ctx, query)
	if err != nil {
		log.Errorf("[AnswerArbitrator] 通用知识回答失败: %v", err)
		return a.Failure(err), regimeError
	}
	return result, regime
}

// grounded 返回 ok=false 表示模型输出了上下文不足标记。
func (a *AnswerArbitrator) grounded(ctx context.Context, query string, contexts, sources []string, history []model.ChatTurn) (model.AnswerResult, bool, error) {
	top := contexts
	if len(top) > a.contextLimit {
		top = top[:a.contextLimit]
	}
	historyBlock := ""
	if len(history) > 0 {
		historyBlock = "PREVIOUS CHAT HISTORY:\n" + model.FormatHistory(history) + "\n\n"
	}

	out, err := a.llm.Complete(ctx, legalSystemPrompt, groundedPrompt(historyBlock, strings.Join(top, "\n\n"), query))
	if err != nil {
		return model.AnswerResult{}, false, err
	}
	if strings.Contains(out, InsufficientContextMarker) {
		return model.AnswerResult{}, false, nil
	}

	// 模型自述的来源被丢弃，始终返回全部检索到的来源。
	answer := out
	if idx := strings.Index(out, SourcesUsedMarker); idx >= 0 {
		answer = out[:idx]
	}
	answer = strings.TrimSpace(answer)

	used := dedupe(sources)
	if len(used) > 0 {
		var sb strings.Builder
		sb.WriteString(answer)
		sb.WriteString("\n\n**Sources:**")
		for _, s := range used {
			sb.WriteString("\n- ")
			sb.WriteString(s)
		}
		answer = sb.String()
	}

	confidence := a.randIn(88, 98)
	return model.AnswerResult{
		Answer:     fmt.Sprintf("%s\n\nConfidence Score: %d%% (Verified Database Answer)", answer, confidence),
		Sources:    used,
		Confidence: confidence,
	}, true, nil
}

func (a *AnswerArbitrator) fallback(ctx context.Context, query string) (model.AnswerResult, string, error) {
	out, err := a.llm.Complete(ctx, legalSystemPrompt, fallbackPrompt(query))
	if err != nil {
		return model.AnswerResult{}, regimeError, err
	}
	if strings.Contains(out, refusalMarker) {
		return model.AnswerResult{Answer: out, Sources: []string{}, Confidence: 100}, regimeRefusal, nil
	}
	return model.AnswerResult{
		Answer:     out + "\n\n" + fallbackNote,
		Sources:    []string{},
		Confidence: a.randIn(55, 70),
	}, regimeFallback, nil
}

// dedupe 去重并保持首次出现的顺序。
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
