package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"satyam-ai-go/internal/config"
	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/cache"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/metrics"
)

const defaultHistoryWindow = 6

// ChatService 定义了问答核心的唯一入口。
type ChatService interface {
	// Answer 返回 query 的回答。history 必须是调用方已完成授权的历史，按时间正序。
	// 任何失败都体现在置信度为 0 的结果中，不会返回错误。
	Answer(ctx context.Context, query string, history []model.ChatTurn) model.AnswerResult
}

type chatService struct {
	rewriter      *QueryRewriter
	retriever     *Retriever
	arbitrator    *AnswerArbitrator
	topK          int
	historyWindow int
	singleFlight  bool
	group         singleflight.Group
}

type answerOutcome struct {
	result model.AnswerResult
	regime string
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(rewriter *QueryRewriter, retriever *Retriever, arbitrator *AnswerArbitrator, cfg config.RAGConfig) ChatService {
	window := cfg.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}
	return &chatService{
		rewriter:      rewriter,
		retriever:     retriever,
		arbitrator:    arbitrator,
		topK:          cfg.TopK,
		historyWindow: window,
		singleFlight:  cfg.SingleFlight,
	}
}

func (s *chatService) Answer(ctx context.Context, query string, history []model.ChatTurn) model.AnswerResult {
	start := time.Now()

	q, err := NormalizeQuery(query)
	if err != nil {
		metrics.ObserveAnswer(regimeRejected, start)
		return s.arbitrator.Rejected()
	}
	if result, ok := s.arbitrator.Canned(q); ok {
		metrics.ObserveAnswer(regimeCanned, start)
		return result
	}

	history = model.LastTurns(history, s.historyWindow)

	var out answerOutcome
	if s.singleFlight && len(history) == 0 {
		out = s.shared(ctx, q)
	} else {
		out = s.run(ctx, q, history)
	}

	metrics.ObserveAnswer(out.regime, start)
	log.Infof("[ChatService] 回答完成, regime: %s, 置信度: %d, 来源数: %d, 耗时: %s",
		out.regime, out.result.Confidence, len(out.result.Sources), time.Since(start))
	return out.result
}

// shared 把相同问题的并发请求合并为一次上游调用。没有历史时回答只取决于问题本身。
// 合并后的调用不继承任何一个调用方的取消，每个调用方只在自己的 ctx 结束时提前返回。
func (s *chatService) shared(ctx context.Context, q string) answerOutcome {
	ch := s.group.DoChan(cache.NormalizeKey(q), func() (interface{}, error) {
		return s.run(context.WithoutCancel(ctx), q, nil), nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			log.Debugf("[ChatService] 合并了相同问题的并发请求, query: '%s'", q)
		}
		return res.Val.(answerOutcome)
	case <-ctx.Done():
		log.Warnf("[ChatService] 请求在回答完成前被取消, query: '%s'", q)
		return answerOutcome{result: s.arbitrator.Failure(ctx.Err()), regime: regimeError}
	}
}

// run 改写问题后用改写结果检索，但生成回答时仍使用用户的原始问题。
func (s *chatService) run(ctx context.Context, query string, history []model.ChatTurn) answerOutcome {
	searchQuery := s.rewriter.Rewrite(ctx, query, history)

	items, err := s.retriever.Retrieve(ctx, searchQuery, s.topK)
	if err != nil {
		log.Errorf("[ChatService] 检索失败: %v", err)
		return answerOutcome{result: s.arbitrator.Failure(err), regime: regimeError}
	}

	contexts, sources := model.SplitRetrieved(items)
	result, regime := s.arbitrator.arbitrate(ctx, query, contexts, sources, history)
	return answerOutcome{result: result, regime: regime}
}
