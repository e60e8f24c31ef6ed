package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"satyam-ai-go/internal/config"
	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/cache"
	"satyam-ai-go/pkg/es"
	"satyam-ai-go/pkg/llm"
)

type llmCall struct {
	system string
	user   string
}

type fakeLLM struct {
	mu    sync.Mutex
	calls []llmCall
	reply func(system, user string) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, llmCall{system: system, user: user})
	f.mu.Unlock()
	if f.reply == nil {
		return "", nil
	}
	return f.reply(system, user)
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) last() llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// legalLLM 按提示词类型返回固定输出。
func legalLLM(grounded, fallback string) *fakeLLM {
	return &fakeLLM{reply: func(system, user string) (string, error) {
		switch {
		case system == rewriteSystemPrompt:
			return "rewritten query", nil
		case strings.Contains(user, "LEGAL DATABASE CONTEXT:"):
			return grounded, nil
		default:
			return fallback, nil
		}
	}}
}

type fakeEmbedder struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	mu         sync.Mutex
	matches    []es.Match
	err        error
	lastFilter map[string]any
	lastTopK   int
}

func (f *fakeIndex) Name() string { return "legal-index" }

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int, filter map[string]any) ([]es.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	f.lastTopK = topK
	return f.matches, f.err
}

type spyCache struct {
	entries map[string]model.AnswerResult
	gets    int
	puts    int
}

func newSpyCache() *spyCache {
	return &spyCache{entries: map[string]model.AnswerResult{}}
}

func (s *spyCache) Get(_ context.Context, query string) (model.AnswerResult, bool) {
	s.gets++
	r, ok := s.entries[cache.NormalizeKey(query)]
	return r, ok
}

func (s *spyCache) Put(_ context.Context, query string, result model.AnswerResult) {
	s.puts++
	s.entries[cache.NormalizeKey(query)] = result
}

func newFileCache(t *testing.T) *cache.ResponseCache {
	t.Helper()
	return cache.New(&cache.FileStore{Path: filepath.Join(t.TempDir(), "response_cache.json")})
}

func chunk(text, source string, chunkID any) es.Match {
	return es.Match{Metadata: map[string]any{"text": text, "source": source, "chunk_id": chunkID}}
}

// blockingLLM 在 release 关闭前阻塞，并遵守调用方 ctx 的取消。
type blockingLLM struct {
	fakeLLM
	answer  string
	started chan struct{}
	release chan struct{}
}

func newBlockingLLM(answer string) *blockingLLM {
	return &blockingLLM{answer: answer, started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingLLM) Complete(ctx context.Context, system, user string) (string, error) {
	_, _ = b.fakeLLM.Complete(ctx, system, user)
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func newTestChatService(llmClient *fakeLLM, embedder *fakeEmbedder, index *fakeIndex, answers AnswerCache) ChatService {
	return buildChatService(llmClient, embedder, index, answers, config.RAGConfig{TopK: 8, HistoryWindow: 6})
}

func buildChatService(llmClient llm.Client, embedder *fakeEmbedder, index *fakeIndex, answers AnswerCache, cfg config.RAGConfig) ChatService {
	arbitrator := NewAnswerArbitrator(llmClient, answers, 3, config.AssistantConfig{})
	return NewChatService(
		NewQueryRewriter(llmClient, 4),
		NewRetriever(embedder, index, 8, false),
		arbitrator,
		cfg,
	)
}
