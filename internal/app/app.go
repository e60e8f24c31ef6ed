// Package app 组装问答核心依赖，供 server 与 satyamctl 共用。
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"satyam-ai-go/internal/config"
	"satyam-ai-go/internal/service"
	"satyam-ai-go/pkg/cache"
	"satyam-ai-go/pkg/database"
	"satyam-ai-go/pkg/embedding"
	"satyam-ai-go/pkg/es"
	"satyam-ai-go/pkg/llm"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/storage"
)

// Core 持有进程内唯一的一组客户端，启动时创建，进程退出时释放。
type Core struct {
	Index      *es.Index
	Embedder   embedding.Client
	LLM        llm.Client
	Cache      *cache.ResponseCache
	Retriever  *service.Retriever
	Arbitrator *service.AnswerArbitrator
	Chat       service.ChatService
}

// NewCore 按配置创建向量索引、Embedding、LLM、回答缓存，并组装 ChatService。
// backends 只在缓存使用 redis 或 minio 时需要。
func NewCore(cfg config.Config, backends cache.Backends) (*Core, error) {
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return nil, fmt.Errorf("es 初始化失败: %w", err)
	}
	index := es.NewIndex(esClient, cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions)

	embedder := embedding.NewClient(cfg.Embedding)
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return nil, err
	}

	var responses *cache.ResponseCache
	var answers service.AnswerCache
	if cfg.Cache.Enabled {
		store, err := cache.NewStore(cfg.Cache, backends)
		if err != nil {
			return nil, err
		}
		responses = cache.New(store, cache.PoliciesFromConfig(cfg.Cache)...)
		answers = responses
		log.Infof("[App] 回答缓存已启用, backend: %s", cfg.Cache.Backend)
	} else {
		log.Info("[App] 回答缓存已关闭")
	}

	arbitrator := service.NewAnswerArbitrator(llmClient, answers, cfg.RAG.ContextLimit, cfg.Assistant)
	retriever := service.NewRetriever(embedder, index, cfg.RAG.TopK, cfg.RAG.LawFilter)
	rewriter := service.NewQueryRewriter(llmClient, cfg.RAG.RewriteWindow)

	return &Core{
		Index:      index,
		Embedder:   embedder,
		LLM:        llmClient,
		Cache:      responses,
		Retriever:  retriever,
		Arbitrator: arbitrator,
		Chat:       service.NewChatService(rewriter, retriever, arbitrator, cfg.RAG),
	}, nil
}

// CacheBackends 按缓存后端打开所需的客户端。rdb 不为空时直接复用。
func CacheBackends(ctx context.Context, cfg config.Config, rdb *redis.Client) (cache.Backends, error) {
	b := cache.Backends{Redis: rdb, Bucket: cfg.MinIO.BucketName}
	if !cfg.Cache.Enabled {
		return b, nil
	}
	switch cfg.Cache.Backend {
	case cache.BackendRedis:
		if b.Redis == nil {
			client, err := database.NewRedis(ctx, cfg.Database.Redis)
			if err != nil {
				return b, err
			}
			b.Redis = client
		}
	case cache.BackendMinIO:
		client, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return b, err
		}
		b.MinIO = client
	}
	return b, nil
}
