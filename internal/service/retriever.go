package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/embedding"
	"satyam-ai-go/pkg/es"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/metrics"
)

const (
	defaultTopK   = 8
	unknownSource = "Unknown Source"
	lawFilterKey  = "source_act"
)

// VectorIndexClient 是检索依赖的向量索引。
type VectorIndexClient interface {
	Name() string
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]es.Match, error)
}

// Retriever 把问题向量化后查询索引，生成带来源标注的上下文。
type Retriever struct {
	embedder  embedding.Client
	index     VectorIndexClient
	topK      int
	lawFilter bool
}

// NewRetriever 创建检索器。lawFilter 为 true 时按识别出的法律名称过滤 source_act。
func NewRetriever(embedder embedding.Client, index VectorIndexClient, topK int, lawFilter bool) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, lawFilter: lawFilter}
}

// Retrieve 返回按相似度排序的检索结果，文本为空的命中会被丢弃。
// topK <= 0 时使用构造时的默认值。向量化或索引错误直接返回。
func (r *Retriever) Retrieve(ctx context.Context, searchQuery string, topK int) ([]model.RetrievedItem, error) {
	if topK <= 0 {
		topK = r.topK
	}
	start := time.Now()

	vector, err := r.embedder.CreateEmbedding(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	var filter map[string]any
	laws := DetectLaw(searchQuery)
	if len(laws) > 0 {
		log.Debugf("[Retriever] 识别到法律: %v (过滤开关: %t)", laws, r.lawFilter)
		if r.lawFilter {
			filter = map[string]any{lawFilterKey: laws}
		}
	}

	matches, err := r.index.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector index query failed: %w", err)
	}

	items := make([]model.RetrievedItem, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(metaString(m.Metadata, "text"))
		if text == "" {
			continue
		}
		source := metaString(m.Metadata, "source_pdf", "source_act", "source")
		if source == "" {
			source = unknownSource
		}
		page := metaString(m.Metadata, "page", "page_number")
		if page == "" {
			page = "?"
		}
		chunkID := metaString(m.Metadata, "chunk_id")
		if chunkID == "" {
			chunkID = "?"
		}

		items = append(items, model.RetrievedItem{
			Context: fmt.Sprintf("[[Source: %s (Page %s)]]\n%s", source, page, text),
			Source:  fmt.Sprintf("[Index: %s] [Source: %s] [Chunk: %s]", r.index.Name(), source, chunkID),
			Rank:    len(items),
		})
	}

	metrics.ObserveRetriever(start, len(items))
	log.Infof("[Retriever] 检索完成, query: '%s', 命中 %d 条, 可用 %d 条", searchQuery, len(matches), len(items))
	return items, nil
}

// metaString 返回 keys 中第一个有值的字段，数字按原样格式化。
func metaString(meta map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := meta[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			s = strconv.Itoa(val)
		case int64:
			s = strconv.FormatInt(val, 10)
		case json.Number:
			s = val.String()
		default:
			s = fmt.Sprint(val)
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// DetectLaw 根据关键词粗略判断问题涉及的法律，返回可用于过滤 source_act 的名称。
func DetectLaw(query string) []string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "ipc"):
		return []string{"Indian Penal Code", "IPC"}
	case strings.Contains(q, "crpc"), strings.Contains(q, "fir"), strings.Contains(q, "bail"), strings.Contains(q, "arrest"):
		return []string{"Code of Criminal Procedure", "CrPC"}
	case strings.Contains(q, "article"), strings.Contains(q, "constitution"):
		return []string{"Constitution of India"}
	case strings.Contains(q, "cyber"), strings.Contains(q, "it act"), strings.Contains(q, "hacking"):
		return []string{"Information Technology Act", "IT Act", "Information Technology Act, 2000"}
	case strings.Contains(q, "contract"):
		return []string{"Indian Contract Act"}
	case strings.Contains(q, "evidence"):
		return []string{"Indian Evidence Act"}
	}
	return nil
}
