// Package es 提供了基于 Elasticsearch kNN 的法条向量索引客户端。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"satyam-ai-go/internal/config"
	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/log"
)

// Match 是一次近邻查询的单个命中。Score 仅用于排序，不返回给调用方。
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// NewClient 根据配置创建 Elasticsearch 客户端，Addresses 支持逗号分隔。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	var addresses []string
	for _, addr := range strings.Split(esCfg.Addresses, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
}

// Index 是一个向量索引。它不做本地缓存，每次查询都是一次网络请求。
type Index struct {
	client *elasticsearch.Client
	name   string
	dims   int
}

// NewIndex 绑定客户端与索引名。dims 只在创建索引时使用。
func NewIndex(client *elasticsearch.Client, name string, dims int) *Index {
	return &Index{client: client, name: name, dims: dims}
}

// Name 返回索引名，用于来源标签。
func (i *Index) Name() string {
	return i.name
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query 查询与 vector 最近的 topK 个片段，结果按相似度排序。
// filter 的每个键是元数据字段，值为单个值或值列表；为空时不过滤。
func (i *Index) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	knn := map[string]any{
		"field":          "vector",
		"query_vector":   vector,
		"k":              topK,
		"num_candidates": max(topK*10, 100),
	}
	if f := buildFilter(filter); f != nil {
		knn["filter"] = f
	}
	body := map[string]any{
		"knn":     knn,
		"size":    topK,
		"_source": map[string]any{"excludes": []string{"vector"}},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.name),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[VectorIndex] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorIndex] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	matches := make([]Match, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		meta := hit.Source
		if meta == nil {
			meta = map[string]any{}
		}
		delete(meta, "vector")
		matches = append(matches, Match{ID: hit.ID, Score: hit.Score, Metadata: meta})
	}
	log.Debugf("[VectorIndex] 索引 '%s' 返回 %d 条命中", i.name, len(matches))
	return matches, nil
}

func buildFilter(filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	clauses := make([]map[string]any, 0, len(filter))
	for field, value := range filter {
		switch v := value.(type) {
		case []string:
			clauses = append(clauses, map[string]any{"terms": map[string]any{field: v}})
		case []any:
			clauses = append(clauses, map[string]any{"terms": map[string]any{field: v}})
		default:
			clauses = append(clauses, map[string]any{"term": map[string]any{field: v}})
		}
	}
	return map[string]any{"bool": map[string]any{"filter": clauses}}
}

// EnsureIndex 检查索引是否存在，不存在则按法条片段的结构创建。
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.name}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("[VectorIndex] 索引 '%s' 已存在", i.name)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"text":        { "type": "text" },
				"source":      { "type": "keyword" },
				"source_pdf":  { "type": "keyword" },
				"source_act":  { "type": "keyword" },
				"chunk_id":    { "type": "keyword" },
				"page":        { "type": "keyword" },
				"page_number": { "type": "keyword" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, i.dims)

	res, err = i.client.Indices.Create(
		i.name,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", i.name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[VectorIndex] 创建索引 '%s' 时 Elasticsearch 返回错误: %s", i.name, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("[VectorIndex] 索引 '%s' 创建成功, 向量维度: %d", i.name, i.dims)
	return nil
}

// IndexChunk 写入一个已向量化的法条片段。
func (i *Index) IndexChunk(ctx context.Context, chunk model.LegalChunk) error {
	docBytes, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.name,
		DocumentID: chunk.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[VectorIndex] 写入片段到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index chunk")
	}
	return nil
}
