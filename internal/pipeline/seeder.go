package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/embedding"
	"satyam-ai-go/pkg/log"
)

// ChunkIndexer 是写入向量索引的最小接口。
type ChunkIndexer interface {
	IndexChunk(ctx context.Context, chunk model.LegalChunk) error
}

// Seeder 把已经切分好的法条片段（JSON Lines）向量化后写入索引。
// PDF 解析与切分由离线流程完成，这里只负责最后一步。
type Seeder struct {
	embedder embedding.Client
	indexer  ChunkIndexer
}

func NewSeeder(embedder embedding.Client, indexer ChunkIndexer) *Seeder {
	return &Seeder{embedder: embedder, indexer: indexer}
}

// seedRecord 中的片段号与页码既可能是字符串也可能是数字，解码后统一转为字符串。
type seedRecord struct {
	ID string `json:"id"`
	model.LegalChunk
	ChunkID    any `json:"chunk_id"`
	Page       any `json:"page"`
	PageNumber any `json:"page_number"`
}

func (r seedRecord) chunk() model.LegalChunk {
	c := r.LegalChunk
	c.ChunkID = scalarString(r.ChunkID)
	c.Page = scalarString(r.Page)
	c.PageNumber = scalarString(r.PageNumber)
	return c
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Seed 逐行读取 r，返回成功写入的片段数。空行和空文本的片段会被跳过，
// 任何一行解析、向量化或写入失败都会中止并返回错误。
func (s *Seeder) Seed(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	indexed, line := 0, 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec seedRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return indexed, fmt.Errorf("第 %d 行解析失败: %w", line, err)
		}
		chunk := rec.chunk()
		chunk.Text = strings.TrimSpace(chunk.Text)
		if chunk.Text == "" {
			log.Warnf("[Seeder] 第 %d 行文本为空，跳过", line)
			continue
		}
		chunk.ID = rec.ID
		if chunk.ID == "" {
			chunk.ID = chunkDocumentID(chunk)
		}

		vector, err := s.embedder.CreateEmbedding(ctx, chunk.Text)
		if err != nil {
			return indexed, fmt.Errorf("第 %d 行向量化失败: %w", line, err)
		}
		chunk.Vector = vector

		if err := s.indexer.IndexChunk(ctx, chunk); err != nil {
			return indexed, fmt.Errorf("第 %d 行写入索引失败: %w", line, err)
		}
		indexed++
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return indexed, fmt.Errorf("读取片段文件失败: %w", err)
	}

	log.Infof("[Seeder] 导入完成, 共写入 %d 个片段", indexed)
	return indexed, nil
}

// chunkDocumentID 在有来源和片段号时生成稳定的 ID，重复导入会覆盖而不是新增。
func chunkDocumentID(c model.LegalChunk) string {
	source := c.SourcePDF
	if source == "" {
		source = c.SourceAct
	}
	if source == "" {
		source = c.Source
	}
	if source != "" && c.ChunkID != "" {
		return source + "#" + c.ChunkID
	}
	return uuid.NewString()
}
