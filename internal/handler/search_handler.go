package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/log"
)

// Retriever 是检索调试接口依赖的检索器。
type Retriever interface {
	Retrieve(ctx context.Context, searchQuery string, topK int) ([]model.RetrievedItem, error)
}

// SearchHandler 结构体定义了检索调试相关的处理器。
type SearchHandler struct {
	retriever Retriever
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(retriever Retriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

// Search 直接返回检索到的片段，不调用模型，用于检查索引内容。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)

	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: query 参数为空")
		respondError(c, http.StatusBadRequest, "无效的查询参数")
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "8"))
	if err != nil || topK <= 0 {
		topK = 8
	}

	results, err := h.retriever.Retrieve(c.Request.Context(), query, topK)
	if err != nil {
		log.Errorf("[SearchHandler] 检索返回错误, error: %v", err)
		respondError(c, http.StatusBadGateway, "检索失败")
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	respondOK(c, results)
}
