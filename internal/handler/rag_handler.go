package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"satyam-ai-go/internal/middleware"
	"satyam-ai-go/internal/service"
	"satyam-ai-go/pkg/log"
)

// RAGHandler 处理一次性的问答请求。
type RAGHandler struct {
	conversations service.ConversationService
}

// NewRAGHandler 创建一个新的 RAGHandler。
func NewRAGHandler(conversations service.ConversationService) *RAGHandler {
	return &RAGHandler{conversations: conversations}
}

type ragRequest struct {
	Query     string `json:"query"`
	SessionID *uint  `json:"session_id"`
}

// Ask 返回 {answer, sources, confidence, session_id}。上游失败体现为置信度 0 的 200 响应。
func (h *RAGHandler) Ask(c *gin.Context) {
	var req ragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求参数")
		return
	}

	resp, err := h.conversations.Ask(c.Request.Context(), service.AskRequest{
		Query:     req.Query,
		SessionID: req.SessionID,
		UserID:    middleware.UserID(c),
	})
	if errors.Is(err, service.ErrEmptyQuery) {
		log.Warnf("[RAGHandler] 请求失败: query 为空")
		respondError(c, http.StatusBadRequest, "query 不能为空")
		return
	}
	if err != nil {
		log.Errorf("[RAGHandler] 问答失败: %v", err)
		respondError(c, http.StatusInternalServerError, "问答失败")
		return
	}
	c.JSON(http.StatusOK, resp)
}
