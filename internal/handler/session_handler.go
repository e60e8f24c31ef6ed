package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"satyam-ai-go/internal/middleware"
	"satyam-ai-go/internal/repository"
	"satyam-ai-go/internal/service"
	"satyam-ai-go/pkg/log"
)

// SessionHandler 处理会话列表、消息与会话的增删。所有接口都要求登录。
type SessionHandler struct {
	service service.ConversationService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(service service.ConversationService) *SessionHandler {
	return &SessionHandler{service: service}
}

func sessionIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "无效的会话 ID")
		return 0, false
	}
	return uint(id), true
}

// currentUser 只在 RequireAuth 之后调用。
func currentUser(c *gin.Context) (uint, bool) {
	uid := middleware.UserID(c)
	if uid == nil {
		respondError(c, http.StatusUnauthorized, "未登录")
		return 0, false
	}
	return *uid, true
}

// ListSessions 按最近更新时间倒序返回当前用户的会话。
func (h *SessionHandler) ListSessions(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	sessions, err := h.service.ListSessions(c.Request.Context(), uid)
	if err != nil {
		log.Errorf("[SessionHandler] 获取会话列表失败, userID: %d, error: %v", uid, err)
		respondError(c, http.StatusInternalServerError, "Failed to retrieve chat sessions")
		return
	}
	respondOK(c, sessions)
}

// Messages 返回会话中的全部消息，按时间正序。
func (h *SessionHandler) Messages(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	messages, err := h.service.Messages(c.Request.Context(), uid, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		respondError(c, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		log.Errorf("[SessionHandler] 获取会话消息失败, sessionID: %d, error: %v", sessionID, err)
		respondError(c, http.StatusInternalServerError, "Failed to retrieve messages")
		return
	}
	respondOK(c, messages)
}

type createSessionRequest struct {
	Title string `json:"title"`
}

// CreateSession 新建一个空会话，标题缺省为 "New Chat"。
func (h *SessionHandler) CreateSession(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req createSessionRequest
	// 请求体可以为空
	_ = c.ShouldBindJSON(&req)

	session, err := h.service.CreateSession(c.Request.Context(), uid, req.Title)
	if err != nil {
		log.Errorf("[SessionHandler] 创建会话失败, userID: %d, error: %v", uid, err)
		respondError(c, http.StatusInternalServerError, "Failed to create session")
		return
	}
	respondOK(c, session)
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	err := h.service.DeleteSession(c.Request.Context(), uid, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		respondError(c, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		log.Errorf("[SessionHandler] 删除会话失败, sessionID: %d, error: %v", sessionID, err)
		respondError(c, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	respondOK(c, gin.H{"id": sessionID})
}
