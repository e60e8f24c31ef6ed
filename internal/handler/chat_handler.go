package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"satyam-ai-go/internal/middleware"
	"satyam-ai-go/internal/service"
	"satyam-ai-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	conversations service.ConversationService
	verifier      middleware.TokenVerifier
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(conversations service.ConversationService, verifier middleware.TokenVerifier) *ChatHandler {
	return &ChatHandler{conversations: conversations, verifier: verifier}
}

type chatFrame struct {
	Query     string `json:"query"`
	SessionID *uint  `json:"session_id"`
}

// parseFrame 接受 {"query","session_id"} 形式的 JSON，其余内容整体视为问题。
func parseFrame(message []byte) chatFrame {
	trimmed := strings.TrimSpace(string(message))
	if strings.HasPrefix(trimmed, "{") {
		var f chatFrame
		if err := json.Unmarshal([]byte(trimmed), &f); err == nil {
			return f
		}
	}
	return chatFrame{Query: trimmed}
}

// Handle 处理一个传入的 WebSocket 连接。token 查询参数可选，无效时按游客处理。
func (h *ChatHandler) Handle(c *gin.Context) {
	var userID *uint
	if uid, ok := middleware.VerifyRaw(h.verifier, c.Query("token")); ok {
		userID = &uid
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	if userID != nil {
		log.Infof("[ChatHandler] WebSocket 连接已建立，用户: %d", *userID)
	} else {
		log.Info("[ChatHandler] WebSocket 连接已建立，游客")
	}

	var lastSession *uint
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		frame := parseFrame(message)
		// 未指定会话时，连接内的后续问题沿用上一轮分配的会话
		if frame.SessionID == nil {
			frame.SessionID = lastSession
		}
		resp, err := h.conversations.Ask(c.Request.Context(), service.AskRequest{
			Query:     frame.Query,
			SessionID: frame.SessionID,
			UserID:    userID,
		})
		if err == nil && resp.SessionID != nil {
			lastSession = resp.SessionID
		}
		if err != nil {
			msg := "AI服务暂时不可用，请稍后重试"
			if errors.Is(err, service.ErrEmptyQuery) {
				msg = "query 不能为空"
			}
			writeJSON(conn, map[string]string{"error": msg})
		} else {
			writeJSON(conn, resp)
		}
		sendCompletion(conn)
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("[ChatHandler] 序列化响应失败: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("[ChatHandler] 写入 WebSocket 失败: %v", err)
	}
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(conn *websocket.Conn) {
	writeJSON(conn, map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	})
}
