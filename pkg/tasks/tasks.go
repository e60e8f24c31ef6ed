// Package tasks defines the payloads sent to Kafka.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// ChatPersistTask 描述一轮已完成的问答，由消费者写入会话消息表。
type ChatPersistTask struct {
	TaskID     string    `json:"task_id"`
	SessionID  uint      `json:"session_id"`
	UserID     uint      `json:"user_id"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	Sources    []string  `json:"sources"`
	Confidence int       `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewChatPersistTask 创建带唯一 TaskID 的任务。
func NewChatPersistTask(sessionID, userID uint, query, answer string, sources []string, confidence int) ChatPersistTask {
	return ChatPersistTask{
		TaskID:     uuid.NewString(),
		SessionID:  sessionID,
		UserID:     userID,
		Query:      query,
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}
}
