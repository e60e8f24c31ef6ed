package model

import (
	"strings"
	"time"
)

// ChatSession 对应 chat_sessions 表。UserID 为空表示游客会话。
type ChatSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"userId"`
	Title     string    `gorm:"type:varchar(64);not null;default:'New Chat'" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updatedAt"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// OwnedBy 报告会话是否属于指定用户。
func (s *ChatSession) OwnedBy(userID uint) bool {
	return s.UserID != nil && *s.UserID == userID
}

// IsGuest 报告会话是否没有归属用户。
func (s *ChatSession) IsGuest() bool {
	return s.UserID == nil
}

// ChatMessage 对应 chat_messages 表，保存单条对话消息。
// References 保存回答引用的来源标签，按行分隔。
type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  uint      `gorm:"index;not null" json:"sessionId"`
	Role       Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	References string    `gorm:"type:text" json:"references"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// SessionView 是返回给前端的会话结构。
type SessionView struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	CreatedAt LocalTime `json:"createdAt"`
	UpdatedAt LocalTime `json:"updatedAt"`
}

// View 转换为前端展示结构。
func (s *ChatSession) View() SessionView {
	return SessionView{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: LocalTime(s.CreatedAt),
		UpdatedAt: LocalTime(s.UpdatedAt),
	}
}

// MessageView 是返回给前端的消息结构。
type MessageView struct {
	ID         uint      `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	References []string  `json:"references"`
	CreatedAt  LocalTime `json:"createdAt"`
}

// View 转换为前端展示结构，References 拆回来源列表。
func (m ChatMessage) View() MessageView {
	refs := []string{}
	for _, line := range strings.Split(m.References, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			refs = append(refs, line)
		}
	}
	return MessageView{
		ID:         m.ID,
		Role:       m.Role,
		Content:    m.Content,
		References: refs,
		CreatedAt:  LocalTime(m.CreatedAt),
	}
}

// Turn 转换为提示词使用的历史条目。
func (m ChatMessage) Turn() ChatTurn {
	return ChatTurn{Role: m.Role, Content: m.Content}
}
