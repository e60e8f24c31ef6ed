// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"satyam-ai-go/internal/model"
)

// ErrSessionNotFound 表示会话不存在。
var ErrSessionNotFound = errors.New("chat session not found")

// ConversationRepository 定义了会话与消息的持久化操作。
type ConversationRepository interface {
	FindSession(ctx context.Context, sessionID uint) (*model.ChatSession, error)
	CreateSession(ctx context.Context, session *model.ChatSession) error
	ListSessions(ctx context.Context, userID uint) ([]model.ChatSession, error)
	// RecentMessages 返回最近 limit 条消息，按时间正序。
	RecentMessages(ctx context.Context, sessionID uint, limit int) ([]model.ChatMessage, error)
	Messages(ctx context.Context, sessionID uint) ([]model.ChatMessage, error)
	// AppendMessages 在一个事务中写入消息并刷新会话的 updated_at。
	AppendMessages(ctx context.Context, sessionID uint, messages ...model.ChatMessage) error
	DeleteSession(ctx context.Context, sessionID uint) error
}

type gormConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建基于 gorm 的 ConversationRepository。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// AutoMigrate 创建或更新会话相关的表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.ChatSession{}, &model.ChatMessage{})
}

func (r *gormConversationRepository) FindSession(ctx context.Context, sessionID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat session %d: %w", sessionID, err)
	}
	return &session, nil
}

func (r *gormConversationRepository) CreateSession(ctx context.Context, session *model.ChatSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func (r *gormConversationRepository) ListSessions(ctx context.Context, userID uint) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	return sessions, nil
}

func (r *gormConversationRepository) RecentMessages(ctx context.Context, sessionID uint, limit int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	// 倒序查询后翻转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *gormConversationRepository) Messages(ctx context.Context, sessionID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

func (r *gormConversationRepository) AppendMessages(ctx context.Context, sessionID uint, messages ...model.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range messages {
			messages[i].ID = 0
			messages[i].SessionID = sessionID
			if err := tx.Create(&messages[i]).Error; err != nil {
				return fmt.Errorf("failed to save chat message: %w", err)
			}
		}
		res := tx.Model(&model.ChatSession{}).Where("id = ?", sessionID).Update("updated_at", time.Now())
		if res.Error != nil {
			return fmt.Errorf("failed to touch chat session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

func (r *gormConversationRepository) DeleteSession(ctx context.Context, sessionID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to delete chat messages: %w", err)
		}
		res := tx.Delete(&model.ChatSession{}, sessionID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete chat session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}
