// Package pipeline 定义了问答完成后的对话落库流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/internal/repository"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/tasks"
)

// Persister 把一轮问答写入会话消息表。
type Persister struct {
	repo repository.ConversationRepository
}

// NewPersister 创建一个新的 Persister 实例。
func NewPersister(repo repository.ConversationRepository) *Persister {
	return &Persister{repo: repo}
}

// Process 是对话落库的主函数，同时作为 Kafka 消费者的处理器。
func (p *Persister) Process(ctx context.Context, task tasks.ChatPersistTask) error {
	if task.SessionID == 0 {
		return errors.New("chat persist task has no session")
	}
	log.Infof("[Persister] 开始保存对话, TaskID: %s, SessionID: %d, UserID: %d", task.TaskID, task.SessionID, task.UserID)

	userMsg := model.ChatMessage{Role: model.RoleUser, Content: task.Query}
	aiMsg := model.ChatMessage{
		Role:       model.RoleAI,
		Content:    task.Answer,
		References: strings.Join(task.Sources, "\n"),
	}
	if err := p.repo.AppendMessages(ctx, task.SessionID, userMsg, aiMsg); err != nil {
		return fmt.Errorf("保存对话消息失败: %w", err)
	}

	log.Infof("[Persister] 对话保存完成, SessionID: %d, 置信度: %d", task.SessionID, task.Confidence)
	return nil
}

// Record 同步保存对话，未启用 Kafka 时直接作为记录器使用。
func (p *Persister) Record(ctx context.Context, task tasks.ChatPersistTask) error {
	return p.Process(ctx, task)
}
