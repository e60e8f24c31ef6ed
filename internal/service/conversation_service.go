package service

import (
	"context"
	"errors"
	"strings"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/internal/repository"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/tasks"
)

const (
	defaultSessionTitle = "New Chat"
	sessionTitleRunes   = 30
)

// AskRequest 是一次问答请求。UserID 为空表示游客。
type AskRequest struct {
	Query     string
	SessionID *uint
	UserID    *uint
}

// AskResponse 在回答之外返回本轮对话被保存到的会话。
type AskResponse struct {
	model.AnswerResult
	SessionID *uint `json:"session_id,omitempty"`
}

// Recorder 负责保存一轮问答，可以是同步落库或发往 Kafka。
type Recorder interface {
	Record(ctx context.Context, task tasks.ChatPersistTask) error
}

// ConversationService 定义了会话相关的业务逻辑。
type ConversationService interface {
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
	ListSessions(ctx context.Context, userID uint) ([]model.SessionView, error)
	Messages(ctx context.Context, userID, sessionID uint) ([]model.MessageView, error)
	CreateSession(ctx context.Context, userID uint, title string) (model.SessionView, error)
	DeleteSession(ctx context.Context, userID, sessionID uint) error
}

type conversationService struct {
	chat          ChatService
	repo          repository.ConversationRepository
	recorder      Recorder
	historyWindow int
}

// NewConversationService 创建一个新的 ConversationService。recorder 为 nil 时不保存对话。
func NewConversationService(chat ChatService, repo repository.ConversationRepository, recorder Recorder, historyWindow int) ConversationService {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &conversationService{chat: chat, repo: repo, recorder: recorder, historyWindow: historyWindow}
}

// Ask 加载已授权的历史、调用问答核心，并为登录用户保存本轮对话。
func (s *conversationService) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return AskResponse{}, ErrEmptyQuery
	}

	session := s.authorizedSession(ctx, req)
	history := s.loadHistory(ctx, session)

	result := s.chat.Answer(ctx, query, history)
	resp := AskResponse{AnswerResult: result}

	if req.UserID == nil {
		return resp, nil
	}

	// 只把对话写入属于当前用户的会话，否则新建一个
	if session == nil || !session.OwnedBy(*req.UserID) {
		session = &model.ChatSession{UserID: req.UserID, Title: sessionTitle(query)}
		if err := s.repo.CreateSession(ctx, session); err != nil {
			log.Errorf("[ConversationService] 创建会话失败, userID: %d, error: %v", *req.UserID, err)
			return resp, nil
		}
	}
	sessionID := session.ID
	resp.SessionID = &sessionID

	if s.recorder != nil {
		task := tasks.NewChatPersistTask(sessionID, *req.UserID, query, result.Answer, result.Sources, result.Confidence)
		// 即使请求被取消，也保存已经生成的回答
		if err := s.recorder.Record(context.WithoutCancel(ctx), task); err != nil {
			log.Errorf("[ConversationService] 保存对话失败, sessionID: %d, error: %v", sessionID, err)
		}
	}
	return resp, nil
}

// authorizedSession 返回请求可以读取历史的会话：游客会话对任何人开放，
// 有归属的会话只对其所有者开放。
func (s *conversationService) authorizedSession(ctx context.Context, req AskRequest) *model.ChatSession {
	if req.SessionID == nil {
		return nil
	}
	session, err := s.repo.FindSession(ctx, *req.SessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			log.Warnf("[ConversationService] 查询会话失败, sessionID: %d, error: %v", *req.SessionID, err)
		}
		return nil
	}
	if session.IsGuest() {
		return session
	}
	if req.UserID != nil && session.OwnedBy(*req.UserID) {
		return session
	}
	log.Warnf("[ConversationService] 拒绝访问他人会话, sessionID: %d", *req.SessionID)
	return nil
}

func (s *conversationService) loadHistory(ctx context.Context, session *model.ChatSession) []model.ChatTurn {
	if session == nil {
		return nil
	}
	messages, err := s.repo.RecentMessages(ctx, session.ID, s.historyWindow)
	if err != nil {
		log.Warnf("[ConversationService] 加载历史失败，按无历史处理: %v", err)
		return nil
	}
	turns := make([]model.ChatTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, m.Turn())
	}
	return turns
}

func sessionTitle(query string) string {
	runes := []rune(query)
	if len(runes) > sessionTitleRunes {
		runes = runes[:sessionTitleRunes]
	}
	return string(runes) + "..."
}

func (s *conversationService) ListSessions(ctx context.Context, userID uint) ([]model.SessionView, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]model.SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, sessions[i].View())
	}
	return views, nil
}

// ownedSession 在会话不存在或不属于 userID 时都返回 ErrSessionNotFound。
func (s *conversationService) ownedSession(ctx context.Context, userID, sessionID uint) (*model.ChatSession, error) {
	session, err := s.repo.FindSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.OwnedBy(userID) {
		return nil, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *conversationService) Messages(ctx context.Context, userID, sessionID uint) ([]model.MessageView, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.repo.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	views := make([]model.MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, m.View())
	}
	return views, nil
}

func (s *conversationService) CreateSession(ctx context.Context, userID uint, title string) (model.SessionView, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultSessionTitle
	}
	session := &model.ChatSession{UserID: &userID, Title: title}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return model.SessionView{}, err
	}
	return session.View(), nil
}

func (s *conversationService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, sessionID)
}
