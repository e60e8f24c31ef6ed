package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/internal/repository"
	"satyam-ai-go/pkg/tasks"
)

type fakeChat struct {
	histories [][]model.ChatTurn
	result    model.AnswerResult
}

func (f *fakeChat) Answer(_ context.Context, _ string, history []model.ChatTurn) model.AnswerResult {
	f.histories = append(f.histories, history)
	return f.result
}

type memRecorder struct {
	mu    sync.Mutex
	tasks []tasks.ChatPersistTask
	err   error
}

func (m *memRecorder) Record(_ context.Context, task tasks.ChatPersistTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return m.err
}

func newConversationRepo(t *testing.T) repository.ConversationRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewConversationRepository(db)
}

func uintPtr(v uint) *uint { return &v }

func groundedResult() model.AnswerResult {
	return model.AnswerResult{Answer: "Section 302 prescribes...", Sources: []string{"[Index: legal-index] [Source: ipc.pdf] [Chunk: 1]"}, Confidence: 91}
}

func TestAskAsGuestIsNotPersisted(t *testing.T) {
	chat := &fakeChat{result: groundedResult()}
	rec := &memRecorder{}
	svc := NewConversationService(chat, newConversationRepo(t), rec, 6)

	resp, err := svc.Ask(context.Background(), AskRequest{Query: "What is Section 302?"})
	require.NoError(t, err)
	assert.Equal(t, groundedResult(), resp.AnswerResult)
	assert.Nil(t, resp.SessionID)
	assert.Empty(t, rec.tasks)
}

func TestAskCreatesSessionForUser(t *testing.T) {
	repo := newConversationRepo(t)
	chat := &fakeChat{result: groundedResult()}
	rec := &memRecorder{}
	svc := NewConversationService(chat, repo, rec, 6)

	query := "What is the punishment for theft under the Indian Penal Code?"
	resp, err := svc.Ask(context.Background(), AskRequest{Query: query, UserID: uintPtr(5)})
	require.NoError(t, err)
	require.NotNil(t, resp.SessionID)

	session, err := repo.FindSession(context.Background(), *resp.SessionID)
	require.NoError(t, err)
	assert.True(t, session.OwnedBy(5))
	assert.Equal(t, "What is the punishment for the...", session.Title)

	require.Len(t, rec.tasks, 1)
	task := rec.tasks[0]
	assert.Equal(t, *resp.SessionID, task.SessionID)
	assert.EqualValues(t, 5, task.UserID)
	assert.Equal(t, query, task.Query)
	assert.Equal(t, groundedResult().Sources, task.Sources)
}

func TestAskLoadsOwnedHistoryOnly(t *testing.T) {
	repo := newConversationRepo(t)
	ctx := context.Background()

	owned := &model.ChatSession{UserID: uintPtr(1), Title: "mine"}
	require.NoError(t, repo.CreateSession(ctx, owned))
	require.NoError(t, repo.AppendMessages(ctx, owned.ID,
		model.ChatMessage{Role: model.RoleUser, Content: "What is Section 302?"},
		model.ChatMessage{Role: model.RoleAI, Content: "It defines murder."},
	))

	chat := &fakeChat{result: groundedResult()}
	rec := &memRecorder{}
	svc := NewConversationService(chat, repo, rec, 6)

	resp, err := svc.Ask(ctx, AskRequest{Query: "What is the punishment?", SessionID: &owned.ID, UserID: uintPtr(1)})
	require.NoError(t, err)
	require.Len(t, chat.histories, 1)
	assert.Equal(t, []model.ChatTurn{
		{Role: model.RoleUser, Content: "What is Section 302?"},
		{Role: model.RoleAI, Content: "It defines murder."},
	}, chat.histories[0])
	assert.Equal(t, owned.ID, *resp.SessionID)

	// 其他用户使用同一个会话 ID 时既读不到历史，也不会写入该会话
	resp, err = svc.Ask(ctx, AskRequest{Query: "What is the punishment?", SessionID: &owned.ID, UserID: uintPtr(2)})
	require.NoError(t, err)
	assert.Empty(t, chat.histories[1])
	assert.NotEqual(t, owned.ID, *resp.SessionID)

	// 游客也读不到有归属的会话
	_, err = svc.Ask(ctx, AskRequest{Query: "What is the punishment?", SessionID: &owned.ID})
	require.NoError(t, err)
	assert.Empty(t, chat.histories[2])
}

func TestAskReadsGuestSession(t *testing.T) {
	repo := newConversationRepo(t)
	ctx := context.Background()
	guest := &model.ChatSession{Title: "guest"}
	require.NoError(t, repo.CreateSession(ctx, guest))
	require.NoError(t, repo.AppendMessages(ctx, guest.ID, model.ChatMessage{Role: model.RoleUser, Content: "hello"}))

	chat := &fakeChat{}
	svc := NewConversationService(chat, repo, nil, 6)
	_, err := svc.Ask(ctx, AskRequest{Query: "and then?", SessionID: &guest.ID})
	require.NoError(t, err)
	assert.Len(t, chat.histories[0], 1)
}

func TestAskRecorderFailureIsSwallowed(t *testing.T) {
	chat := &fakeChat{result: groundedResult()}
	rec := &memRecorder{err: errors.New("broker down")}
	svc := NewConversationService(chat, newConversationRepo(t), rec, 6)

	resp, err := svc.Ask(context.Background(), AskRequest{Query: "q", UserID: uintPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 91, resp.Confidence)
}

func TestAskEmptyQuery(t *testing.T) {
	svc := NewConversationService(&fakeChat{}, newConversationRepo(t), nil, 6)
	_, err := svc.Ask(context.Background(), AskRequest{Query: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSessionOwnership(t *testing.T) {
	repo := newConversationRepo(t)
	ctx := context.Background()
	svc := NewConversationService(&fakeChat{}, repo, nil, 6)

	view, err := svc.CreateSession(ctx, 1, "  ")
	require.NoError(t, err)
	assert.Equal(t, "New Chat", view.Title)

	_, err = svc.Messages(ctx, 2, view.ID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, 2, view.ID), repository.ErrSessionNotFound)

	msgs, err := svc.Messages(ctx, 1, view.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	sessions, err := svc.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, svc.DeleteSession(ctx, 1, view.ID))
	sessions, err = svc.ListSessions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
