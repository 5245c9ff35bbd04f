// ABOUTME: Tests for the conversation Service against a real SQLite store
// ABOUTME: Verifies turn ordering, ownership isolation, previews, deletion and failure handling

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/todo-gateway/internal/agent"
	"github.com/2389/todo-gateway/internal/store"
)

// mockAgent implements agent.Agent for testing.
type mockAgent struct {
	mu       sync.Mutex
	result   *agent.Result
	err      error
	block    bool
	hang     chan struct{}
	panicMsg string
	requests []*agent.Request
}

func (m *mockAgent) Run(ctx context.Context, req *agent.Request) (*agent.Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	block, hang, panicMsg := m.block, m.hang, m.panicMsg
	result, err := m.result, m.err
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if hang != nil {
		<-hang
		return &agent.Result{Content: "too late"}, nil
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return result, err
}

func (m *mockAgent) lastRequest() *agent.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

func replying(text string, calls ...agent.ToolCall) *mockAgent {
	return &mockAgent{result: &agent.Result{Content: text, ToolCalls: calls}}
}

func createTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// steppingClock returns strictly increasing times one millisecond apart.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Millisecond)
		return current
	}
}

func newTestService(t *testing.T, a agent.Agent) (*Service, *store.SQLStore) {
	t.Helper()
	s := createTestStore(t)
	svc := New(s, a, nil)
	svc.now = steppingClock(time.Now().UTC())
	return svc, s
}

func countConversations(t *testing.T, s *store.SQLStore, owner string) int {
	t.Helper()
	convs, err := s.ListConversations(context.Background(), owner)
	require.NoError(t, err)
	return len(convs)
}

func TestRunTurn_PersistsUserThenAssistant(t *testing.T) {
	a := replying("Added buy milk.")
	svc, s := newTestService(t, a)
	ctx := context.Background()

	conv, err := svc.ResolveOrCreate(ctx, "alice", "")
	require.NoError(t, err)
	before := conv.UpdatedAt

	res, err := svc.RunTurn(ctx, "alice", "  buy milk  ", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, res.ConversationID)
	assert.Equal(t, "Added buy milk.", res.Response)
	assert.NotNil(t, res.ToolCalls)
	assert.Empty(t, res.ToolCalls)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "buy milk", msgs[0].Content)
	assert.Nil(t, msgs[0].ToolCalls)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Added buy milk.", msgs[1].Content)
	assert.Nil(t, msgs[1].ToolCalls, "no tool calls is stored as absent")

	after, err := s.GetConversation(ctx, "alice", conv.ID)
	require.NoError(t, err)
	assert.False(t, after.UpdatedAt.Before(after.CreatedAt))
	assert.True(t, after.UpdatedAt.After(before), "updated_at must advance")
	assert.True(t, after.UpdatedAt.Equal(msgs[1].CreatedAt))

	assert.Equal(t, "buy milk", a.lastRequest().Message)
	assert.Equal(t, "alice", a.lastRequest().Owner)
}

func TestRunTurn_EmptyMessageRejectedWithoutWrites(t *testing.T) {
	a := replying("unused")
	svc, s := newTestService(t, a)

	for _, msg := range []string{"", "   ", "\n\t "} {
		res, err := svc.RunTurn(context.Background(), "alice", msg, "")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Nil(t, res)
	}

	assert.Zero(t, countConversations(t, s, "alice"))
	assert.Nil(t, a.lastRequest())
}

func TestRunTurn_EmptyMessageDoesNotTouchExisting(t *testing.T) {
	svc, s := newTestService(t, replying("ok"))
	ctx := context.Background()

	conv, err := svc.ResolveOrCreate(ctx, "alice", "")
	require.NoError(t, err)

	_, err = svc.RunTurn(ctx, "alice", "   ", conv.ID)
	require.ErrorIs(t, err, ErrValidation)

	got, err := s.GetConversation(ctx, "alice", conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(conv.UpdatedAt))
}

func TestRunTurn_HistoryExcludesCurrentMessage(t *testing.T) {
	a := replying("first reply")
	svc, _ := newTestService(t, a)
	ctx := context.Background()

	first, err := svc.RunTurn(ctx, "alice", "hello", "")
	require.NoError(t, err)
	assert.Empty(t, a.lastRequest().History)

	a.result = &agent.Result{Content: "second reply"}
	_, err = svc.RunTurn(ctx, "alice", "again", first.ConversationID)
	require.NoError(t, err)

	assert.Equal(t, []agent.HistoryMessage{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "first reply"},
	}, a.lastRequest().History)
}

func TestRunTurn_ForeignConversationStartsNewOne(t *testing.T) {
	svc, s := newTestService(t, replying("hi"))
	ctx := context.Background()

	aliceTurn, err := svc.RunTurn(ctx, "alice", "alice's secret", "")
	require.NoError(t, err)

	bobTurn, err := svc.RunTurn(ctx, "bob", "hello", aliceTurn.ConversationID)
	require.NoError(t, err)
	assert.NotEqual(t, aliceTurn.ConversationID, bobTurn.ConversationID)

	bobConv, err := s.GetConversation(ctx, "bob", bobTurn.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "bob", bobConv.Owner)

	aliceMsgs, err := svc.GetMessages(ctx, "alice", aliceTurn.ConversationID)
	require.NoError(t, err)
	assert.Len(t, aliceMsgs, 2, "alice's conversation is untouched")
}

func TestResolveOrCreate(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.ResolveOrCreate(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Owner)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	same, err := svc.ResolveOrCreate(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, same.ID)

	fresh, err := svc.ResolveOrCreate(ctx, "alice", "does-not-exist")
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, fresh.ID)
	assert.NotEqual(t, "does-not-exist", fresh.ID)

	assert.Equal(t, 2, countConversations(t, s, "alice"))

	msgs, err := s.ListMessages(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "resolving creates no messages")
}

func TestProject_OrderAndEmpty(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()

	conv, err := svc.ResolveOrCreate(ctx, "alice", "")
	require.NoError(t, err)

	empty, err := svc.Project(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	// Identical timestamps still replay in insertion order.
	at := time.Now()
	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		require.NoError(t, s.AppendMessage(ctx, &store.Message{
			ID:             "m" + c,
			ConversationID: conv.ID,
			Role:           role,
			Content:        c,
			CreatedAt:      at,
		}))
	}
	require.NoError(t, s.AppendMessage(ctx, &store.Message{
		ID: "mtool", ConversationID: conv.ID, Role: store.RoleTool, Content: "tool output", CreatedAt: at,
	}))

	history, err := svc.Project(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, h := range history {
		assert.Equal(t, contents[i], h.Content)
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}
}

func TestRunTurn_ToolCallsPersistedVerbatim(t *testing.T) {
	call := agent.ToolCall{
		ToolName:  "add_task",
		Arguments: map[string]any{"title": "buy milk"},
		Result:    json.RawMessage(`{"id":"t1","title":"buy milk","is_completed":false}`),
	}
	svc, _ := newTestService(t, replying("Added.", call))
	ctx := context.Background()

	res, err := svc.RunTurn(ctx, "alice", "add buy milk", "")
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "add_task", res.ToolCalls[0].ToolName)

	msgs, err := svc.GetMessages(ctx, "alice", res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "add_task", msgs[1].ToolCalls[0].ToolName)
	assert.Equal(t, map[string]any{"title": "buy milk"}, msgs[1].ToolCalls[0].Arguments)
	assert.JSONEq(t, string(call.Result), string(msgs[1].ToolCalls[0].Result))
}

func TestRunTurn_AgentFailureKeepsUserMessage(t *testing.T) {
	tests := []struct {
		name  string
		agent *mockAgent
	}{
		{name: "error", agent: &mockAgent{err: errors.New("upstream 500: secret stack trace")}},
		{name: "nil result", agent: &mockAgent{}},
		{name: "blank content", agent: &mockAgent{result: &agent.Result{Content: "  "}}},
		{name: "panic", agent: &mockAgent{panicMsg: "nil map"}},
		{name: "malformed tool result", agent: replying("done", agent.ToolCall{
			ToolName:  "add_task",
			Arguments: map[string]any{"title": "buy milk"},
			Result:    json.RawMessage("{not json"),
		})},
		{name: "unnamed tool call", agent: replying("done", agent.ToolCall{Result: json.RawMessage(`{}`)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, s := newTestService(t, tt.agent)
			ctx := context.Background()

			conv, err := svc.ResolveOrCreate(ctx, "alice", "")
			require.NoError(t, err)

			res, err := svc.RunTurn(ctx, "alice", "buy milk", conv.ID)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrCollaborator)
			assert.Equal(t, FailureText, UserText(err))
			assert.NotContains(t, UserText(err), "secret")

			msgs, err := s.ListMessages(ctx, conv.ID)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, store.RoleUser, msgs[0].Role)
			assert.Equal(t, "buy milk", msgs[0].Content)
		})
	}
}

func TestRunTurn_AgentTimeout(t *testing.T) {
	a := &mockAgent{block: true}
	svc, s := newTestService(t, a)
	svc.SetAgentTimeout(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	_, err := svc.RunTurn(ctx, "alice", "hello", "")
	require.ErrorIs(t, err, ErrCollaborator)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	convs, err := s.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "hello", convs[0].FirstUserMessage)
}

func TestRunTurn_AgentIgnoringContextStillTimesOut(t *testing.T) {
	a := &mockAgent{hang: make(chan struct{})}
	t.Cleanup(func() { close(a.hang) })
	svc, s := newTestService(t, a)
	svc.SetAgentTimeout(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	_, err := svc.RunTurn(ctx, "alice", "hello", "")
	require.ErrorIs(t, err, ErrCollaborator)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	convs, err := s.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	msgs, err := s.ListMessages(ctx, convs[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRunTurn_EmptyToolResultIsAccepted(t *testing.T) {
	svc, s := newTestService(t, replying("done", agent.ToolCall{ToolName: "list_tasks", Arguments: map[string]any{}}))
	ctx := context.Background()

	res, err := svc.RunTurn(ctx, "alice", "show my tasks", "")
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)

	msgs, err := s.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "list_tasks", msgs[1].ToolCalls[0].ToolName)
}

func TestRunTurn_StorageFailureIsGeneric(t *testing.T) {
	ms := store.NewMockStore()
	svc := New(ms, replying("ok"), nil)
	ms.SetError(errors.New("database is locked"))

	_, err := svc.RunTurn(context.Background(), "alice", "hello", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, FailureText, UserText(err))
}

func TestList_PreviewAndOrder(t *testing.T) {
	svc, _ := newTestService(t, replying("sure"))
	ctx := context.Background()

	first, err := svc.RunTurn(ctx, "alice", "hello there", "")
	require.NoError(t, err)
	_, err = svc.RunTurn(ctx, "alice", "second msg", first.ConversationID)
	require.NoError(t, err)

	long := strings.Repeat("ß", PreviewLength+20)
	second, err := svc.RunTurn(ctx, "alice", long, "")
	require.NoError(t, err)

	empty, err := svc.ResolveOrCreate(ctx, "alice", "")
	require.NoError(t, err)

	_, err = svc.RunTurn(ctx, "bob", "bob only", "")
	require.NoError(t, err)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Most recently active first.
	assert.Equal(t, empty.ID, list[0].ID)
	assert.Equal(t, EmptyPreview, list[0].Preview)

	assert.Equal(t, second.ConversationID, list[1].ID)
	assert.Equal(t, strings.Repeat("ß", PreviewLength), list[1].Preview)

	assert.Equal(t, first.ConversationID, list[2].ID)
	assert.Equal(t, "hello there", list[2].Preview)

	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].UpdatedAt.After(list[i-1].UpdatedAt))
	}

	none, err := svc.List(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetMessages_OwnershipRequired(t *testing.T) {
	svc, _ := newTestService(t, replying("ok"))
	ctx := context.Background()

	res, err := svc.RunTurn(ctx, "alice", "hello", "")
	require.NoError(t, err)

	_, err = svc.GetMessages(ctx, "bob", res.ConversationID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, NotFoundText, UserText(err))

	_, err = svc.GetMessages(ctx, "alice", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	msgs, err := svc.GetMessages(ctx, "alice", res.ConversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestDelete_RemovesConversationAndMessages(t *testing.T) {
	svc, s := newTestService(t, replying("ok"))
	ctx := context.Background()

	res, err := svc.RunTurn(ctx, "alice", "hello", "")
	require.NoError(t, err)

	err = svc.Delete(ctx, "bob", res.ConversationID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetMessages(ctx, "alice", res.ConversationID)
	require.NoError(t, err, "failed delete leaves everything in place")

	require.NoError(t, svc.Delete(ctx, "alice", res.ConversationID))

	_, err = svc.GetMessages(ctx, "alice", res.ConversationID)
	assert.ErrorIs(t, err, ErrNotFound)

	orphans, err := s.ListMessages(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	err = svc.Delete(ctx, "alice", res.ConversationID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouch(t *testing.T) {
	svc, s := newTestService(t, nil)
	ctx := context.Background()

	conv, err := svc.ResolveOrCreate(ctx, "alice", "")
	require.NoError(t, err)

	require.NoError(t, svc.Touch(ctx, conv.ID))
	got, err := s.GetConversation(ctx, "alice", conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt))

	assert.ErrorIs(t, svc.Touch(ctx, "missing"), ErrNotFound)
}

func TestUserText(t *testing.T) {
	assert.Equal(t, ValidationText, UserText(ErrValidation))
	assert.Equal(t, NotFoundText, UserText(ErrNotFound))
	assert.Equal(t, FailureText, UserText(storageError("x", errors.New("boom"))))
	assert.Equal(t, FailureText, UserText(errors.New("anything")))
}
