// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	messages      map[string][]*Message    // keyed by conversation ID
	tasks         map[string]*Task         // keyed by task ID
	err           error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		tasks:         make(map[string]*Task),
	}
}

// SetError makes every subsequent call return err. Pass nil to clear it.
func (m *MockStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation visible to owner.
func (m *MockStore) GetConversation(ctx context.Context, owner, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	c, ok := m.conversations[id]
	if !ok || c.Owner != owner {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// ListConversations returns the owner's conversations, most recent first.
func (m *MockStore) ListConversations(ctx context.Context, owner string) ([]*ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	var result []*ConversationSummary
	for _, c := range m.conversations {
		if c.Owner != owner {
			continue
		}
		summary := &ConversationSummary{Conversation: *c}
		for _, msg := range m.messages[c.ID] {
			if msg.Role == RoleUser {
				summary.FirstUserMessage = msg.Content
				summary.HasUserMessage = true
				break
			}
		}
		result = append(result, summary)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// TouchConversation advances updated_at.
func (m *MockStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	return m.touchLocked(id, at)
}

func (m *MockStore) touchLocked(id string, at time.Time) error {
	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (m *MockStore) DeleteConversation(ctx context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	c, ok := m.conversations[id]
	if !ok || c.Owner != owner {
		return ErrNotFound
	}
	delete(m.messages, id)
	delete(m.conversations, id)
	return nil
}

// AppendMessage stores a message and touches its conversation.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if !msg.Role.Valid() {
		return ErrInvalidRole
	}

	existing := m.messages[msg.ConversationID]
	if n := len(existing); n > 0 && !msg.CreatedAt.After(existing[n-1].CreatedAt) {
		msg.CreatedAt = existing[n-1].CreatedAt.Add(time.Microsecond)
	}
	if err := m.touchLocked(msg.ConversationID, msg.CreatedAt); err != nil {
		return err
	}

	c := *msg
	m.messages[msg.ConversationID] = append(existing, &c)
	return nil
}

// ListMessages returns a conversation's messages in order.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	result := make([]*Message, 0, len(m.messages[conversationID]))
	for _, msg := range m.messages[conversationID] {
		c := *msg
		result = append(result, &c)
	}
	return result, nil
}

// CreateTask stores a new task.
func (m *MockStore) CreateTask(ctx context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	t := *task
	m.tasks[t.ID] = &t
	return nil
}

// GetTask retrieves the owner's task.
func (m *MockStore) GetTask(ctx context.Context, owner, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	t, ok := m.tasks[id]
	if !ok || t.Owner != owner {
		return nil, ErrNotFound
	}
	result := *t
	return &result, nil
}

// ListTasks returns the owner's tasks, newest first.
func (m *MockStore) ListTasks(ctx context.Context, owner string) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	result := []*Task{}
	for _, t := range m.tasks {
		if t.Owner == owner {
			c := *t
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateTask replaces a task's mutable fields.
func (m *MockStore) UpdateTask(ctx context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	t, ok := m.tasks[task.ID]
	if !ok || t.Owner != task.Owner {
		return ErrNotFound
	}
	task.UpdatedAt = time.Now()
	c := *task
	m.tasks[task.ID] = &c
	return nil
}

// DeleteTask removes the owner's task.
func (m *MockStore) DeleteTask(ctx context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	t, ok := m.tasks[id]
	if !ok || t.Owner != owner {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

// Ping reports the injected error, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
