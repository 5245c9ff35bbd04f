// ABOUTME: Store interfaces and data types for todo-gateway persistence
// ABOUTME: Defines Conversation, Message, Task and the interfaces the services consume

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist or is not
// visible to the requesting owner.
var ErrNotFound = errors.New("not found")

// ErrInvalidRole is returned when a message carries a role outside the closed set.
var ErrInvalidRole = errors.New("invalid message role")

// Role identifies who authored a message.
type Role string

// Message roles. No other value is ever persisted.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Conversation is a durable chat session owned by a single user.
type Conversation struct {
	ID        string
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationSummary is a conversation plus the content of its earliest
// user message, used to build list previews.
type ConversationSummary struct {
	Conversation
	FirstUserMessage string
	HasUserMessage   bool
}

// ToolCall is one recorded tool invocation attached to an assistant message.
type ToolCall struct {
	ToolName  string          `json:"tool_name"`
	Arguments map[string]any  `json:"arguments"`
	Result    json.RawMessage `json:"result"`
}

// Message is a single immutable turn within a conversation.
//
// ToolCalls is nil when the message recorded no tool use. A non-nil empty
// slice is stored and returned as an empty list, never collapsed to nil.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	ToolCalls      []ToolCall
	CreatedAt      time.Time
}

// Task is a single item on a user's todo list.
type Task struct {
	ID          string
	Owner       string
	Title       string
	IsCompleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConversationStore persists conversations and their messages.
// Every owner-facing lookup takes the owner and filters on it in the query.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, owner, id string) (*Conversation, error)
	ListConversations(ctx context.Context, owner string) ([]*ConversationSummary, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	DeleteConversation(ctx context.Context, owner, id string) error

	// AppendMessage inserts msg and advances the parent conversation's
	// updated_at in a single transaction.
	AppendMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
}

// TaskStore persists tasks. Lookups are owner-scoped.
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, owner, id string) (*Task, error)
	ListTasks(ctx context.Context, owner string) ([]*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, owner, id string) error
}

// Store is the full persistence surface of the gateway.
type Store interface {
	ConversationStore
	TaskStore

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
