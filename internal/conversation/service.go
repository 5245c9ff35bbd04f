// ABOUTME: Conversation service: registry, history projection, turn orchestration and directory
// ABOUTME: Every turn persists the user message before the agent runs, so input is never lost

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/todo-gateway/internal/agent"
	"github.com/2389/todo-gateway/internal/store"
)

// Error taxonomy. Callers classify with errors.Is.
var (
	// ErrValidation is returned when the user message is empty after trimming.
	ErrValidation = errors.New("message is empty")

	// ErrNotFound is returned when a conversation doesn't exist or belongs to another owner.
	ErrNotFound = errors.New("conversation not found")

	// ErrCollaborator is returned when the agent fails, times out or returns nothing usable.
	ErrCollaborator = errors.New("agent failure")

	// ErrStorage is returned for any persistence failure.
	ErrStorage = errors.New("storage failure")
)

// Caller-facing texts.
const (
	ValidationText = "I didn't catch that. Could you tell me what you'd like to do with your tasks?"
	NotFoundText   = "Conversation not found."
	FailureText    = "I'm having trouble processing your request right now. Please try again."
)

const (
	// PreviewLength is the maximum preview length, in characters.
	PreviewLength = 80

	// EmptyPreview is shown for conversations without a user message.
	EmptyPreview = "New conversation"

	// DefaultAgentTimeout bounds a single agent call.
	DefaultAgentTimeout = 60 * time.Second
)

// UserText returns the text a caller should see for err.
// Validation and not-found keep their meaning; everything else is generic.
func UserText(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return ValidationText
	case errors.Is(err, ErrNotFound):
		return NotFoundText
	default:
		return FailureText
	}
}

// TurnResult is what a completed turn reports to its caller.
type TurnResult struct {
	ConversationID string
	Response       string
	ToolCalls      []agent.ToolCall
}

// Summary is one entry of an owner's conversation directory.
type Summary struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Preview   string
}

// Service owns conversation and message persistence around agent turns.
type Service struct {
	store        store.ConversationStore
	agent        agent.Agent
	agentTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a conversation service.
func New(s store.ConversationStore, a agent.Agent, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        s,
		agent:        a,
		agentTimeout: DefaultAgentTimeout,
		logger:       logger.With("component", "conversation"),
		now:          time.Now,
	}
}

// SetAgentTimeout changes the bound on agent calls. Non-positive values are ignored.
func (s *Service) SetAgentTimeout(d time.Duration) {
	if d > 0 {
		s.agentTimeout = d
	}
}

// ResolveOrCreate returns the owner's conversation with the given id, or a new
// one when id is empty, unknown, or owned by someone else.
func (s *Service) ResolveOrCreate(ctx context.Context, owner, id string) (*store.Conversation, error) {
	if id != "" {
		conv, err := s.store.GetConversation(ctx, owner, id)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, storageError("resolving conversation", err)
		}
		s.logger.Info("unknown conversation id, starting a new conversation", "owner", owner, "requested_id", id)
	}

	now := s.now()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, storageError("creating conversation", err)
	}

	s.logger.Debug("conversation created", "owner", owner, "conversation_id", conv.ID)
	return conv, nil
}

// Touch advances the conversation's updated_at to now. It never moves backwards.
func (s *Service) Touch(ctx context.Context, id string) error {
	if err := s.store.TouchConversation(ctx, id, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storageError("touching conversation", err)
	}
	return nil
}

// Project returns the conversation's dialogue as role/content pairs in order.
// Tool payloads and non-dialogue roles are dropped. A conversation without
// messages yields an empty slice.
func (s *Service) Project(ctx context.Context, conversationID string) ([]agent.HistoryMessage, error) {
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, storageError("loading history", err)
	}

	history := make([]agent.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != store.RoleUser && m.Role != store.RoleAssistant {
			continue
		}
		history = append(history, agent.HistoryMessage{Role: string(m.Role), Content: m.Content})
	}
	return history, nil
}

// RunTurn runs one user turn: validate, resolve the conversation, snapshot
// history, persist the user message, call the agent, persist the reply.
func (s *Service) RunTurn(ctx context.Context, owner, message, conversationID string) (*TurnResult, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return nil, ErrValidation
	}

	conv, err := s.ResolveOrCreate(ctx, owner, conversationID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("owner", owner, "conversation_id", conv.ID)

	// History is read before the new message is written so the agent never
	// sees the message it is answering.
	history, err := s.Project(ctx, conv.ID)
	if err != nil {
		logger.Error("failed to load history", "error", err)
		return nil, err
	}

	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Content:        text,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		logger.Error("failed to persist user message", "error", err)
		return nil, storageError("saving user message", err)
	}

	res, err := s.callAgent(ctx, &agent.Request{Owner: owner, Message: text, History: history})
	if err != nil {
		logger.Error("agent call failed", "error", err, "user_message_id", userMsg.ID)
		return nil, err
	}

	assistantMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleAssistant,
		Content:        res.Content,
		ToolCalls:      toStoreToolCalls(res.ToolCalls),
		CreatedAt:      s.now(),
	}
	// The reply is saved even if the caller went away while the agent ran.
	if err := s.store.AppendMessage(context.WithoutCancel(ctx), assistantMsg); err != nil {
		logger.Error("failed to persist assistant message", "error", err)
		return nil, storageError("saving assistant message", err)
	}

	logger.Info("turn completed", "tool_calls", len(res.ToolCalls))

	calls := res.ToolCalls
	if calls == nil {
		calls = []agent.ToolCall{}
	}
	return &TurnResult{
		ConversationID: conv.ID,
		Response:       res.Content,
		ToolCalls:      calls,
	}, nil
}

// agentOutcome carries the agent's return values out of its goroutine.
type agentOutcome struct {
	res *agent.Result
	err error
}

// callAgent runs the agent under the configured timeout and turns every
// kind of failure into ErrCollaborator. The turn stops waiting at the
// deadline even if the agent ignores its context.
func (s *Service) callAgent(ctx context.Context, req *agent.Request) (*agent.Result, error) {
	if s.agent == nil {
		return nil, fmt.Errorf("%w: no agent configured", ErrCollaborator)
	}

	actx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	done := make(chan agentOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- agentOutcome{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		res, err := s.agent.Run(actx, req)
		done <- agentOutcome{res: res, err: err}
	}()

	var out agentOutcome
	select {
	case out = <-done:
	case <-actx.Done():
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, actx.Err())
	}

	switch {
	case out.err != nil:
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, out.err)
	case out.res == nil:
		return nil, fmt.Errorf("%w: agent returned no result", ErrCollaborator)
	case strings.TrimSpace(out.res.Content) == "":
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, agent.ErrEmptyResponse)
	}
	if err := validateToolCalls(out.res.ToolCalls); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, err)
	}
	return out.res, nil
}

// validateToolCalls rejects tool calls that could not be stored verbatim.
// An empty result is allowed and is stored as null.
func validateToolCalls(calls []agent.ToolCall) error {
	for i, call := range calls {
		if strings.TrimSpace(call.ToolName) == "" {
			return fmt.Errorf("tool call %d has no tool name", i)
		}
		if len(call.Result) > 0 && !json.Valid(call.Result) {
			return fmt.Errorf("tool call %d (%s) has a malformed result", i, call.ToolName)
		}
		if _, err := json.Marshal(call.Arguments); err != nil {
			return fmt.Errorf("tool call %d (%s) has unencodable arguments: %w", i, call.ToolName, err)
		}
	}
	return nil
}

// List returns the owner's conversations, most recently active first.
func (s *Service) List(ctx context.Context, owner string) ([]Summary, error) {
	convs, err := s.store.ListConversations(ctx, owner)
	if err != nil {
		return nil, storageError("listing conversations", err)
	}

	out := make([]Summary, 0, len(convs))
	for _, c := range convs {
		preview := EmptyPreview
		if c.HasUserMessage {
			preview = truncate(c.FirstUserMessage, PreviewLength)
		}
		out = append(out, Summary{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
			Preview:   preview,
		})
	}
	return out, nil
}

// GetMessages returns every message of the owner's conversation in order,
// including tool-call payloads.
func (s *Service) GetMessages(ctx context.Context, owner, id string) ([]*store.Message, error) {
	if _, err := s.store.GetConversation(ctx, owner, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageError("loading conversation", err)
	}

	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, storageError("loading messages", err)
	}
	return msgs, nil
}

// Delete removes the owner's conversation together with all of its messages.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteConversation(ctx, owner, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storageError("deleting conversation", err)
	}

	s.logger.Info("conversation deleted", "owner", owner, "conversation_id", id)
	return nil
}

func toStoreToolCalls(calls []agent.ToolCall) []store.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]store.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = store.ToolCall{
			ToolName:  c.ToolName,
			Arguments: c.Arguments,
			Result:    c.Result,
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
