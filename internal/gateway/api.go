// ABOUTME: HTTP API handlers for chat turns and the conversation directory
// ABOUTME: Provides POST /api/chat and the /api/conversations endpoints

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/todo-gateway/internal/agent"
	"github.com/2389/todo-gateway/internal/auth"
	"github.com/2389/todo-gateway/internal/conversation"
	"github.com/2389/todo-gateway/internal/store"
)

// ChatRequest is the JSON request body for POST /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ToolCallResponse is one tool invocation reported to the client.
type ToolCallResponse struct {
	ToolName  string          `json:"tool_name"`
	Arguments map[string]any  `json:"arguments"`
	Result    json.RawMessage `json:"result"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	ConversationID string             `json:"conversation_id"`
	Response       string             `json:"response"`
	ToolCalls      []ToolCallResponse `json:"tool_calls"`
}

// ConversationResponse is one entry of GET /api/conversations.
type ConversationResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Preview   string `json:"preview"`
}

// MessageResponse is one message of a conversation.
// ToolCalls is omitted when the message made no tool calls.
type MessageResponse struct {
	ID        string              `json:"id"`
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	ToolCalls *[]ToolCallResponse `json:"tool_calls,omitempty"`
	CreatedAt string              `json:"created_at"`
}

// ConversationMessagesResponse is the JSON response for GET /api/conversations/{id}/messages.
type ConversationMessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes v as a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to encode response", "error", err)
	}
}

// sendConversationError maps conversation errors onto HTTP responses.
// Anything other than validation or not-found is logged and reported generically.
func (g *Gateway) sendConversationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrValidation):
		g.sendJSONError(w, http.StatusBadRequest, conversation.ValidationText)
	case errors.Is(err, conversation.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, conversation.NotFoundText)
	default:
		g.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, conversation.FailureText)
	}
}

// requireOwner returns the authenticated owner, writing 401 if there is none.
func (g *Gateway) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := auth.UserID(r.Context())
	if owner == "" {
		g.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	return owner, true
}

// decodeJSON decodes a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toToolCallResponses(calls []agent.ToolCall) []ToolCallResponse {
	out := make([]ToolCallResponse, len(calls))
	for i, c := range calls {
		out[i] = ToolCallResponse{ToolName: c.ToolName, Arguments: c.Arguments, Result: c.Result}
	}
	return out
}

func storedToolCallResponses(calls []store.ToolCall) *[]ToolCallResponse {
	if calls == nil {
		return nil
	}
	out := make([]ToolCallResponse, len(calls))
	for i, c := range calls {
		out[i] = ToolCallResponse{ToolName: c.ToolName, Arguments: c.Arguments, Result: c.Result}
	}
	return &out
}

// handleChat handles POST /api/chat requests.
// It runs one turn and returns the assistant reply with its tool-call audit.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A malformed id can never match; treat it like any other unknown id.
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID != "" {
		if _, err := uuid.Parse(conversationID); err != nil {
			g.logger.Info("ignoring malformed conversation_id", "owner", owner, "conversation_id", conversationID)
			conversationID = ""
		}
	}

	res, err := g.conversation.RunTurn(r.Context(), owner, req.Message, conversationID)
	if err != nil {
		g.sendConversationError(w, r, err)
		return
	}

	g.sendJSON(w, http.StatusOK, ChatResponse{
		ConversationID: res.ConversationID,
		Response:       res.Response,
		ToolCalls:      toToolCallResponses(res.ToolCalls),
	})
}

// handleListConversations handles GET /api/conversations requests.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	summaries, err := g.conversation.List(r.Context(), owner)
	if err != nil {
		g.sendConversationError(w, r, err)
		return
	}

	response := make([]ConversationResponse, len(summaries))
	for i, s := range summaries {
		response[i] = ConversationResponse{
			ID:        s.ID,
			CreatedAt: formatTimestamp(s.CreatedAt),
			UpdatedAt: formatTimestamp(s.UpdatedAt),
			Preview:   s.Preview,
		}
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleConversationRoutes dispatches /api/conversations/{id} and
// /api/conversations/{id}/messages.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/conversations/"
	const suffix = "/messages"

	rest := strings.TrimPrefix(r.URL.Path, prefix)
	wantMessages := strings.HasSuffix(rest, suffix)
	id := strings.TrimSuffix(rest, suffix)

	if id == "" || strings.Contains(id, "/") {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid conversation_id format")
		return
	}

	switch {
	case wantMessages && r.Method == http.MethodGet:
		g.handleConversationMessages(w, r, id)
	case !wantMessages && r.Method == http.MethodDelete:
		g.handleDeleteConversation(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleConversationMessages handles GET /api/conversations/{id}/messages requests.
func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	messages, err := g.conversation.GetMessages(r.Context(), owner, id)
	if err != nil {
		g.sendConversationError(w, r, err)
		return
	}

	response := ConversationMessagesResponse{
		ConversationID: id,
		Messages:       make([]MessageResponse, len(messages)),
	}
	for i, msg := range messages {
		response.Messages[i] = MessageResponse{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			ToolCalls: storedToolCallResponses(msg.ToolCalls),
			CreatedAt: formatTimestamp(msg.CreatedAt),
		}
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleDeleteConversation handles DELETE /api/conversations/{id} requests.
func (g *Gateway) handleDeleteConversation(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	if err := g.conversation.Delete(r.Context(), owner, id); err != nil {
		g.sendConversationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
