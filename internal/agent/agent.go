// ABOUTME: Agent collaborator contract: request/result types, the Agent and Tool interfaces
// ABOUTME: Shared tool invocation that records every call as an auditable ToolCall

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tmc/langchaingo/tools"
)

// Roles allowed in replayed history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyResponse indicates the agent produced no text for the user.
	ErrEmptyResponse = errors.New("agent returned an empty response")

	// ErrTooManyRounds indicates the tool-use loop hit its limit without a final answer.
	ErrTooManyRounds = errors.New("agent exceeded maximum tool rounds")
)

// HistoryMessage is one prior turn replayed to the agent.
type HistoryMessage struct {
	Role    string
	Content string
}

// Request is the input to a single agent turn.
type Request struct {
	Owner   string
	Message string
	History []HistoryMessage
}

// ToolCall records one tool invocation made while producing a Result.
type ToolCall struct {
	ToolName  string
	Arguments map[string]any
	Result    json.RawMessage
}

// Result is the outcome of an agent turn. ToolCalls may be empty.
type Result struct {
	Content   string
	ToolCalls []ToolCall
}

// Agent answers a user message given prior history, possibly using tools.
// Implementations should stop work when ctx is done; callers stop waiting
// at the deadline regardless.
type Agent interface {
	Run(ctx context.Context, req *Request) (*Result, error)
}

// Tool is a langchaingo tool that also describes its JSON input schema.
// Call receives the JSON-encoded arguments and returns a JSON document.
type Tool interface {
	tools.Tool
	Parameters() map[string]any
}

// Toolkit returns the tools an agent may use while acting for owner.
type Toolkit func(owner string) []Tool

// toolFailedResult is what the model and the audit see when a tool errors.
// The underlying error is only logged.
var toolFailedResult = json.RawMessage(`{"error":"tool failed"}`)

// invokeTool runs t with the raw JSON arguments and records the call.
func invokeTool(ctx context.Context, logger *slog.Logger, t Tool, rawArgs string) ToolCall {
	call := ToolCall{ToolName: t.Name(), Arguments: map[string]any{}}
	if rawArgs == "" {
		rawArgs = "{}"
	}
	if err := json.Unmarshal([]byte(rawArgs), &call.Arguments); err != nil {
		logger.Warn("tool arguments are not a JSON object", "tool", t.Name(), "error", err)
		call.Arguments = map[string]any{}
	}

	out, err := t.Call(ctx, rawArgs)
	switch {
	case err != nil:
		logger.Error("tool call failed", "tool", t.Name(), "error", err)
		call.Result = toolFailedResult
	case json.Valid([]byte(out)):
		call.Result = json.RawMessage(out)
	default:
		call.Result, _ = json.Marshal(out)
	}

	logger.Debug("tool call", "tool", t.Name(), "args", rawArgs, "result", string(call.Result))
	return call
}

// indexTools maps tool names to tools.
func indexTools(list []Tool) map[string]Tool {
	m := make(map[string]Tool, len(list))
	for _, t := range list {
		m[t.Name()] = t
	}
	return m
}
