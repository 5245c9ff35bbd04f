// ABOUTME: OpenAI-compatible chat-completions agent with a bounded tool-use loop
// ABOUTME: Works against OpenAI, OpenRouter or any server speaking /chat/completions

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultMaxRounds caps tool-use iterations per turn.
const DefaultMaxRounds = 6

// DefaultSystemPrompt frames the model as a task assistant.
const DefaultSystemPrompt = `You are a helpful assistant that manages the user's todo list.
Use the provided tools to list, add, complete, update and delete tasks.
Always look tasks up with list_tasks before acting on them by id.
Keep answers short and confirm what you changed.`

// OpenAIConfig configures an OpenAIAgent.
type OpenAIConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxRounds    int
	SystemPrompt string
	HTTPClient   *http.Client
}

// OpenAIAgent runs turns against an OpenAI-compatible chat completions API.
type OpenAIAgent struct {
	cfg     OpenAIConfig
	toolkit Toolkit
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAIAgent creates an agent. toolkit may be nil for a tool-less agent.
func NewOpenAIAgent(cfg OpenAIConfig, toolkit Toolkit, logger *slog.Logger) (*OpenAIAgent, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIAgent{
		cfg:     cfg,
		toolkit: toolkit,
		client:  client,
		logger:  logger.With("component", "agent", "provider", "openai"),
	}, nil
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Run executes one turn. Tool calls made along the way are returned in order.
func (a *OpenAIAgent) Run(ctx context.Context, req *Request) (*Result, error) {
	var toolList []Tool
	if a.toolkit != nil {
		toolList = a.toolkit(req.Owner)
	}
	registry := indexTools(toolList)

	toolDefs := make([]map[string]any, 0, len(toolList))
	for _, t := range toolList {
		toolDefs = append(toolDefs, buildToolDef(t.Name(), t.Description(), t.Parameters()))
	}

	messages := []map[string]any{
		{"role": "system", "content": a.cfg.SystemPrompt},
	}
	for _, m := range req.History {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
		}
	}
	messages = append(messages, map[string]any{"role": RoleUser, "content": req.Message})

	result := &Result{}
	for round := 0; round < a.cfg.MaxRounds; round++ {
		msg, err := a.complete(ctx, messages, toolDefs)
		if err != nil {
			return nil, err
		}

		if len(msg.ToolCalls) == 0 {
			if strings.TrimSpace(msg.Content) == "" {
				return nil, ErrEmptyResponse
			}
			result.Content = msg.Content
			a.logger.Debug("agent finished", "rounds", round+1, "tool_calls", len(result.ToolCalls))
			return result, nil
		}

		messages = append(messages, map[string]any{
			"role":       RoleAssistant,
			"content":    msg.Content,
			"tool_calls": msg.ToolCalls,
		})

		// Some models repeat a tool_call id within one response.
		seen := make(map[string]bool)
		for _, tc := range msg.ToolCalls {
			if seen[tc.ID] {
				continue
			}
			seen[tc.ID] = true

			var content string
			if t, ok := registry[tc.Function.Name]; ok {
				call := invokeTool(ctx, a.logger, t, tc.Function.Arguments)
				result.ToolCalls = append(result.ToolCalls, call)
				content = string(call.Result)
			} else {
				a.logger.Warn("model requested unknown tool", "tool", tc.Function.Name)
				content = fmt.Sprintf(`{"error":"unknown tool %q"}`, tc.Function.Name)
			}

			messages = append(messages, map[string]any{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"content":      content,
			})
		}
	}

	return nil, ErrTooManyRounds
}

func (a *OpenAIAgent) complete(ctx context.Context, messages, toolDefs []map[string]any) (*chatMessage, error) {
	reqBody := map[string]any{
		"model":    a.cfg.Model,
		"messages": messages,
	}
	if len(toolDefs) > 0 {
		reqBody["tools"] = toolDefs
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("model response has no choices")
	}
	return &apiResp.Choices[0].Message, nil
}

// buildToolDef constructs an OpenAI-compatible tool definition.
func buildToolDef(name, description string, parameters map[string]any) map[string]any {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters":  parameters,
		},
	}
}
