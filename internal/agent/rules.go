// ABOUTME: Offline keyword-driven agent for running without a language model
// ABOUTME: Maps simple commands (add, list, complete, delete) onto task tools

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

const ruleHelpText = `I can help you manage your tasks. Try:
- "add buy milk"
- "list my tasks"
- "complete 1" or "done buy milk"
- "delete 2"`

var (
	addPattern      = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:add|create|new task|remind me to)\s*:?\s+(.+?)\s*$`)
	listPattern     = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:list|show)\b`)
	completePattern = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:complete|done|finish|mark)\s*:?\s+(.+?)\s*$`)
	deletePattern   = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:delete|remove)\s*:?\s+(.+?)\s*$`)
	taskRefCleanup  = regexp.MustCompile(`(?i)^(?:task\s+)?#?|\s+(?:as\s+)?(?:done|complete|completed)$`)
)

// RuleAgent answers a small command vocabulary by calling tools directly.
type RuleAgent struct {
	toolkit Toolkit
	logger  *slog.Logger
}

// NewRuleAgent creates a rule-based agent over toolkit.
func NewRuleAgent(toolkit Toolkit, logger *slog.Logger) *RuleAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleAgent{
		toolkit: toolkit,
		logger:  logger.With("component", "agent", "provider", "rules"),
	}
}

type taskRef struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
}

type taskList struct {
	Tasks     []taskRef `json:"tasks"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Pending   int       `json:"pending"`
}

// Run interprets req.Message as a command.
func (a *RuleAgent) Run(ctx context.Context, req *Request) (*Result, error) {
	var toolList []Tool
	if a.toolkit != nil {
		toolList = a.toolkit(req.Owner)
	}
	registry := indexTools(toolList)
	text := strings.TrimSpace(req.Message)

	switch {
	case addPattern.MatchString(text):
		title := addPattern.FindStringSubmatch(text)[1]
		return a.callAndReport(ctx, registry, "add_task", map[string]any{"title": title}, func(out json.RawMessage) string {
			var t taskRef
			if json.Unmarshal(out, &t) == nil && t.ID != "" {
				return fmt.Sprintf("Added %q to your tasks.", t.Title)
			}
			return errorText(out)
		})

	case listPattern.MatchString(text):
		return a.callAndReport(ctx, registry, "list_tasks", map[string]any{}, formatList)

	case completePattern.MatchString(text):
		ref := completePattern.FindStringSubmatch(text)[1]
		return a.actOnTask(ctx, registry, ref, "complete_task", func(t taskRef) string {
			return fmt.Sprintf("Marked %q as done.", t.Title)
		})

	case deletePattern.MatchString(text):
		ref := deletePattern.FindStringSubmatch(text)[1]
		return a.actOnTask(ctx, registry, ref, "delete_task", func(t taskRef) string {
			return fmt.Sprintf("Deleted %q.", t.Title)
		})
	}

	return &Result{Content: ruleHelpText}, nil
}

// actOnTask resolves ref against the owner's tasks and calls toolName on the match.
func (a *RuleAgent) actOnTask(ctx context.Context, registry map[string]Tool, ref, toolName string, success func(taskRef) string) (*Result, error) {
	lookup, ok := registry["list_tasks"]
	if !ok {
		return &Result{Content: "Task tools are not available right now."}, nil
	}
	out, err := lookup.Call(ctx, "{}")
	if err != nil {
		return nil, fmt.Errorf("looking up tasks: %w", err)
	}
	var list taskList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}

	target, found := resolveTask(list.Tasks, ref)
	if !found {
		return &Result{Content: fmt.Sprintf("I couldn't find a task matching %q.", ref)}, nil
	}

	return a.callAndReport(ctx, registry, toolName, map[string]any{"task_id": target.ID}, func(out json.RawMessage) string {
		var parsed map[string]any
		if json.Unmarshal(out, &parsed) == nil {
			if _, failed := parsed["error"]; !failed {
				return success(target)
			}
		}
		return errorText(out)
	})
}

func (a *RuleAgent) callAndReport(ctx context.Context, registry map[string]Tool, name string, args map[string]any, render func(json.RawMessage) string) (*Result, error) {
	t, ok := registry[name]
	if !ok {
		return &Result{Content: "Task tools are not available right now."}, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding tool arguments: %w", err)
	}
	call := invokeTool(ctx, a.logger, t, string(raw))
	return &Result{Content: render(call.Result), ToolCalls: []ToolCall{call}}, nil
}

// resolveTask matches ref as a 1-based position in tasks or a title substring.
func resolveTask(tasks []taskRef, ref string) (taskRef, bool) {
	ref = strings.TrimSpace(taskRefCleanup.ReplaceAllString(strings.TrimSpace(ref), ""))
	if ref == "" {
		return taskRef{}, false
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(tasks) {
			return tasks[n-1], true
		}
		return taskRef{}, false
	}
	needle := strings.ToLower(ref)
	for _, t := range tasks {
		if t.ID == ref || strings.EqualFold(t.Title, ref) {
			return t, true
		}
	}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			return t, true
		}
	}
	return taskRef{}, false
}

func formatList(out json.RawMessage) string {
	var list taskList
	if err := json.Unmarshal(out, &list); err != nil {
		return errorText(out)
	}
	if len(list.Tasks) == 0 {
		return "You don't have any tasks yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d tasks (%d pending, %d done):", list.Total, list.Pending, list.Completed)
	for i, t := range list.Tasks {
		mark := " "
		if t.IsCompleted {
			mark = "x"
		}
		fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, mark, t.Title)
	}
	return b.String()
}

func errorText(out json.RawMessage) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(out, &e) == nil && e.Error != "" {
		if e.Error == "tool failed" {
			return "Something went wrong while updating your tasks."
		}
		return e.Error
	}
	return "Something went wrong while updating your tasks."
}
