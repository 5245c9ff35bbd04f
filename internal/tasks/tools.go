// ABOUTME: Agent tools over the task service, bound to a single owner
// ABOUTME: Each tool takes JSON arguments and answers with a JSON document

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/todo-gateway/internal/agent"
	"github.com/2389/todo-gateway/internal/store"
)

// Tool names exposed to agents.
const (
	ToolListTasks    = "list_tasks"
	ToolAddTask      = "add_task"
	ToolCompleteTask = "complete_task"
	ToolToggleTask   = "toggle_task"
	ToolUpdateTask   = "update_task"
	ToolDeleteTask   = "delete_task"
)

// taskResult is the JSON shape of a task in tool output.
type taskResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
}

type listResult struct {
	Tasks     []taskResult `json:"tasks"`
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Pending   int          `json:"pending"`
}

// Toolkit returns an agent.Toolkit that binds the task tools to each owner.
func Toolkit(svc *Service) agent.Toolkit {
	return func(owner string) []agent.Tool {
		return NewTools(svc, owner)
	}
}

// NewTools returns the task tools acting for owner.
func NewTools(svc *Service, owner string) []agent.Tool {
	return []agent.Tool{
		&listTasksTool{svc: svc, owner: owner},
		&addTaskTool{svc: svc, owner: owner},
		&completeTaskTool{svc: svc, owner: owner},
		&toggleTaskTool{svc: svc, owner: owner},
		&updateTaskTool{svc: svc, owner: owner},
		&deleteTaskTool{svc: svc, owner: owner},
	}
}

func toTaskResult(t *store.Task) taskResult {
	return taskResult{ID: t.ID, Title: t.Title, IsCompleted: t.IsCompleted}
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// domainError turns expected task errors into a JSON result the model can read.
// Anything else is returned as a Go error.
func domainError(err error) (string, error) {
	switch {
	case errors.Is(err, ErrNotFound):
		return marshalResult(map[string]string{"error": "Task not found."})
	case errors.Is(err, ErrEmptyTitle):
		return marshalResult(map[string]string{"error": "Task title cannot be empty."})
	case errors.Is(err, ErrTitleTooLong):
		return marshalResult(map[string]string{"error": ErrTitleTooLong.Error()})
	}
	return "", err
}

func decodeInput(input string, v any) error {
	if input == "" {
		input = "{}"
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func invalidInput(err error) (string, error) {
	return marshalResult(map[string]string{"error": err.Error()})
}

func taskIDSchema() map[string]any {
	return map[string]any{"type": "string", "description": "The id of the task"}
}

func objectSchema(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// list_tasks

type listTasksTool struct {
	svc   *Service
	owner string
}

func (t *listTasksTool) Name() string { return ToolListTasks }
func (t *listTasksTool) Description() string {
	return "List all of the user's tasks with their ids and completion state."
}
func (t *listTasksTool) Parameters() map[string]any {
	return objectSchema(map[string]any{}, []string{})
}
func (t *listTasksTool) Call(ctx context.Context, input string) (string, error) {
	summary, err := t.svc.List(ctx, t.owner)
	if err != nil {
		return "", err
	}
	out := listResult{
		Tasks:     make([]taskResult, len(summary.Tasks)),
		Total:     summary.Total,
		Completed: summary.Completed,
		Pending:   summary.Pending,
	}
	for i, task := range summary.Tasks {
		out.Tasks[i] = toTaskResult(task)
	}
	return marshalResult(out)
}

// add_task

type addTaskInput struct {
	Title string `json:"title"`
}

type addTaskTool struct {
	svc   *Service
	owner string
}

func (t *addTaskTool) Name() string        { return ToolAddTask }
func (t *addTaskTool) Description() string { return "Add a new task to the user's list." }
func (t *addTaskTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"title": map[string]any{"type": "string", "description": "What needs to be done"},
	}, []string{"title"})
}
func (t *addTaskTool) Call(ctx context.Context, input string) (string, error) {
	var in addTaskInput
	if err := decodeInput(input, &in); err != nil {
		return invalidInput(err)
	}
	task, err := t.svc.Create(ctx, t.owner, in.Title)
	if err != nil {
		return domainError(err)
	}
	return marshalResult(toTaskResult(task))
}

// complete_task

type taskIDInput struct {
	TaskID string `json:"task_id"`
}

type completeTaskTool struct {
	svc   *Service
	owner string
}

func (t *completeTaskTool) Name() string        { return ToolCompleteTask }
func (t *completeTaskTool) Description() string { return "Mark one of the user's tasks as completed." }
func (t *completeTaskTool) Parameters() map[string]any {
	return objectSchema(map[string]any{"task_id": taskIDSchema()}, []string{"task_id"})
}
func (t *completeTaskTool) Call(ctx context.Context, input string) (string, error) {
	var in taskIDInput
	if err := decodeInput(input, &in); err != nil {
		return invalidInput(err)
	}
	done := true
	task, err := t.svc.Update(ctx, t.owner, in.TaskID, Update{IsCompleted: &done})
	if err != nil {
		return domainError(err)
	}
	return marshalResult(toTaskResult(task))
}

// toggle_task

type toggleTaskTool struct {
	svc   *Service
	owner string
}

func (t *toggleTaskTool) Name() string { return ToolToggleTask }
func (t *toggleTaskTool) Description() string {
	return "Flip a task between completed and not completed."
}
func (t *toggleTaskTool) Parameters() map[string]any {
	return objectSchema(map[string]any{"task_id": taskIDSchema()}, []string{"task_id"})
}
func (t *toggleTaskTool) Call(ctx context.Context, input string) (string, error) {
	var in taskIDInput
	if err := decodeInput(input, &in); err != nil {
		return invalidInput(err)
	}
	task, err := t.svc.Toggle(ctx, t.owner, in.TaskID)
	if err != nil {
		return domainError(err)
	}
	return marshalResult(toTaskResult(task))
}

// update_task

type updateTaskInput struct {
	TaskID      string  `json:"task_id"`
	Title       *string `json:"title"`
	IsCompleted *bool   `json:"is_completed"`
}

type updateTaskTool struct {
	svc   *Service
	owner string
}

func (t *updateTaskTool) Name() string { return ToolUpdateTask }
func (t *updateTaskTool) Description() string {
	return "Rename a task or set its completion state. Omitted fields are left unchanged."
}
func (t *updateTaskTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"task_id":      taskIDSchema(),
		"title":        map[string]any{"type": "string", "description": "New title"},
		"is_completed": map[string]any{"type": "boolean", "description": "New completion state"},
	}, []string{"task_id"})
}
func (t *updateTaskTool) Call(ctx context.Context, input string) (string, error) {
	var in updateTaskInput
	if err := decodeInput(input, &in); err != nil {
		return invalidInput(err)
	}
	task, err := t.svc.Update(ctx, t.owner, in.TaskID, Update{Title: in.Title, IsCompleted: in.IsCompleted})
	if err != nil {
		return domainError(err)
	}
	return marshalResult(toTaskResult(task))
}

// delete_task

type deleteTaskTool struct {
	svc   *Service
	owner string
}

func (t *deleteTaskTool) Name() string        { return ToolDeleteTask }
func (t *deleteTaskTool) Description() string { return "Permanently delete one of the user's tasks." }
func (t *deleteTaskTool) Parameters() map[string]any {
	return objectSchema(map[string]any{"task_id": taskIDSchema()}, []string{"task_id"})
}
func (t *deleteTaskTool) Call(ctx context.Context, input string) (string, error) {
	var in taskIDInput
	if err := decodeInput(input, &in); err != nil {
		return invalidInput(err)
	}
	if err := t.svc.Delete(ctx, t.owner, in.TaskID); err != nil {
		return domainError(err)
	}
	return marshalResult(map[string]any{"id": in.TaskID, "deleted": true})
}
