// ABOUTME: HTTP API handlers for direct task management
// ABOUTME: Provides the /api/tasks endpoints alongside the chat interface

package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/todo-gateway/internal/store"
	"github.com/2389/todo-gateway/internal/tasks"
)

// Caller-facing task error texts.
const (
	taskNotFoundText   = "Task not found."
	taskEmptyTitleText = "Task title cannot be empty."
)

// CreateTaskRequest is the JSON request body for POST /api/tasks.
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// UpdateTaskRequest is the JSON request body for PUT /api/tasks/{id}.
// Omitted fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TaskListResponse is the JSON response for GET /api/tasks.
type TaskListResponse struct {
	Tasks     []TaskResponse `json:"tasks"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Pending   int            `json:"pending"`
}

func toTaskResponse(t *store.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		IsCompleted: t.IsCompleted,
		CreatedAt:   formatTimestamp(t.CreatedAt),
		UpdatedAt:   formatTimestamp(t.UpdatedAt),
	}
}

// sendTaskError maps task errors onto HTTP responses.
func (g *Gateway) sendTaskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, taskNotFoundText)
	case errors.Is(err, tasks.ErrEmptyTitle):
		g.sendJSONError(w, http.StatusBadRequest, taskEmptyTitleText)
	case errors.Is(err, tasks.ErrTitleTooLong):
		g.sendJSONError(w, http.StatusBadRequest, tasks.ErrTitleTooLong.Error())
	default:
		g.logger.Error("task request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleTasks handles GET and POST /api/tasks requests.
func (g *Gateway) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListTasks(w, r)
	case http.MethodPost:
		g.handleCreateTask(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleListTasks(w http.ResponseWriter, r *http.Request) {
	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	summary, err := g.tasks.List(r.Context(), owner)
	if err != nil {
		g.sendTaskError(w, r, err)
		return
	}

	response := TaskListResponse{
		Tasks:     make([]TaskResponse, len(summary.Tasks)),
		Total:     summary.Total,
		Completed: summary.Completed,
		Pending:   summary.Pending,
	}
	for i, t := range summary.Tasks {
		response.Tasks[i] = toTaskResponse(t)
	}
	g.sendJSON(w, http.StatusOK, response)
}

func (g *Gateway) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := g.tasks.Create(r.Context(), owner, req.Title)
	if err != nil {
		g.sendTaskError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, toTaskResponse(task))
}

// handleTaskRoutes dispatches /api/tasks/{id} and /api/tasks/{id}/toggle.
// PATCH and POST are accepted as aliases for the PUT routes.
func (g *Gateway) handleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/tasks/"
	const suffix = "/toggle"

	rest := strings.TrimPrefix(r.URL.Path, prefix)
	toggle := strings.HasSuffix(rest, suffix)
	id := strings.TrimSuffix(rest, suffix)

	if id == "" || strings.Contains(id, "/") {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid task_id format")
		return
	}

	switch {
	case toggle && (r.Method == http.MethodPut || r.Method == http.MethodPost):
		g.handleToggleTask(w, r, id)
	case !toggle && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		g.handleUpdateTask(w, r, id)
	case !toggle && r.Method == http.MethodDelete:
		g.handleDeleteTask(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleUpdateTask(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := g.tasks.Update(r.Context(), owner, id, tasks.Update{Title: req.Title, IsCompleted: req.IsCompleted})
	if err != nil {
		g.sendTaskError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toTaskResponse(task))
}

func (g *Gateway) handleToggleTask(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	task, err := g.tasks.Toggle(r.Context(), owner, id)
	if err != nil {
		g.sendTaskError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toTaskResponse(task))
}

func (g *Gateway) handleDeleteTask(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := g.requireOwner(w, r)
	if !ok {
		return
	}

	if err := g.tasks.Delete(r.Context(), owner, id); err != nil {
		g.sendTaskError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
