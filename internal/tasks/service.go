// ABOUTME: Task domain service: owner-scoped list, create, update, toggle and delete
// ABOUTME: Validates titles and maps storage misses to ErrNotFound

package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/2389/todo-gateway/internal/store"
)

// MaxTitleLength is the longest accepted task title, in characters.
const MaxTitleLength = 500

var (
	// ErrNotFound is returned when a task doesn't exist or belongs to another owner.
	ErrNotFound = errors.New("task not found")

	// ErrEmptyTitle is returned when a title is empty after trimming.
	ErrEmptyTitle = errors.New("task title cannot be empty")

	// ErrTitleTooLong is returned when a title exceeds MaxTitleLength.
	ErrTitleTooLong = fmt.Errorf("task title cannot exceed %d characters", MaxTitleLength)
)

// Update holds the optional fields of a task update. Nil means unchanged.
type Update struct {
	Title       *string
	IsCompleted *bool
}

// Summary is an owner's task list with counts.
type Summary struct {
	Tasks     []*store.Task
	Total     int
	Completed int
	Pending   int
}

// Service implements the task operations.
type Service struct {
	store  store.TaskStore
	logger *slog.Logger
}

// New creates a task service.
func New(s store.TaskStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		logger: logger.With("component", "tasks"),
	}
}

// List returns all of the owner's tasks, newest first.
func (s *Service) List(ctx context.Context, owner string) (*Summary, error) {
	tasks, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	summary := &Summary{Tasks: tasks, Total: len(tasks)}
	for _, t := range tasks {
		if t.IsCompleted {
			summary.Completed++
		}
	}
	summary.Pending = summary.Total - summary.Completed
	return summary, nil
}

// Get returns one of the owner's tasks.
func (s *Service) Get(ctx context.Context, owner, id string) (*store.Task, error) {
	task, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, mapNotFound(err, "getting task")
	}
	return task, nil
}

// Create adds a task with the given title.
func (s *Service) Create(ctx context.Context, owner, title string) (*store.Task, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	task := &store.Task{Owner: owner, Title: title}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.logger.Debug("task created", "owner", owner, "task_id", task.ID)
	return task, nil
}

// Update applies the non-nil fields of upd to the owner's task. An empty
// update writes nothing and returns the task as stored.
func (s *Service) Update(ctx context.Context, owner, id string, upd Update) (*store.Task, error) {
	var title string
	if upd.Title != nil {
		var err error
		if title, err = normalizeTitle(*upd.Title); err != nil {
			return nil, err
		}
	}

	task, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if upd.Title == nil && upd.IsCompleted == nil {
		return task, nil
	}

	if upd.Title != nil {
		task.Title = title
	}
	if upd.IsCompleted != nil {
		task.IsCompleted = *upd.IsCompleted
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, mapNotFound(err, "updating task")
	}

	s.logger.Debug("task updated", "owner", owner, "task_id", id)
	return task, nil
}

// Toggle flips the completion state of the owner's task.
func (s *Service) Toggle(ctx context.Context, owner, id string) (*store.Task, error) {
	task, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	task.IsCompleted = !task.IsCompleted
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, mapNotFound(err, "toggling task")
	}

	s.logger.Debug("task toggled", "owner", owner, "task_id", id, "completed", task.IsCompleted)
	return task, nil
}

// Delete removes the owner's task.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteTask(ctx, owner, id); err != nil {
		return mapNotFound(err, "deleting task")
	}

	s.logger.Debug("task deleted", "owner", owner, "task_id", id)
	return nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

func mapNotFound(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
