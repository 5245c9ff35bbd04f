// ABOUTME: Task persistence for SQLStore
// ABOUTME: Every read and write filters on owner in the query itself

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateTask inserts a new task, filling in id and timestamps when unset.
func (s *SQLStore) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO tasks (id, owner, title, is_completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), task.ID, task.Owner, task.Title, task.IsCompleted,
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	s.logger.Debug("created task", "id", task.ID, "owner", task.Owner)
	return nil
}

// GetTask retrieves the owner's task by id.
func (s *SQLStore) GetTask(ctx context.Context, owner, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, owner, title, is_completed, created_at, updated_at
		FROM tasks WHERE id = ? AND owner = ?
	`), id, owner)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

// ListTasks returns all of the owner's tasks, newest first.
func (s *SQLStore) ListTasks(ctx context.Context, owner string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, owner, title, is_completed, created_at, updated_at
		FROM tasks WHERE owner = ?
		ORDER BY created_at DESC, id DESC
	`), owner)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask writes title, completion and updated_at for an existing task.
// Returns ErrNotFound if the task isn't the owner's.
func (s *SQLStore) UpdateTask(ctx context.Context, task *Task) error {
	task.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE tasks SET title = ?, is_completed = ?, updated_at = ?
		WHERE id = ? AND owner = ?
	`), task.Title, task.IsCompleted, formatTime(task.UpdatedAt), task.ID, task.Owner)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes the owner's task.
func (s *SQLStore) DeleteTask(ctx context.Context, owner, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM tasks WHERE id = ? AND owner = ?`), id, owner)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Owner, &t.Title, &t.IsCompleted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}
