// ABOUTME: Tests for the task service against a real SQLite store
// ABOUTME: Covers title validation, owner scoping, toggling and counts

package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/todo-gateway/internal/store"
)

func createTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, nil)
}

func TestService_CreateTrimsAndValidates(t *testing.T) {
	svc := createTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "alice", "  buy milk  ")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", task.Title)
	assert.False(t, task.IsCompleted)
	assert.NotEmpty(t, task.ID)

	_, err = svc.Create(ctx, "alice", "   ")
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = svc.Create(ctx, "alice", strings.Repeat("é", MaxTitleLength))
	assert.NoError(t, err, "limit counts characters, not bytes")

	_, err = svc.Create(ctx, "alice", strings.Repeat("a", MaxTitleLength+1))
	assert.ErrorIs(t, err, ErrTitleTooLong)
}

func TestService_ListCounts(t *testing.T) {
	svc := createTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", "one")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", "two")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", "not yours")
	require.NoError(t, err)

	_, err = svc.Toggle(ctx, "alice", a.ID)
	require.NoError(t, err)

	summary, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Pending)
	assert.Len(t, summary.Tasks, 2)

	empty, err := svc.List(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, empty.Tasks)
	assert.Zero(t, empty.Total)
}

func TestService_UpdatePartial(t *testing.T) {
	svc := createTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "alice", "draft")
	require.NoError(t, err)

	title := "final"
	updated, err := svc.Update(ctx, "alice", task.ID, Update{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.False(t, updated.IsCompleted)

	done := true
	updated, err = svc.Update(ctx, "alice", task.ID, Update{IsCompleted: &done})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.True(t, updated.IsCompleted)

	blank := " "
	_, err = svc.Update(ctx, "alice", task.ID, Update{Title: &blank})
	assert.ErrorIs(t, err, ErrEmptyTitle)

	got, err := svc.Get(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.True(t, got.IsCompleted)
}

func TestService_EmptyUpdateWritesNothing(t *testing.T) {
	svc := createTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "alice", "draft")
	require.NoError(t, err)
	before, err := svc.Get(ctx, "alice", task.ID)
	require.NoError(t, err)

	got, err := svc.Update(ctx, "alice", task.ID, Update{})
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Title)
	assert.False(t, got.IsCompleted)
	assert.True(t, got.UpdatedAt.Equal(before.UpdatedAt))

	_, err = svc.Update(ctx, "bob", task.ID, Update{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ToggleFlips(t *testing.T) {
	svc := createTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "alice", "flip me")
	require.NoError(t, err)

	first, err := svc.Toggle(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.True(t, first.IsCompleted)

	second, err := svc.Toggle(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.False(t, second.IsCompleted)
}

func TestService_OwnerScoping(t *testing.T) {
	svc := createTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, "alice", "private")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "bob", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Toggle(ctx, "bob", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, "bob", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "alice", task.ID))
	_, err = svc.Get(ctx, "alice", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_StorageErrorsAreWrapped(t *testing.T) {
	ms := store.NewMockStore()
	svc := New(ms, nil)
	boom := errors.New("disk full")
	ms.SetError(boom)

	_, err := svc.List(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrNotFound))
}
