package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/taskchat/pkg/domain"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryTaskRepository(0)
	ctx := context.Background()

	created, err := repo.CreateTask(ctx, domain.TaskFields{
		Title:    "first",
		Priority: domain.PriorityLow,
		Status:   domain.StatusTodo,
	}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NotNil(t, created.Attachments)

	_, err = repo.CreateTask(ctx, domain.TaskFields{Title: "second"}, nil)
	require.NoError(t, err)

	tasks, err := repo.GetAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	// Creation order is the store's contract; title search depends on it.
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, "second", tasks[1].Title)
}

func TestMemoryRepository_PayloadCeiling(t *testing.T) {
	repo := NewMemoryTaskRepository(10)
	ctx := context.Background()

	big := []domain.Attachment{{Name: "big.png", MediaType: "image/png", Data: make([]byte, 11)}}
	_, err := repo.CreateTask(ctx, domain.TaskFields{Title: "x"}, big)
	require.ErrorIs(t, err, domain.ErrPayloadTooLarge)

	small := []domain.Attachment{{Name: "ok.png", MediaType: "image/png", Data: make([]byte, 10)}}
	created, err := repo.CreateTask(ctx, domain.TaskFields{Title: "x"}, small)
	require.NoError(t, err)
	require.Len(t, created.Attachments, 1)

	// Appending past the ceiling fails too; the combined payload counts.
	_, err = repo.UpdateTask(ctx, created.ID, domain.TaskPatch{
		Attachments: []domain.Attachment{{Name: "more.png", MediaType: "image/png", Data: make([]byte, 1)}},
	})
	require.ErrorIs(t, err, domain.ErrPayloadTooLarge)
}

func TestMemoryRepository_UpdatePatchesOnlyProvidedFields(t *testing.T) {
	repo := NewMemoryTaskRepository(0)
	ctx := context.Background()

	due := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	created, err := repo.CreateTask(ctx, domain.TaskFields{
		Title:       "write report",
		Description: "quarterly numbers",
		Priority:    domain.PriorityMedium,
		Status:      domain.StatusTodo,
	}, nil)
	require.NoError(t, err)

	done := domain.StatusDone
	updated, err := repo.UpdateTask(ctx, created.ID, domain.TaskPatch{
		Status:  &done,
		DueDate: &due,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, domain.StatusDone, updated.Status)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, due, *updated.DueDate)
	// Untouched fields survive the patch.
	assert.Equal(t, "write report", updated.Title)
	assert.Equal(t, "quarterly numbers", updated.Description)
	assert.Equal(t, domain.PriorityMedium, updated.Priority)
}

func TestMemoryRepository_UpdateAppendsAttachments(t *testing.T) {
	repo := NewMemoryTaskRepository(0)
	ctx := context.Background()

	created, err := repo.CreateTask(ctx, domain.TaskFields{Title: "x"},
		[]domain.Attachment{{Name: "a.png", MediaType: "image/png", Data: []byte("a")}})
	require.NoError(t, err)

	updated, err := repo.UpdateTask(ctx, created.ID, domain.TaskPatch{
		Attachments: []domain.Attachment{{Name: "b.png", MediaType: "image/png", Data: []byte("b")}},
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Len(t, updated.Attachments, 2)
	assert.Equal(t, "a.png", updated.Attachments[0].Name)
	assert.Equal(t, "b.png", updated.Attachments[1].Name)
}

func TestMemoryRepository_UpdateMissingReturnsNil(t *testing.T) {
	repo := NewMemoryTaskRepository(0)

	title := "new"
	updated, err := repo.UpdateTask(context.Background(), "no-such-id", domain.TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestMemoryRepository_DeleteTask(t *testing.T) {
	repo := NewMemoryTaskRepository(0)
	ctx := context.Background()

	created, err := repo.CreateTask(ctx, domain.TaskFields{Title: "x"}, nil)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteTask(ctx, created.ID))
	assert.ErrorIs(t, repo.DeleteTask(ctx, created.ID), domain.ErrNotFound)
}

func TestMemoryRepository_DeleteAllTasks(t *testing.T) {
	repo := NewMemoryTaskRepository(0)
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		_, err := repo.CreateTask(ctx, domain.TaskFields{Title: title}, nil)
		require.NoError(t, err)
	}

	count, err := repo.DeleteAllTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.DeleteAllTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryRepository_CallersCannotMutateStoredAttachments(t *testing.T) {
	repo := NewMemoryTaskRepository(0)
	ctx := context.Background()

	payload := []byte("original")
	created, err := repo.CreateTask(ctx, domain.TaskFields{Title: "x"},
		[]domain.Attachment{{Name: "a.png", MediaType: "image/png", Data: payload}})
	require.NoError(t, err)

	// Mutating the caller's slice or the returned copy must not leak into
	// the store.
	payload[0] = 'X'
	created.Attachments[0].Data[1] = 'Y'

	tasks, err := repo.GetAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, []byte("original"), tasks[0].Attachments[0].Data)
}
