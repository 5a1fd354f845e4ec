package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avdeev/taskchat/pkg/domain"
)

// memoryTaskRepository keeps tasks in memory, in creation order. The order
// matters: title-search resolution takes the first match.
type memoryTaskRepository struct {
	mu              sync.RWMutex
	tasks           []domain.Task
	maxPayloadBytes int
	now             func() time.Time
}

// NewMemoryTaskRepository creates an in-memory store. maxPayloadBytes caps
// the total attachment payload per task; zero means unlimited.
func NewMemoryTaskRepository(maxPayloadBytes int) *memoryTaskRepository {
	return &memoryTaskRepository{
		maxPayloadBytes: maxPayloadBytes,
		now:             time.Now,
	}
}

func (r *memoryTaskRepository) CreateTask(_ context.Context, fields domain.TaskFields, attachments []domain.Attachment) (domain.Task, error) {
	if r.exceedsLimit(attachments) {
		return domain.Task{}, domain.ErrPayloadTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	task := domain.Task{
		ID:          uuid.NewString(),
		Title:       fields.Title,
		Description: fields.Description,
		Priority:    fields.Priority,
		Status:      fields.Status,
		DueDate:     fields.DueDate,
		Attachments: copyAttachments(attachments),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.tasks = append(r.tasks, task)
	return cloneTask(task), nil
}

func (r *memoryTaskRepository) GetAllTasks(_ context.Context) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, cloneTask(t))
	}
	return out, nil
}

func (r *memoryTaskRepository) UpdateTask(_ context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tasks {
		if r.tasks[i].ID != id {
			continue
		}

		updated := applyPatch(r.tasks[i], patch)
		if r.maxPayloadBytes > 0 && updated.AttachmentsSize() > r.maxPayloadBytes {
			return nil, domain.ErrPayloadTooLarge
		}

		updated.UpdatedAt = r.now()
		r.tasks[i] = updated
		result := cloneTask(updated)
		return &result, nil
	}
	return nil, nil
}

func (r *memoryTaskRepository) DeleteTask(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tasks {
		if r.tasks[i].ID == id {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memoryTaskRepository) DeleteAllTasks(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.tasks)
	r.tasks = nil
	return count, nil
}

func (r *memoryTaskRepository) exceedsLimit(attachments []domain.Attachment) bool {
	if r.maxPayloadBytes <= 0 {
		return false
	}
	var size int
	for _, a := range attachments {
		size += len(a.Data)
	}
	return size > r.maxPayloadBytes
}

func applyPatch(task domain.Task, patch domain.TaskPatch) domain.Task {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}
	if len(patch.Attachments) > 0 {
		task.Attachments = append(copyAttachments(task.Attachments), copyAttachments(patch.Attachments)...)
	}
	return task
}

// cloneTask copies the task so callers never share attachment slices with
// the store.
func cloneTask(t domain.Task) domain.Task {
	t.Attachments = copyAttachments(t.Attachments)
	return t
}

func copyAttachments(attachments []domain.Attachment) []domain.Attachment {
	out := make([]domain.Attachment, len(attachments))
	for i, a := range attachments {
		data := make([]byte, len(a.Data))
		copy(data, a.Data)
		out[i] = domain.Attachment{Name: a.Name, MediaType: a.MediaType, Data: data}
	}
	return out
}
