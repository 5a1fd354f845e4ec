package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/avdeev/taskchat/pkg/domain"
)

// TaskStore is the external persistence contract. Implementations must
// return domain.ErrPayloadTooLarge distinctly so the persistence guard can
// react to it, and domain.ErrNotFound (or a nil task) for missing records.
type TaskStore interface {
	CreateTask(ctx context.Context, fields domain.TaskFields, attachments []domain.Attachment) (domain.Task, error)
	GetAllTasks(ctx context.Context) ([]domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	DeleteAllTasks(ctx context.Context) (int, error)
}

// taskService translates registered function calls into store operations.
type taskService struct {
	store TaskStore
	guard *persistenceGuard
	now   func() time.Time
}

func NewTaskService(store TaskStore) *taskService {
	return &taskService{
		store: store,
		guard: newPersistenceGuard(store),
		now:   time.Now,
	}
}

// Create persists a new task through the guard. The returned note is
// non-empty when the attachments had to be dropped to fit the backend.
func (s *taskService) Create(ctx context.Context, fields domain.TaskFields, attachments []domain.Attachment) (domain.Task, string, error) {
	if fields.Priority == "" {
		fields.Priority = domain.PriorityMedium
	}
	if fields.Status == "" {
		fields.Status = domain.StatusTodo
	}
	return s.guard.createTask(ctx, fields, attachments)
}

func (s *taskService) List(ctx context.Context, filter domain.TaskFilter, limit int) ([]domain.Task, error) {
	tasks, err := s.store.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	now := s.now()
	tasks = lo.Filter(tasks, func(t domain.Task, _ int) bool {
		return filter.Matches(t, now)
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// FindByTitle resolves a task by case-insensitive substring match against
// titles, in store order; the first match wins. A miss returns (nil, nil).
func (s *taskService) FindByTitle(ctx context.Context, titleSearch string) (*domain.Task, error) {
	tasks, err := s.store.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(titleSearch))
	for i := range tasks {
		if strings.Contains(strings.ToLower(tasks[i].Title), needle) {
			return &tasks[i], nil
		}
	}
	return nil, nil
}

// UpdateByTitle patches the first title match. A miss, including a task
// deleted between lookup and mutation, returns (nil, "", nil).
func (s *taskService) UpdateByTitle(ctx context.Context, titleSearch string, patch domain.TaskPatch) (*domain.Task, string, error) {
	target, err := s.FindByTitle(ctx, titleSearch)
	if err != nil {
		return nil, "", err
	}
	if target == nil {
		return nil, "", nil
	}
	return s.guard.updateTask(ctx, target.ID, patch)
}

// DeleteByTitle removes the first title match and returns it; a miss
// returns (nil, nil).
func (s *taskService) DeleteByTitle(ctx context.Context, titleSearch string) (*domain.Task, error) {
	target, err := s.FindByTitle(ctx, titleSearch)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}

	if err := s.store.DeleteTask(ctx, target.ID); err != nil {
		if isNotFound(err) {
			// Deleted by someone else between lookup and delete.
			return nil, nil
		}
		return nil, fmt.Errorf("deleting task %s: %w", target.ID, err)
	}
	return target, nil
}

func (s *taskService) DeleteAll(ctx context.Context) (int, error) {
	return s.store.DeleteAllTasks(ctx)
}
