package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avdeev/taskchat/pkg/domain"
)

// DroppedAttachmentNote annotates a write whose attachments had to be
// removed to fit the storage backend's size limit.
const DroppedAttachmentNote = "the image attachment was dropped because it exceeded the storage size limit"

// persistenceGuard wraps task mutations that carry attachments. When the
// store rejects a write as too large, the identical operation is retried
// exactly once without attachments. Any other store error propagates
// unchanged, and there is no second retry.
type persistenceGuard struct {
	store TaskStore
}

func newPersistenceGuard(store TaskStore) *persistenceGuard {
	return &persistenceGuard{store: store}
}

func (g *persistenceGuard) createTask(ctx context.Context, fields domain.TaskFields, attachments []domain.Attachment) (domain.Task, string, error) {
	task, err := g.store.CreateTask(ctx, fields, attachments)
	if err == nil {
		return task, "", nil
	}
	if !errors.Is(err, domain.ErrPayloadTooLarge) || len(attachments) == 0 {
		return domain.Task{}, "", err
	}

	slog.WarnContext(ctx, "Store rejected attachments as too large, retrying without them",
		"title", fields.Title, "attachments", len(attachments))

	task, err = g.store.CreateTask(ctx, fields, nil)
	if err != nil {
		return domain.Task{}, "", err
	}
	return task, DroppedAttachmentNote, nil
}

func (g *persistenceGuard) updateTask(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, string, error) {
	task, err := g.store.UpdateTask(ctx, id, patch)
	if err == nil {
		return task, "", nil
	}
	if isNotFound(err) {
		return nil, "", nil
	}
	if !errors.Is(err, domain.ErrPayloadTooLarge) || len(patch.Attachments) == 0 {
		return nil, "", err
	}

	slog.WarnContext(ctx, "Store rejected attachments as too large, retrying without them",
		"taskID", id, "attachments", len(patch.Attachments))

	patch.Attachments = nil
	task, err = g.store.UpdateTask(ctx, id, patch)
	if err != nil {
		if isNotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return task, DroppedAttachmentNote, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
