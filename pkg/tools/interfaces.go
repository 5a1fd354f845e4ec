package tools

import (
	"context"

	"github.com/avdeev/taskchat/pkg/domain"
)

type TaskCreator interface {
	Create(ctx context.Context, fields domain.TaskFields, attachments []domain.Attachment) (domain.Task, string, error)
}

type TaskLister interface {
	List(ctx context.Context, filter domain.TaskFilter, limit int) ([]domain.Task, error)
}

type TaskUpdater interface {
	UpdateByTitle(ctx context.Context, titleSearch string, patch domain.TaskPatch) (*domain.Task, string, error)
}

type TaskDeleter interface {
	DeleteByTitle(ctx context.Context, titleSearch string) (*domain.Task, error)
	DeleteAll(ctx context.Context) (int, error)
}

type AttachmentResolver interface {
	Resolve(ctx context.Context, turn *domain.Turn, fromChat, generated bool) []domain.Attachment
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*domain.GeneratedImage, error)
}
