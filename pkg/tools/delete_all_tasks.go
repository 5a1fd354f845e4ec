package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/avdeev/taskchat/pkg/domain"
)

type deleteAllTasks struct {
	deleter TaskDeleter
}

func NewDeleteAllTasks(deleter TaskDeleter) *deleteAllTasks {
	return &deleteAllTasks{deleter: deleter}
}

func (t *deleteAllTasks) Name() string { return domain.FunctionDeleteAllTasks }

func (t *deleteAllTasks) Description() string {
	return "Delete every task. Only call this when the user unambiguously asks to clear the whole list."
}

func (t *deleteAllTasks) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{},
	}
}

func (t *deleteAllTasks) Mutates() bool { return true }

func (t *deleteAllTasks) Execute(ctx context.Context, _ *domain.Turn, _ map[string]any) (string, error) {
	count, err := t.deleter.DeleteAll(ctx)
	if err != nil {
		return "", fmt.Errorf("deleting all tasks: %w", err)
	}

	return successResult(map[string]any{"deleted_count": count})
}
