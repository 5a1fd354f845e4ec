package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/avdeev/taskchat/pkg/domain"
)

type deleteTask struct {
	deleter TaskDeleter
}

func NewDeleteTask(deleter TaskDeleter) *deleteTask {
	return &deleteTask{deleter: deleter}
}

func (t *deleteTask) Name() string { return domain.FunctionDeleteTask }

func (t *deleteTask) Description() string {
	return "Delete the first task whose title contains title_search (case-insensitive)."
}

func (t *deleteTask) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"title_search": {
				Type:        jsonschema.String,
				Description: "Substring of the title of the task to delete",
			},
		},
		Required: []string{"title_search"},
	}
}

func (t *deleteTask) Mutates() bool { return true }

func (t *deleteTask) Execute(ctx context.Context, _ *domain.Turn, args map[string]any) (string, error) {
	titleSearch := stringArg(args, "title_search")

	task, err := t.deleter.DeleteByTitle(ctx, titleSearch)
	if err != nil {
		return "", fmt.Errorf("deleting task: %w", err)
	}
	if task == nil {
		return notFoundResult(titleSearch)
	}

	return successResult(map[string]any{"deleted": viewOf(*task)})
}
