package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/avdeev/taskchat/pkg/domain"
)

type listTasks struct {
	lister TaskLister
}

func NewListTasks(lister TaskLister) *listTasks {
	return &listTasks{lister: lister}
}

func (t *listTasks) Name() string { return domain.FunctionListTasks }

func (t *listTasks) Description() string {
	return "List tasks, optionally filtered by status, priority or overdue state."
}

func (t *listTasks) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"filter": {
				Type:        jsonschema.String,
				Enum:        []string{"all", "todo", "in_progress", "done", "overdue", "high", "medium", "low"},
				Description: "Which tasks to return; overdue means due before today and not done",
			},
			"limit": {
				Type:        jsonschema.Integer,
				Description: "Maximum number of tasks to return",
			},
		},
	}
}

func (t *listTasks) Mutates() bool { return false }

func (t *listTasks) Execute(ctx context.Context, _ *domain.Turn, args map[string]any) (string, error) {
	filter := domain.ParseTaskFilter(stringArg(args, "filter"))

	tasks, err := t.lister.List(ctx, filter, intArg(args, "limit"))
	if err != nil {
		return "", fmt.Errorf("listing tasks: %w", err)
	}

	return successResult(map[string]any{
		"filter": string(filter),
		"count":  len(tasks),
		"tasks":  viewsOf(tasks),
	})
}
