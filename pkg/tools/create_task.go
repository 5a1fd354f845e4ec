package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/avdeev/taskchat/pkg/domain"
)

type createTask struct {
	creator  TaskCreator
	resolver AttachmentResolver
}

func NewCreateTask(creator TaskCreator, resolver AttachmentResolver) *createTask {
	return &createTask{creator: creator, resolver: resolver}
}

func (t *createTask) Name() string { return domain.FunctionCreateTask }

func (t *createTask) Description() string {
	return "Create a new task. Optionally attach images the user uploaded in this chat (attach_from_chat) or the image generated earlier in this conversation (attach_generated)."
}

func (t *createTask) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"title": {
				Type:        jsonschema.String,
				Description: "The task title",
			},
			"description": {
				Type:        jsonschema.String,
				Description: "Optional longer description",
			},
			"priority": {
				Type:        jsonschema.String,
				Enum:        []string{"low", "medium", "high"},
				Description: "Task priority, defaults to medium",
			},
			"status": {
				Type:        jsonschema.String,
				Enum:        []string{"todo", "in_progress", "done"},
				Description: "Task status, defaults to todo",
			},
			"due_date": {
				Type:        jsonschema.String,
				Description: "Due date in YYYY-MM-DD format",
			},
			"attach_from_chat": {
				Type:        jsonschema.Boolean,
				Description: "Attach the images the user uploaded in this conversation",
			},
			"attach_generated": {
				Type:        jsonschema.Boolean,
				Description: "Attach the most recently generated image",
			},
		},
		Required: []string{"title"},
	}
}

func (t *createTask) Mutates() bool { return true }

func (t *createTask) Execute(ctx context.Context, turn *domain.Turn, args map[string]any) (string, error) {
	fields := domain.TaskFields{
		Title:       stringArg(args, "title"),
		Description: stringArg(args, "description"),
	}

	if raw := stringArg(args, "priority"); raw != "" {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			return "", err
		}
		fields.Priority = priority
	}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return "", err
		}
		fields.Status = status
	}
	dueDate, err := parseDueDate(stringArg(args, "due_date"))
	if err != nil {
		return "", err
	}
	fields.DueDate = dueDate

	attachments := t.resolver.Resolve(ctx, turn,
		boolArg(args, "attach_from_chat"),
		boolArg(args, "attach_generated"))

	task, note, err := t.creator.Create(ctx, fields, attachments)
	if err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}

	result := map[string]any{"task": viewOf(task)}
	if note != "" {
		result["note"] = note
	}
	return successResult(result)
}
