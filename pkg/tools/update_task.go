package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/avdeev/taskchat/pkg/domain"
)

type updateTask struct {
	updater  TaskUpdater
	resolver AttachmentResolver
}

func NewUpdateTask(updater TaskUpdater, resolver AttachmentResolver) *updateTask {
	return &updateTask{updater: updater, resolver: resolver}
}

func (t *updateTask) Name() string { return domain.FunctionUpdateTask }

func (t *updateTask) Description() string {
	return "Update the first task whose title contains title_search (case-insensitive). Only the provided fields change; attachments are only ever added."
}

func (t *updateTask) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"title_search": {
				Type:        jsonschema.String,
				Description: "Substring of the title of the task to update",
			},
			"new_title": {
				Type:        jsonschema.String,
				Description: "Replacement title",
			},
			"description": {
				Type:        jsonschema.String,
				Description: "Replacement description",
			},
			"priority": {
				Type: jsonschema.String,
				Enum: []string{"low", "medium", "high"},
			},
			"status": {
				Type: jsonschema.String,
				Enum: []string{"todo", "in_progress", "done"},
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
		Required: []string{"title_search"},
	}
}

func (t *updateTask) Mutates() bool { return true }

func (t *updateTask) Execute(ctx context.Context, turn *domain.Turn, args map[string]any) (string, error) {
	titleSearch := stringArg(args, "title_search")

	var patch domain.TaskPatch
	if raw, ok := args["new_title"].(string); ok && raw != "" {
		patch.Title = &raw
	}
	if raw, ok := args["description"].(string); ok {
		patch.Description = &raw
	}
	if raw := stringArg(args, "priority"); raw != "" {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			return "", err
		}
		patch.Priority = &priority
	}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return "", err
		}
		patch.Status = &status
	}
	dueDate, err := parseDueDate(stringArg(args, "due_date"))
	if err != nil {
		return "", err
	}
	if dueDate != nil {
		patch.DueDate = dueDate
	}

	patch.Attachments = t.resolver.Resolve(ctx, turn,
		boolArg(args, "attach_from_chat"),
		boolArg(args, "attach_generated"))

	task, note, err := t.updater.UpdateByTitle(ctx, titleSearch, patch)
	if err != nil {
		return "", fmt.Errorf("updating task: %w", err)
	}
	if task == nil {
		return notFoundResult(titleSearch)
	}

	result := map[string]any{"task": viewOf(*task)}
	if note != "" {
		result["note"] = note
	}
	return successResult(result)
}
