package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/avdeev/taskchat/pkg/domain"
)

// taskView is the function-result rendering of a task. Attachment bytes are
// deliberately absent: the model only needs to know they exist.
type taskView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date,omitempty"`
	Attachments int    `json:"attachments"`
}

func viewOf(t domain.Task) taskView {
	v := taskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Attachments: len(t.Attachments),
	}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.Format(time.DateOnly)
	}
	return v
}

func viewsOf(tasks []domain.Task) []taskView {
	return lo.Map(tasks, func(t domain.Task, _ int) taskView {
		return viewOf(t)
	})
}

func successResult(fields map[string]any) (string, error) {
	payload := map[string]any{"success": true}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling function result: %w", err)
	}
	return string(data), nil
}

// notFoundResult is a structured miss, not an error: the conversation
// continues and the model can tell the user.
func notFoundResult(titleSearch string) (string, error) {
	data, err := json.Marshal(map[string]any{
		"success": false,
		"error":   fmt.Sprintf("no task found with a title matching %q", titleSearch),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling function result: %w", err)
	}
	return string(data), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func intArg(args map[string]any, key string) int {
	f, _ := args[key].(float64)
	return int(f)
}

func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("parsing due_date %q (expected YYYY-MM-DD): %w", raw, err)
	}
	return &t, nil
}
