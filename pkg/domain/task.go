package domain

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(raw string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("unsupported priority: %q", raw)
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusTodo:
		return StatusTodo, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusDone:
		return StatusDone, nil
	}
	return "", fmt.Errorf("unsupported status: %q", raw)
}

// Attachment is a binary image payload owned by the task it belongs to.
// It is copied by value into the task record on write.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Priority    Priority     `json:"priority"`
	Status      Status       `json:"status"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsOverdue reports whether the task's due date lies before the start of
// today. Tasks without a due date and done tasks are never overdue.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == StatusDone {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return t.DueDate.Before(today)
}

// AttachmentsSize is the total encoded payload the task carries.
func (t Task) AttachmentsSize() int {
	var size int
	for _, a := range t.Attachments {
		size += len(a.Data)
	}
	return size
}

// TaskFields carries create-time values for a task.
type TaskFields struct {
	Title       string
	Description string
	Priority    Priority
	Status      Status
	DueDate     *time.Time
}

// TaskPatch carries a partial update. Nil fields are left untouched.
// Attachments are append-only; a patch never removes existing ones.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
	DueDate     *time.Time
	Attachments []Attachment
}

type TaskFilter string

const (
	FilterAll        TaskFilter = "all"
	FilterTodo       TaskFilter = "todo"
	FilterInProgress TaskFilter = "in_progress"
	FilterDone       TaskFilter = "done"
	FilterOverdue    TaskFilter = "overdue"
	FilterHigh       TaskFilter = "high"
	FilterMedium     TaskFilter = "medium"
	FilterLow        TaskFilter = "low"
)

// ParseTaskFilter maps a raw filter value to a known filter. Unknown values
// fall back to FilterAll so a sloppy model argument degrades instead of
// failing the call.
func ParseTaskFilter(raw string) TaskFilter {
	f := TaskFilter(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FilterAll, FilterTodo, FilterInProgress, FilterDone, FilterOverdue, FilterHigh, FilterMedium, FilterLow:
		return f
	}
	return FilterAll
}

// Matches reports whether the task passes the filter.
func (f TaskFilter) Matches(t Task, now time.Time) bool {
	switch f {
	case FilterTodo:
		return t.Status == StatusTodo
	case FilterInProgress:
		return t.Status == StatusInProgress
	case FilterDone:
		return t.Status == StatusDone
	case FilterOverdue:
		return t.IsOverdue(now)
	case FilterHigh:
		return t.Priority == PriorityHigh
	case FilterMedium:
		return t.Priority == PriorityMedium
	case FilterLow:
		return t.Priority == PriorityLow
	}
	return true
}
