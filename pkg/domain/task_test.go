package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		raw     string
		want    Priority
		wantErr bool
	}{
		{raw: "low", want: PriorityLow},
		{raw: "HIGH", want: PriorityHigh},
		{raw: " medium ", want: PriorityMedium},
		{raw: "urgent", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePriority(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "todo", want: StatusTodo},
		{raw: "In_Progress", want: StatusInProgress},
		{raw: "done ", want: StatusDone},
		{raw: "cancelled", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTaskFilter_UnknownFallsBackToAll(t *testing.T) {
	assert.Equal(t, FilterOverdue, ParseTaskFilter("Overdue"))
	assert.Equal(t, FilterAll, ParseTaskFilter(""))
	assert.Equal(t, FilterAll, ParseTaskFilter("urgent-ish"))
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	yesterday := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	todayMorning := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{
			name: "due yesterday",
			task: Task{DueDate: &yesterday, Status: StatusTodo},
			want: true,
		},
		{
			name: "due today is not overdue",
			task: Task{DueDate: &todayMorning, Status: StatusTodo},
			want: false,
		},
		{
			name: "due tomorrow",
			task: Task{DueDate: &tomorrow, Status: StatusTodo},
			want: false,
		},
		{
			name: "no due date",
			task: Task{Status: StatusTodo},
			want: false,
		},
		{
			name: "done tasks are never overdue",
			task: Task{DueDate: &yesterday, Status: StatusDone},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.IsOverdue(now))
		})
	}
}

func TestTaskFilterMatches(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	overdueTask := Task{Title: "a", Status: StatusTodo, Priority: PriorityHigh, DueDate: &yesterday}
	doneTask := Task{Title: "b", Status: StatusDone, Priority: PriorityLow, DueDate: &yesterday}

	assert.True(t, FilterAll.Matches(overdueTask, now))
	assert.True(t, FilterAll.Matches(doneTask, now))
	assert.True(t, FilterOverdue.Matches(overdueTask, now))
	assert.False(t, FilterOverdue.Matches(doneTask, now))
	assert.True(t, FilterHigh.Matches(overdueTask, now))
	assert.False(t, FilterHigh.Matches(doneTask, now))
	assert.True(t, FilterDone.Matches(doneTask, now))
	assert.False(t, FilterTodo.Matches(doneTask, now))
}
