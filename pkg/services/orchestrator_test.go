package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/openai"
)

// scriptedLLM plays back a fixed sequence of assistant replies and records
// the history it was shown on every round.
type scriptedLLM struct {
	replies   []domain.Message
	err       error
	histories [][]domain.Message
}

func (l *scriptedLLM) CreateChatCompletion(_ context.Context, _ string, _ string, history []domain.Message, _ []openai.Tool) (domain.Message, error) {
	snapshot := make([]domain.Message, len(history))
	copy(snapshot, history)
	l.histories = append(l.histories, snapshot)

	if l.err != nil {
		return domain.Message{}, l.err
	}
	i := len(l.histories) - 1
	if i >= len(l.replies) {
		return domain.NewTextMessage(domain.RoleAssistant, "nothing left to do"), nil
	}
	return l.replies[i], nil
}

func assistantCallMessage(calls ...domain.FunctionCallPart) domain.Message {
	parts := make([]domain.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, c)
	}
	return domain.Message{Role: domain.RoleAssistant, Parts: parts}
}

func runConverse(t *testing.T, o *orchestrator, messages []domain.Message) []domain.Event {
	t.Helper()
	events := make(chan domain.Event, 128)
	o.Converse(context.Background(), messages, "", events)

	var got []domain.Event
	for e := range events {
		got = append(got, e)
	}
	return got
}

func eventTypes(events []domain.Event) []domain.EventType {
	types := make([]domain.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func newTestOrchestrator(t *testing.T, llm LLMClient, tools ...ToolFunction) *orchestrator {
	t.Helper()
	registry, err := NewRegistry(tools)
	require.NoError(t, err)
	return NewOrchestrator(llm, registry, "test-model", 20, time.Second, time.Second)
}

func TestConverse_TextOnlyReply(t *testing.T) {
	llm := &scriptedLLM{replies: []domain.Message{
		domain.NewTextMessage(domain.RoleAssistant, "you have no tasks"),
	}}
	o := newTestOrchestrator(t, llm)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "what's on my list?")})

	require.Equal(t, []domain.EventType{domain.EventText, domain.EventDone}, eventTypes(events))
	assert.Equal(t, "you have no tasks", events[0].Text)
	assert.Len(t, llm.histories, 1)
}

func TestConverse_FunctionCallRoundTrip(t *testing.T) {
	tool := echoTool("create_task")
	tool.mutates = true
	tool.execute = func(context.Context, *domain.Turn, map[string]any) (string, error) {
		return `{"success":true,"task":{"id":"t1"}}`, nil
	}

	llm := &scriptedLLM{replies: []domain.Message{
		assistantCallMessage(domain.FunctionCallPart{CallID: "c1", Name: "create_task", Arguments: `{"title":"buy milk"}`}),
		domain.NewTextMessage(domain.RoleAssistant, "created it"),
	}}
	o := newTestOrchestrator(t, llm, tool)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "add buy milk")})

	require.Equal(t, []domain.EventType{
		domain.EventFunctionCall,
		domain.EventFunctionResult,
		domain.EventText,
		domain.EventDone,
	}, eventTypes(events))
	assert.Equal(t, "c1", events[1].CallID)
	assert.Equal(t, `{"success":true,"task":{"id":"t1"}}`, events[1].Output)

	// The second round must see the assistant call and its tool result.
	require.Len(t, llm.histories, 2)
	second := llm.histories[1]
	require.Len(t, second, 3)
	assert.Equal(t, domain.RoleAssistant, second[1].Role)
	assert.Equal(t, domain.RoleTool, second[2].Role)
	result, ok := second[2].Parts[0].(domain.FunctionResultPart)
	require.True(t, ok)
	assert.Equal(t, "c1", result.CallID)
}

func TestConverse_ResultsAppendInRequestOrder(t *testing.T) {
	var mu sync.Mutex
	var executed []string
	mkTool := func(name string, mutates bool) *fakeTool {
		tool := echoTool(name)
		tool.mutates = mutates
		tool.execute = func(context.Context, *domain.Turn, map[string]any) (string, error) {
			mu.Lock()
			executed = append(executed, name)
			mu.Unlock()
			return `{"success":true,"from":"` + name + `"}`, nil
		}
		return tool
	}

	llm := &scriptedLLM{replies: []domain.Message{
		assistantCallMessage(
			domain.FunctionCallPart{CallID: "c1", Name: "list_a", Arguments: `{"title":"x"}`},
			domain.FunctionCallPart{CallID: "c2", Name: "list_b", Arguments: `{"title":"x"}`},
			domain.FunctionCallPart{CallID: "c3", Name: "mutate_c", Arguments: `{"title":"x"}`},
		),
		domain.NewTextMessage(domain.RoleAssistant, "done"),
	}}
	o := newTestOrchestrator(t, llm,
		mkTool("list_a", false), mkTool("list_b", false), mkTool("mutate_c", true))

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "go")})

	// Results are emitted in request order regardless of execution order.
	var resultIDs []string
	for _, e := range events {
		if e.Type == domain.EventFunctionResult {
			resultIDs = append(resultIDs, e.CallID)
		}
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, resultIDs)

	// The mutating call runs after the read batch completes.
	require.Len(t, executed, 3)
	assert.Equal(t, "mutate_c", executed[2])

	// One tool message per call, in request order, before the next round.
	second := llm.histories[1]
	require.Len(t, second, 5)
	for i, wantID := range []string{"c1", "c2", "c3"} {
		result, ok := second[2+i].Parts[0].(domain.FunctionResultPart)
		require.True(t, ok)
		assert.Equal(t, wantID, result.CallID)
	}
}

func TestConverse_FailedCallBecomesStructuredResult(t *testing.T) {
	tool := echoTool("delete_task")
	tool.mutates = true
	tool.execute = func(context.Context, *domain.Turn, map[string]any) (string, error) {
		return "", errors.New("store unavailable")
	}

	llm := &scriptedLLM{replies: []domain.Message{
		assistantCallMessage(domain.FunctionCallPart{CallID: "c1", Name: "delete_task", Arguments: `{"title":"x"}`}),
		domain.NewTextMessage(domain.RoleAssistant, "sorry, that failed"),
	}}
	o := newTestOrchestrator(t, llm, tool)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "delete x")})

	// The failure is material for the model, not fatal for the conversation.
	require.Equal(t, []domain.EventType{
		domain.EventFunctionCall,
		domain.EventFunctionResult,
		domain.EventText,
		domain.EventDone,
	}, eventTypes(events))
	assert.Contains(t, events[1].Output, `"success":false`)
	assert.Contains(t, events[1].Output, "store unavailable")
}

func TestConverse_FatalImageErrorAborts(t *testing.T) {
	tool := echoTool("generate_image")
	tool.mutates = true
	tool.execute = func(context.Context, *domain.Turn, map[string]any) (string, error) {
		return "", &domain.ImageError{Kind: domain.ImageErrorFatal, Status: 401, Message: "invalid api key"}
	}

	llm := &scriptedLLM{replies: []domain.Message{
		assistantCallMessage(domain.FunctionCallPart{CallID: "c1", Name: "generate_image", Arguments: `{"title":"x"}`}),
	}}
	o := newTestOrchestrator(t, llm, tool)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "draw a fox")})

	types := eventTypes(events)
	require.Equal(t, domain.EventError, types[len(types)-1])
	assert.Len(t, llm.histories, 1)
}

func TestConverse_EmitsEachGeneratedImage(t *testing.T) {
	names := []string{"cat.png", "dog.png"}
	var generated int
	tool := echoTool("generate_image")
	tool.mutates = true
	tool.execute = func(_ context.Context, turn *domain.Turn, _ map[string]any) (string, error) {
		turn.CacheGenerated(&domain.GeneratedImage{
			Prompt:     "pet",
			Attachment: domain.Attachment{Name: names[generated], MediaType: "image/png", Data: []byte("img")},
		})
		generated++
		return `{"success":true}`, nil
	}

	llm := &scriptedLLM{replies: []domain.Message{
		assistantCallMessage(domain.FunctionCallPart{CallID: "c1", Name: "generate_image", Arguments: `{"title":"x"}`}),
		assistantCallMessage(domain.FunctionCallPart{CallID: "c2", Name: "generate_image", Arguments: `{"title":"x"}`}),
		domain.NewTextMessage(domain.RoleAssistant, "here you go"),
	}}
	o := newTestOrchestrator(t, llm, tool)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "draw a cat and a dog")})

	var imageEvents []domain.Event
	for _, e := range events {
		if e.Type == domain.EventImage {
			imageEvents = append(imageEvents, e)
		}
	}
	// Both pictures reach the user, each exactly once.
	require.Len(t, imageEvents, 2)
	require.NotNil(t, imageEvents[0].Image)
	require.NotNil(t, imageEvents[1].Image)
	assert.Equal(t, "cat.png", imageEvents[0].Image.Name)
	assert.Equal(t, "dog.png", imageEvents[1].Image.Name)
}

func TestConverse_CachedImageNotRepeated(t *testing.T) {
	genTool := echoTool("generate_image")
	genTool.mutates = true
	genTool.execute = func(_ context.Context, turn *domain.Turn, _ map[string]any) (string, error) {
		turn.CacheGenerated(&domain.GeneratedImage{
			Prompt:     "a fox",
			Attachment: domain.Attachment{Name: "fox.png", MediaType: "image/png", Data: []byte("fox")},
		})
		return `{"success":true}`, nil
	}
	// Reuses the cached image without generating a new one.
	attachTool := echoTool("create_task")
	attachTool.mutates = true
	attachTool.execute = func(context.Context, *domain.Turn, map[string]any) (string, error) {
		return `{"success":true}`, nil
	}

	llm := &scriptedLLM{replies: []domain.Message{
		assistantCallMessage(domain.FunctionCallPart{CallID: "c1", Name: "generate_image", Arguments: `{"title":"x"}`}),
		assistantCallMessage(domain.FunctionCallPart{CallID: "c2", Name: "create_task", Arguments: `{"title":"x"}`}),
		domain.NewTextMessage(domain.RoleAssistant, "saved"),
	}}
	o := newTestOrchestrator(t, llm, genTool, attachTool)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "draw a fox and save it")})

	var imageCount int
	for _, e := range events {
		if e.Type == domain.EventImage {
			imageCount++
		}
	}
	assert.Equal(t, 1, imageCount)
}

func TestConverse_RoundCeilingEmitsNotice(t *testing.T) {
	tool := echoTool("list_tasks")
	tool.execute = func(context.Context, *domain.Turn, map[string]any) (string, error) {
		return `{"success":true}`, nil
	}

	// The model keeps asking for another call on every round.
	replies := make([]domain.Message, 0, 20)
	for i := 0; i < 20; i++ {
		replies = append(replies, assistantCallMessage(
			domain.FunctionCallPart{CallID: "c", Name: "list_tasks", Arguments: `{"title":"x"}`}))
	}
	llm := &scriptedLLM{replies: replies}

	registry, err := NewRegistry([]ToolFunction{tool})
	require.NoError(t, err)
	o := NewOrchestrator(llm, registry, "test-model", 3, time.Second, time.Second)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "loop forever")})

	types := eventTypes(events)
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, domain.EventNotice, types[len(types)-2])
	assert.Equal(t, domain.EventDone, types[len(types)-1])
	assert.Equal(t, budgetExceededNotice, events[len(events)-2].Text)
	// Exactly maxRounds model calls, never more.
	assert.Len(t, llm.histories, 3)
}

func TestConverse_LLMErrorSurfacesAsErrorEvent(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("rate limited")}
	o := newTestOrchestrator(t, llm)

	events := runConverse(t, o, []domain.Message{domain.NewTextMessage(domain.RoleUser, "hello")})

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "rate limited")
}
