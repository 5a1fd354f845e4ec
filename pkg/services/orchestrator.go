package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
	"github.com/avdeev/taskchat/pkg/openai"
)

// LLMClient is the external completion service.
type LLMClient interface {
	CreateChatCompletion(
		ctx context.Context,
		model string,
		systemPrompt string,
		history []domain.Message,
		tools []openai.Tool,
	) (domain.Message, error)
}

const budgetExceededNotice = "I hit my processing budget for this request before finishing. Here is what I have so far — ask me to continue if you need more."

// orchestrator drives the bounded model/function-call loop for one
// conversation: AwaitingModel -> ExecutingFunctions -> ... -> Done, with a
// hard round ceiling so a tool-happy model cannot loop forever.
type orchestrator struct {
	llm          LLMClient
	registry     *Registry
	defaultModel string
	maxRounds    int
	roundTimeout time.Duration
	callTimeout  time.Duration
	now          func() time.Time
}

func NewOrchestrator(
	llm LLMClient,
	registry *Registry,
	defaultModel string,
	maxRounds int,
	roundTimeout time.Duration,
	callTimeout time.Duration,
) *orchestrator {
	return &orchestrator{
		llm:          llm,
		registry:     registry,
		defaultModel: defaultModel,
		maxRounds:    maxRounds,
		roundTimeout: roundTimeout,
		callTimeout:  callTimeout,
		now:          time.Now,
	}
}

// Converse runs one conversation turn to completion, emitting events on the
// provided channel and closing it when done. The channel belongs to a single
// request; so does all turn state, which keeps concurrent conversations
// fully isolated from one another.
func (o *orchestrator) Converse(ctx context.Context, messages []domain.Message, model string, events chan<- domain.Event) {
	defer close(events)

	if model == "" {
		model = o.defaultModel
	}

	turn := domain.NewTurn(messages)
	var emittedImage *domain.GeneratedImage

	for round := 0; round < o.maxRounds; round++ {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Conversation cancelled before next round", "round", round)
			events <- domain.Event{Type: domain.EventNotice, Text: "request cancelled"}
			return
		}

		reply, err := o.completeRound(ctx, model, turn)
		if err != nil {
			events <- domain.Event{Type: domain.EventError, Err: err, Error: err.Error()}
			return
		}
		turn.Append(reply)

		if text := reply.Text(); text != "" {
			events <- domain.Event{Type: domain.EventText, Text: text}
		}

		calls := reply.FunctionCalls()
		if len(calls) == 0 {
			events <- domain.Event{Type: domain.EventDone}
			return
		}

		slog.InfoContext(ctx, "Executing function calls", "round", round, "calls", len(calls))

		fatal := o.executeRound(ctx, turn, calls, events)

		// Each distinct generation streams exactly once; a later round that
		// merely reuses the cached image does not repeat it.
		if turn.Generated != nil && turn.Generated != emittedImage {
			events <- domain.Event{Type: domain.EventImage, Image: &turn.Generated.Attachment}
			emittedImage = turn.Generated
		}

		if fatal != nil {
			events <- domain.Event{Type: domain.EventError, Err: fatal, Error: fatal.Error()}
			return
		}
	}

	slog.WarnContext(ctx, "Round ceiling reached without a final answer", "maxRounds", o.maxRounds)
	events <- domain.Event{Type: domain.EventNotice, Text: budgetExceededNotice}
	events <- domain.Event{Type: domain.EventDone}
}

func (o *orchestrator) completeRound(ctx context.Context, model string, turn *domain.Turn) (domain.Message, error) {
	roundCtx := ctx
	if o.roundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, o.roundTimeout)
		defer cancel()
	}

	reply, err := o.llm.CreateChatCompletion(roundCtx, model, systemPrompt(o.now()), turn.Messages, o.registry.Definitions())
	if err != nil {
		return domain.Message{}, fmt.Errorf("creating chat completion: %w", err)
	}
	return reply, nil
}

// executeRound runs every call the model requested this round and appends
// exactly one function result per call, in request order, before the next
// model round can start. Read-only calls within the round run concurrently;
// mutating calls serialize in request order since they are not commutative
// when they target the same task. Started calls run to completion even if
// the caller goes away, so a cancelled stream cannot leave a task half
// mutated.
func (o *orchestrator) executeRound(ctx context.Context, turn *domain.Turn, calls []domain.FunctionCallPart, events chan<- domain.Event) error {
	execCtx := context.WithoutCancel(ctx)

	for _, call := range calls {
		events <- domain.Event{
			Type:      domain.EventFunctionCall,
			CallID:    call.CallID,
			Name:      call.Name,
			Arguments: call.Arguments,
		}
	}

	outputs := make([]string, len(calls))
	fatals := make([]error, len(calls))

	for i := 0; i < len(calls); {
		if o.registry.Mutates(calls[i].Name) {
			outputs[i], fatals[i] = o.runCall(execCtx, turn, calls[i])
			i++
			continue
		}

		g := new(errgroup.Group)
		j := i
		for ; j < len(calls) && !o.registry.Mutates(calls[j].Name); j++ {
			k := j
			g.Go(func() error {
				outputs[k], fatals[k] = o.runCall(execCtx, turn, calls[k])
				return nil
			})
		}
		_ = g.Wait()
		i = j
	}

	var fatal error
	for i, call := range calls {
		turn.Append(domain.Message{
			Role: domain.RoleTool,
			Parts: []domain.Part{domain.FunctionResultPart{
				CallID: call.CallID,
				Name:   call.Name,
				Output: outputs[i],
			}},
		})
		events <- domain.Event{
			Type:   domain.EventFunctionResult,
			CallID: call.CallID,
			Name:   call.Name,
			Output: outputs[i],
		}
		if fatal == nil && fatals[i] != nil {
			fatal = fatals[i]
		}
	}
	return fatal
}

// runCall executes one function call under its own timeout. Ordinary
// failures become structured error results the model can read and recover
// from; only fatal-class failures are escalated to the caller.
func (o *orchestrator) runCall(ctx context.Context, turn *domain.Turn, call domain.FunctionCallPart) (string, error) {
	callCtx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	output, err := o.registry.Execute(callCtx, turn, call.Name, call.Arguments)
	if err == nil {
		return output, nil
	}

	slog.WarnContext(ctx, "Function call failed", "name", call.Name, logger.Err(err))

	payload, marshalErr := json.Marshal(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
	if marshalErr != nil {
		payload = []byte(`{"success":false,"error":"internal error"}`)
	}

	var imageErr *domain.ImageError
	if errors.As(err, &imageErr) && imageErr.Kind == domain.ImageErrorFatal {
		return string(payload), err
	}
	return string(payload), nil
}
