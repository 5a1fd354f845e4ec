package workers

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
)

// maxHistoryMessages bounds the per-chat context sent to the model.
const maxHistoryMessages = 40

type TelegramClient interface {
	GetUpdates() tgbotapi.UpdatesChannel
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, attachment domain.Attachment) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type Orchestrator interface {
	Converse(ctx context.Context, messages []domain.Message, model string, events chan<- domain.Event)
}

type telegramListener struct {
	client       TelegramClient
	orchestrator Orchestrator

	mu        sync.Mutex
	histories map[int64][]domain.Message
}

func NewTelegramListener(client TelegramClient, orchestrator Orchestrator) *telegramListener {
	return &telegramListener{
		client:       client,
		orchestrator: orchestrator,
		histories:    make(map[int64][]domain.Message),
	}
}

func (l *telegramListener) Name() string { return "telegram listener" }

func (l *telegramListener) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-l.client.GetUpdates():
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				l.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

func (l *telegramListener) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx = logger.ContextWithRequestID(ctx, uuid.NewString())

	if msg.IsCommand() {
		l.handleCommand(chatID, msg.Command())
		return
	}

	userMsg, err := l.toUserMessage(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read incoming message", "chatID", chatID, logger.Err(err))
		l.reply(chatID, "I couldn't read that message, please try again.")
		return
	}
	if len(userMsg.Parts) == 0 {
		return
	}

	history := l.appendHistory(chatID, userMsg)

	events := make(chan domain.Event, 16)
	go l.orchestrator.Converse(ctx, history, "", events)

	// The stored history must carry the function calls and results too, not
	// just the reply text: a later turn's attach_generated resolves its
	// prompt by scanning history for the generate_image call.
	var (
		transcript []domain.Message
		pending    []domain.Part
	)
	flush := func() {
		if len(pending) > 0 {
			transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Parts: pending})
			pending = nil
		}
	}

	for event := range events {
		switch event.Type {
		case domain.EventText:
			pending = append(pending, domain.TextPart{Text: event.Text})
			l.reply(chatID, event.Text)
		case domain.EventFunctionCall:
			pending = append(pending, domain.FunctionCallPart{
				CallID:    event.CallID,
				Name:      event.Name,
				Arguments: event.Arguments,
			})
		case domain.EventFunctionResult:
			flush()
			transcript = append(transcript, domain.Message{
				Role: domain.RoleTool,
				Parts: []domain.Part{domain.FunctionResultPart{
					CallID: event.CallID,
					Name:   event.Name,
					Output: event.Output,
				}},
			})
		case domain.EventImage:
			if event.Image != nil {
				if err := l.client.SendPhoto(chatID, *event.Image); err != nil {
					slog.ErrorContext(ctx, "failed to send photo", "chatID", chatID, logger.Err(err))
				}
			}
		case domain.EventNotice:
			l.reply(chatID, event.Text)
		case domain.EventError:
			slog.ErrorContext(ctx, "conversation failed", "chatID", chatID, "error", event.Error)
			l.reply(chatID, "Something went wrong, please try again.")
		}
	}
	flush()

	for _, m := range transcript {
		l.appendHistory(chatID, m)
	}
}

func (l *telegramListener) handleCommand(chatID int64, command string) {
	switch command {
	case "start":
		l.reply(chatID, "Hi! Tell me about your tasks and I'll keep track of them.")
	case "new":
		l.mu.Lock()
		delete(l.histories, chatID)
		l.mu.Unlock()
		l.reply(chatID, "Started a new conversation.")
	default:
		l.reply(chatID, "Unknown command.")
	}
}

func (l *telegramListener) toUserMessage(ctx context.Context, msg *tgbotapi.Message) (domain.Message, error) {
	var parts []domain.Part

	if text, ok := lo.Coalesce(msg.Text, msg.Caption); ok {
		parts = append(parts, domain.TextPart{Text: text})
	}

	if len(msg.Photo) > 0 {
		// Telegram sends several sizes, the last one is the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		data, err := l.client.DownloadFile(ctx, photo.FileID)
		if err != nil {
			return domain.Message{}, err
		}
		parts = append(parts, domain.FilePart{
			Name:      "photo.jpg",
			MediaType: "image/jpeg",
			Data:      data,
		})
	}

	return domain.Message{Role: domain.RoleUser, Parts: parts}, nil
}

func (l *telegramListener) appendHistory(chatID int64, msg domain.Message) []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := append(l.histories[chatID], msg)
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	l.histories[chatID] = history

	out := make([]domain.Message, len(history))
	copy(out, history)
	return out
}

func (l *telegramListener) reply(chatID int64, text string) {
	if err := l.client.SendText(chatID, text); err != nil {
		slog.Error("failed to send reply", "chatID", chatID, logger.Err(err))
	}
}
