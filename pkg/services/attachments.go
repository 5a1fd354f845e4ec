package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
)

// ImagePipeline produces an image for a prompt, or reports that no candidate
// could.
type ImagePipeline interface {
	Generate(ctx context.Context, prompt string) (*domain.GeneratedImage, error)
}

// attachmentResolver decides which images accompany a task mutation: images
// the user uploaded in chat, or the image generated earlier in the
// conversation. Resolution is best effort and append-only; it never raises
// and never removes attachments a task already has.
type attachmentResolver struct {
	pipeline ImagePipeline
}

func NewAttachmentResolver(pipeline ImagePipeline) *attachmentResolver {
	return &attachmentResolver{pipeline: pipeline}
}

func (r *attachmentResolver) Resolve(ctx context.Context, turn *domain.Turn, fromChat, generated bool) []domain.Attachment {
	attachments := make([]domain.Attachment, 0)

	if fromChat {
		attachments = append(attachments, chatImages(turn)...)
	}

	if generated {
		if att, ok := r.resolveGenerated(ctx, turn); ok {
			attachments = append(attachments, att)
		}
	}

	return attachments
}

// chatImages collects every image the user uploaded, across the whole
// conversation, in history order.
func chatImages(turn *domain.Turn) []domain.Attachment {
	var images []domain.Attachment
	for _, m := range turn.Messages {
		if m.Role != domain.RoleUser {
			continue
		}
		for _, p := range m.Parts {
			file, ok := p.(domain.FilePart)
			if !ok || !strings.HasPrefix(file.MediaType, "image/") {
				continue
			}
			images = append(images, domain.Attachment{
				Name:      file.Name,
				MediaType: file.MediaType,
				Data:      file.Data,
			})
		}
	}
	return images
}

// resolveGenerated prefers, in order: the image already generated this turn,
// the prompt recorded this turn, and finally the most recent successful
// generate_image prompt anywhere in history.
func (r *attachmentResolver) resolveGenerated(ctx context.Context, turn *domain.Turn) (domain.Attachment, bool) {
	if turn.Generated != nil {
		return turn.Generated.Attachment, true
	}

	prompt := turn.PendingPrompt
	if prompt == "" {
		prompt = lastGenerationPrompt(turn.Messages)
		if prompt != "" {
			// Regenerating from an old prompt can produce a different image
			// than the one the user originally saw.
			slog.WarnContext(ctx, "Regenerating image from a prior conversation prompt", "prompt", prompt)
		}
	}
	if prompt == "" {
		slog.DebugContext(ctx, "No generation prompt available to attach")
		return domain.Attachment{}, false
	}

	img, err := r.pipeline.Generate(ctx, prompt)
	if err != nil {
		slog.WarnContext(ctx, "Skipping generated attachment", "prompt", prompt, logger.Err(err))
		return domain.Attachment{}, false
	}

	turn.CacheGenerated(img)
	return img.Attachment, true
}

// lastGenerationPrompt scans history backwards for the latest generate_image
// call whose result reported success, and returns its prompt argument.
func lastGenerationPrompt(messages []domain.Message) string {
	succeeded := map[string]bool{}
	for _, m := range messages {
		for _, p := range m.Parts {
			result, ok := p.(domain.FunctionResultPart)
			if !ok || result.Name != domain.FunctionGenerateImage {
				continue
			}
			var payload struct {
				Success bool `json:"success"`
			}
			if err := json.Unmarshal([]byte(result.Output), &payload); err == nil && payload.Success {
				succeeded[result.CallID] = true
			}
		}
	}

	for i := len(messages) - 1; i >= 0; i-- {
		for j := len(messages[i].Parts) - 1; j >= 0; j-- {
			call, ok := messages[i].Parts[j].(domain.FunctionCallPart)
			if !ok || call.Name != domain.FunctionGenerateImage || !succeeded[call.CallID] {
				continue
			}
			var args struct {
				Prompt string `json:"prompt"`
			}
			if err := json.Unmarshal([]byte(call.Arguments), &args); err == nil && args.Prompt != "" {
				return args.Prompt
			}
		}
	}
	return ""
}
