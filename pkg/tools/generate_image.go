package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/avdeev/taskchat/pkg/domain"
)

type generateImage struct {
	generator ImageGenerator
}

func NewGenerateImage(generator ImageGenerator) *generateImage {
	return &generateImage{generator: generator}
}

func (t *generateImage) Name() string { return domain.FunctionGenerateImage }

func (t *generateImage) Description() string {
	return "Generate an image from a text prompt. The image is shown to the user and can be attached to a task with attach_generated."
}

func (t *generateImage) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"prompt": {
				Type:        jsonschema.String,
				Description: "What to draw",
			},
		},
		Required: []string{"prompt"},
	}
}

// Mutates: a generation writes the turn's image scratch and bills the
// account, so it never runs concurrently with other calls.
func (t *generateImage) Mutates() bool { return true }

func (t *generateImage) Execute(ctx context.Context, turn *domain.Turn, args map[string]any) (string, error) {
	prompt := stringArg(args, "prompt")
	turn.RecordPrompt(prompt)

	img, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating image: %w", err)
	}

	turn.CacheGenerated(img)

	return successResult(map[string]any{
		"note":       "image generated and shown to the user",
		"media_type": img.Attachment.MediaType,
		"bytes":      len(img.Attachment.Data),
	})
}
