package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
)

// ImageGenerator issues one billed request for one candidate configuration.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, candidate domain.GenerationCandidate) ([]byte, error)
}

// imagePipeline walks an ordered candidate chain until one attempt yields an
// image under the size ceiling. Attempts are strictly sequential: every call
// costs money, so a later candidate is only tried after the earlier one has
// demonstrably failed.
type imagePipeline struct {
	generator      ImageGenerator
	candidates     []domain.GenerationCandidate
	maxBytes       int
	attemptTimeout time.Duration
}

func NewImagePipeline(
	generator ImageGenerator,
	candidates []domain.GenerationCandidate,
	maxBytes int,
	attemptTimeout time.Duration,
) *imagePipeline {
	return &imagePipeline{
		generator:      generator,
		candidates:     candidates,
		maxBytes:       maxBytes,
		attemptTimeout: attemptTimeout,
	}
}

func (p *imagePipeline) Generate(ctx context.Context, prompt string) (*domain.GeneratedImage, error) {
	for _, candidate := range p.candidates {
		data, err := p.attempt(ctx, prompt, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if domain.ImageErrorKindOf(err) == domain.ImageErrorFatal {
				// Auth, quota and the like recur on every candidate; stop
				// spending immediately.
				return nil, fmt.Errorf("generating image with %s: %w", candidate.Model, err)
			}
			slog.WarnContext(ctx, "Image candidate failed, advancing",
				"model", candidate.Model, "quality", candidate.Quality, logger.Err(err))
			continue
		}

		if p.maxBytes > 0 && len(data) > p.maxBytes {
			slog.InfoContext(ctx, "Image exceeds size ceiling, advancing",
				"model", candidate.Model, "size", len(data), "ceiling", p.maxBytes)
			continue
		}

		slog.InfoContext(ctx, "Image generated",
			"model", candidate.Model, "quality", candidate.Quality, "size", len(data))

		return &domain.GeneratedImage{
			Prompt: prompt,
			Attachment: domain.Attachment{
				Name:      fmt.Sprintf("generated-%s.%s", candidate.Model, candidate.Encoding),
				MediaType: candidate.MediaType(),
				Data:      data,
			},
		}, nil
	}

	return nil, domain.ErrNoUsableCandidate
}

func (p *imagePipeline) attempt(ctx context.Context, prompt string, candidate domain.GenerationCandidate) ([]byte, error) {
	attemptCtx := ctx
	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()
	}
	return p.generator.Generate(attemptCtx, prompt, candidate)
}
