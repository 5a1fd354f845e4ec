package domain

// GenerationCandidate is one (model, quality, size, encoding) configuration
// the image pipeline may try. Candidates are attempted strictly in slice
// order; the order is load-bearing, highest fidelity first.
type GenerationCandidate struct {
	Model    string
	Quality  string
	Size     string
	Encoding string // output media subtype: "png" or "jpeg"
}

func (c GenerationCandidate) MediaType() string {
	return "image/" + c.Encoding
}

// DefaultGenerationCandidates is the fallback chain tried by the pipeline.
// Later entries trade fidelity for smaller payloads.
func DefaultGenerationCandidates() []GenerationCandidate {
	return []GenerationCandidate{
		{Model: "gpt-image-1", Quality: "high", Size: "1024x1024", Encoding: "png"},
		{Model: "gpt-image-1", Quality: "medium", Size: "1024x1024", Encoding: "jpeg"},
		{Model: "dall-e-3", Quality: "standard", Size: "1024x1024", Encoding: "png"},
		{Model: "dall-e-2", Quality: "standard", Size: "512x512", Encoding: "png"},
	}
}

// GeneratedImage is the accepted output of one pipeline run.
type GeneratedImage struct {
	Prompt     string
	Attachment Attachment
}
