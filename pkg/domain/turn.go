package domain

// Turn holds the state of one conversation turn: the running history plus
// the image scratch produced while the turn executes. A Turn belongs to
// exactly one request and is never shared across conversations, so a
// concurrent request can never observe another turn's pending prompt or
// cached image.
type Turn struct {
	Messages []Message

	// PendingPrompt is the last prompt handed to generate_image during this
	// turn. It lets "attach the image you just asked for" resolve without
	// rescanning history.
	PendingPrompt string

	// Generated caches the image produced during this turn so a follow-up
	// attach call reuses the bytes instead of paying for a second
	// generation.
	Generated *GeneratedImage
}

func NewTurn(messages []Message) *Turn {
	return &Turn{Messages: messages}
}

func (t *Turn) Append(m Message) {
	t.Messages = append(t.Messages, m)
}

func (t *Turn) RecordPrompt(prompt string) {
	t.PendingPrompt = prompt
}

func (t *Turn) CacheGenerated(img *GeneratedImage) {
	t.Generated = img
	if img != nil {
		t.PendingPrompt = img.Prompt
	}
}
