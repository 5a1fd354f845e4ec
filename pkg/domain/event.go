package domain

type EventType string

const (
	EventText           EventType = "text"
	EventFunctionCall   EventType = "function_call"
	EventFunctionResult EventType = "function_result"
	EventImage          EventType = "image"
	EventNotice         EventType = "notice"
	EventError          EventType = "error"
	EventDone           EventType = "done"
)

// Event is one entry of a conversation's outbound stream. The orchestrator
// emits events on a per-request channel; transports (SSE, Telegram) render
// them however they like.
type Event struct {
	Type      EventType   `json:"type"`
	Text      string      `json:"text,omitempty"`
	CallID    string      `json:"call_id,omitempty"`
	Name      string      `json:"name,omitempty"`
	Arguments string      `json:"arguments,omitempty"`
	Output    string      `json:"output,omitempty"`
	Image     *Attachment `json:"image,omitempty"`
	Err       error       `json:"-"`
	Error     string      `json:"error,omitempty"`
}
