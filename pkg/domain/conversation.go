package domain

import (
	"encoding/json"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in the conversation history: a role plus an ordered
// sequence of parts. History is append-only; the orchestrator never mutates
// a message once appended.
type Message struct {
	Role  string
	Parts []Part
}

func NewTextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			s += tp.Text
		}
	}
	return s
}

// FunctionCalls returns the message's function-call parts in order.
func (m Message) FunctionCalls() []FunctionCallPart {
	var calls []FunctionCallPart
	for _, p := range m.Parts {
		if c, ok := p.(FunctionCallPart); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// Part is a closed union of message content segments. The unexported marker
// keeps the set of implementations to this package.
type Part interface{ isPart() }

type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// FilePart is an inline binary upload, typically an image the user sent.
type FilePart struct {
	Name      string
	MediaType string
	Data      []byte
}

func (FilePart) isPart() {}

// FunctionCallPart is a model request to invoke a registered function.
type FunctionCallPart struct {
	CallID    string
	Name      string
	Arguments string
}

func (FunctionCallPart) isPart() {}

// FunctionResultPart is the outcome of one function call, keyed by CallID.
type FunctionResultPart struct {
	CallID string
	Name   string
	Output string
}

func (FunctionResultPart) isPart() {}

const (
	partTypeText           = "text"
	partTypeFile           = "file"
	partTypeFunctionCall   = "function_call"
	partTypeFunctionResult = "function_result"
)

// partEnvelope is the wire form of a Part for the HTTP API.
type partEnvelope struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      []byte `json:"data,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

type messageEnvelope struct {
	Role  string         `json:"role"`
	Parts []partEnvelope `json:"parts"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	env := messageEnvelope{Role: m.Role, Parts: make([]partEnvelope, 0, len(m.Parts))}
	for _, p := range m.Parts {
		switch v := p.(type) {
		case TextPart:
			env.Parts = append(env.Parts, partEnvelope{Type: partTypeText, Text: v.Text})
		case FilePart:
			env.Parts = append(env.Parts, partEnvelope{Type: partTypeFile, Name: v.Name, MediaType: v.MediaType, Data: v.Data})
		case FunctionCallPart:
			env.Parts = append(env.Parts, partEnvelope{Type: partTypeFunctionCall, CallID: v.CallID, Name: v.Name, Arguments: v.Arguments})
		case FunctionResultPart:
			env.Parts = append(env.Parts, partEnvelope{Type: partTypeFunctionResult, CallID: v.CallID, Name: v.Name, Output: v.Output})
		default:
			return nil, fmt.Errorf("unknown message part type %T", p)
		}
	}
	return json.Marshal(env)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	m.Role = env.Role
	m.Parts = make([]Part, 0, len(env.Parts))
	for _, p := range env.Parts {
		switch p.Type {
		case partTypeText:
			m.Parts = append(m.Parts, TextPart{Text: p.Text})
		case partTypeFile:
			m.Parts = append(m.Parts, FilePart{Name: p.Name, MediaType: p.MediaType, Data: p.Data})
		case partTypeFunctionCall:
			m.Parts = append(m.Parts, FunctionCallPart{CallID: p.CallID, Name: p.Name, Arguments: p.Arguments})
		case partTypeFunctionResult:
			m.Parts = append(m.Parts, FunctionResultPart{CallID: p.CallID, Name: p.Name, Output: p.Output})
		default:
			return fmt.Errorf("unknown message part type %q", p.Type)
		}
	}
	return nil
}
