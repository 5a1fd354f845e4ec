package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avdeev/taskchat/pkg/domain"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

type client struct {
	token   string
	baseURL string
	hc      *http.Client
}

func NewClient(token string, timeout time.Duration) (*client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	return &client{
		token:   token,
		baseURL: completionsURL,
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

// CreateChatCompletion sends one completion round: system prompt, the full
// history, and the function registry, verbatim. The returned assistant
// message carries either text or function-call parts.
func (c *client) CreateChatCompletion(
	ctx context.Context,
	model string,
	systemPrompt string,
	history []domain.Message,
	tools []Tool,
) (domain.Message, error) {
	req := chatCompletionsRequest{
		Model:     model,
		Messages:  buildWireMessages(systemPrompt, history),
		MaxTokens: 4096,
		Tools:     tools,
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return domain.Message{}, fmt.Errorf("sending completion request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return domain.Message{}, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	if msg.Role != chatMessageRoleAssistant {
		return domain.Message{}, fmt.Errorf("unexpected role: received %v, expected %v", msg.Role, chatMessageRoleAssistant)
	}

	return toDomainMessage(msg), nil
}

func buildWireMessages(systemPrompt string, history []domain.Message) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: chatMessageRoleSystem, Content: systemPrompt})
	}

	for _, m := range history {
		messages = append(messages, toWireMessages(m)...)
	}
	return messages
}

// toWireMessages flattens one domain message into the completion API shape.
// Function results become separate role=tool messages; file parts become
// image_url data URLs.
func toWireMessages(m domain.Message) []chatMessage {
	var (
		parts     []content
		textOnly  string
		toolCalls []toolCall
		results   []chatMessage
	)

	for _, p := range m.Parts {
		switch v := p.(type) {
		case domain.TextPart:
			textOnly += v.Text
			parts = append(parts, content{Type: "text", Text: v.Text})
		case domain.FilePart:
			parts = append(parts, content{
				Type: "image_url",
				ImageURL: &imageURL{
					URL: "data:" + v.MediaType + ";base64," + base64.StdEncoding.EncodeToString(v.Data),
				},
			})
		case domain.FunctionCallPart:
			toolCalls = append(toolCalls, toolCall{
				ID:       v.CallID,
				Type:     "function",
				Function: functionCall{Name: v.Name, Arguments: v.Arguments},
			})
		case domain.FunctionResultPart:
			results = append(results, chatMessage{
				Role:       chatMessageRoleTool,
				ToolCallID: v.CallID,
				Name:       v.Name,
				Content:    v.Output,
			})
		}
	}

	var out []chatMessage
	switch {
	case len(toolCalls) > 0:
		msg := chatMessage{Role: m.Role, ToolCalls: toolCalls}
		if textOnly != "" {
			msg.Content = textOnly
		}
		out = append(out, msg)
	case len(parts) > 1:
		out = append(out, chatMessage{Role: m.Role, Content: parts})
	case textOnly != "" || len(parts) > 0:
		var body any = textOnly
		if len(parts) == 1 && parts[0].Type != "text" {
			body = parts
		}
		out = append(out, chatMessage{Role: m.Role, Content: body})
	}

	return append(out, results...)
}

func toDomainMessage(msg chatMessage) domain.Message {
	out := domain.Message{Role: domain.RoleAssistant}
	if s, ok := msg.Content.(string); ok && s != "" {
		out.Parts = append(out.Parts, domain.TextPart{Text: s})
	}
	for _, tc := range msg.ToolCalls {
		out.Parts = append(out.Parts, domain.FunctionCallPart{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func (c *client) send(ctx context.Context, request chatCompletionsRequest) (*chatCompletionsResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResponse chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResponse); err != nil {
		return nil, fmt.Errorf("decoding response data: %w", err)
	}

	return &chatResponse, nil
}
