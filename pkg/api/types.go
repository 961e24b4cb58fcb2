package api

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FinishReason is the reason generation stopped for a choice. The zero value
// means the server has not reported a reason yet.
type FinishReason string

const (
	FinishReasonUnset         FinishReason = ""
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// IsSet reports whether the server supplied a finish reason.
func (f FinishReason) IsSet() bool {
	return f != FinishReasonUnset
}

// Message is a complete chat message, used both for request input and for
// non-streaming response choices.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Delta is the partial update carried by a streaming choice. A nil Content
// means the frame carried no content field at all, which is distinct from an
// empty string.
type Delta struct {
	Content *string `json:"content,omitempty"`
	Role    Role    `json:"role,omitempty"`
}

// Text returns the delta content, or "" when absent.
func (d *Delta) Text() string {
	if d == nil || d.Content == nil {
		return ""
	}
	return *d.Content
}

// Choice is one alternative in a Completion or Chunk. Exactly one of Delta
// and Message is non-nil: Delta for streaming chunks, Message for buffered
// completions.
type Choice struct {
	Index        int          `json:"index"`
	Delta        *Delta       `json:"delta,omitempty"`
	Message      *Message     `json:"message,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// Chunk is one decoded streaming event.
type Chunk struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// CreatedAt returns Created as a time. A zero Created yields the Unix epoch.
func (c *Chunk) CreatedAt() time.Time {
	return time.Unix(c.Created, 0).UTC()
}

// Completion is the full response to a non-streaming chat request.
type Completion struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// CreatedAt returns Created as a time. A zero Created yields the Unix epoch.
func (c *Completion) CreatedAt() time.Time {
	return time.Unix(c.Created, 0).UTC()
}

// Text returns the message content of the first choice, or "" when the
// completion has no choices.
func (c *Completion) Text() string {
	if len(c.Choices) == 0 || c.Choices[0].Message == nil {
		return ""
	}
	return c.Choices[0].Message.Content
}

// Model is one entry of the model catalog.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the decoded /models response.
type ModelList struct {
	Data []Model `json:"data"`
}
