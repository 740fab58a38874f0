package chat

import (
	"strings"
	"time"

	"github.com/BryanTheLai/stackrag/pkg/stream"
)

// MessageKind distinguishes what was sent to the model from what it replied.
type MessageKind string

const (
	KindRequest  MessageKind = "request"
	KindResponse MessageKind = "response"
)

type PartKind string

const (
	PartSystemPrompt PartKind = "system-prompt"
	PartUserPrompt   PartKind = "user-prompt"
	PartText         PartKind = "text"
)

// MessagePart is one piece of a message. Conversations persisted by the
// backend carry exactly one part per message.
type MessagePart struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	PartKind  PartKind  `json:"part_kind"`
}

// Usage is the token accounting the backend attaches to responses.
type Usage struct {
	Requests       int            `json:"requests"`
	RequestTokens  int            `json:"request_tokens"`
	ResponseTokens int            `json:"response_tokens"`
	TotalTokens    int            `json:"total_tokens"`
	Details        map[string]int `json:"details,omitempty"`
}

// ChatMessage is the wire and storage shape of a conversation message.
type ChatMessage struct {
	Kind      MessageKind   `json:"kind"`
	Parts     []MessagePart `json:"parts"`
	Usage     *Usage        `json:"usage,omitempty"`
	ModelName string        `json:"model_name,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitzero"`
	VendorID  string        `json:"vendor_id,omitempty"`
}

const noContent = "(No content)"

func newRequest(kind PartKind, content string) ChatMessage {
	now := time.Now().UTC()
	return ChatMessage{
		Kind:  KindRequest,
		Parts: []MessagePart{{Content: content, Timestamp: now, PartKind: kind}},
	}
}

func NewUserMessage(content string) ChatMessage {
	return newRequest(PartUserPrompt, strings.TrimSpace(content))
}

func NewSystemMessage(content string) ChatMessage {
	return newRequest(PartSystemPrompt, content)
}

func NewResponseMessage(content, model string) ChatMessage {
	return ChatMessage{
		Kind:      KindResponse,
		Parts:     []MessagePart{{Content: content, PartKind: PartText}},
		ModelName: model,
		Timestamp: time.Now().UTC(),
	}
}

// Text returns the content of the first part.
func (m ChatMessage) Text() string {
	if len(m.Parts) == 0 {
		return noContent
	}
	return m.Parts[0].Content
}

func (m ChatMessage) IsResponse() bool {
	return m.Kind == KindResponse
}

func (m ChatMessage) IsUserPrompt() bool {
	return m.Kind == KindRequest && len(m.Parts) > 0 && m.Parts[0].PartKind == PartUserPrompt
}

// Label is the speaker name shown next to a message.
func (m ChatMessage) Label() string {
	if m.Kind == KindResponse {
		return "Model"
	}
	if len(m.Parts) == 0 {
		return ""
	}
	switch m.Parts[0].PartKind {
	case PartSystemPrompt:
		return "System"
	case PartUserPrompt:
		return "You"
	default:
		return ""
	}
}

// Role maps the message onto the transport-neutral roles.
func (m ChatMessage) Role() stream.Role {
	if m.Kind == KindResponse {
		return stream.RoleAssistant
	}
	if len(m.Parts) > 0 && m.Parts[0].PartKind == PartSystemPrompt {
		return stream.RoleSystem
	}
	return stream.RoleUser
}

func (m ChatMessage) timestamp() time.Time {
	if !m.Timestamp.IsZero() {
		return m.Timestamp
	}
	if len(m.Parts) > 0 {
		return m.Parts[0].Timestamp
	}
	return time.Time{}
}

// ToStreamMessages converts history for a stream.Source.
func ToStreamMessages(history []ChatMessage) []stream.Message {
	out := make([]stream.Message, len(history))
	for i, m := range history {
		out[i] = stream.Message{Role: m.Role(), Content: m.Text(), Timestamp: m.timestamp()}
	}
	return out
}

// FromStreamMessage is the inverse of ToStreamMessages for a single message.
func FromStreamMessage(m stream.Message) ChatMessage {
	switch m.Role {
	case stream.RoleAssistant:
		msg := NewResponseMessage(m.Content, "")
		msg.Timestamp = m.Timestamp
		return msg
	case stream.RoleSystem:
		msg := NewSystemMessage(m.Content)
		msg.Parts[0].Timestamp = m.Timestamp
		return msg
	default:
		msg := newRequest(PartUserPrompt, m.Content)
		msg.Parts[0].Timestamp = m.Timestamp
		return msg
	}
}
