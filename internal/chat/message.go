// Package chat manages the lifecycle of streamed AI replies and the
// transcript they are appended to.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message is one entry of a chat transcript.
//
// An AI message is created as an empty placeholder when a prompt is sent.
// Its Content only grows while Streaming is set. Once finalized it is never
// streaming again.
type Message struct {
	ID      string    `json:"id"`
	Sender  Sender    `json:"sender"`
	Content string    `json:"content"`
	Created time.Time `json:"created_at"`

	Streaming     bool `json:"is_streaming"`
	IsCutOff      bool `json:"is_cut_off,omitempty"`
	CanContinue   bool `json:"can_continue,omitempty"`
	CanRegenerate bool `json:"can_regenerate,omitempty"`

	IsEdited        bool   `json:"is_edited,omitempty"`
	OriginalContent string `json:"original_content,omitempty"`

	// Error holds the transport error that ended the stream, if any.
	Error string `json:"error,omitempty"`
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Sender:  SenderUser,
		Content: content,
		Created: time.Now(),
	}
}

// NewPlaceholder creates the empty AI message a reply streams into.
func NewPlaceholder() *Message {
	return &Message{
		ID:      uuid.NewString(),
		Sender:  SenderAI,
		Created: time.Now(),
	}
}

// IsStreaming reports whether content is still arriving.
func (m *Message) IsStreaming() bool {
	return m != nil && m.Streaming
}

// MarkCutOff flags a message as cut off mid-stream. The flag survives
// normal completion so the reply stays continuable.
func (m *Message) MarkCutOff() {
	m.IsCutOff = true
}

// Clone returns a copy that shares no state with m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// Edit replaces the content of a user message, keeping the first original.
func (m *Message) Edit(content string) {
	if content == m.Content {
		return
	}
	if !m.IsEdited {
		m.OriginalContent = m.Content
		m.IsEdited = true
	}
	m.Content = content
}

func (m *Message) finishCompleted() {
	m.Streaming = false
	m.CanRegenerate = true
	m.CanContinue = m.IsCutOff
}

func (m *Message) finishStopped() {
	m.Streaming = false
	m.IsCutOff = true
	m.CanContinue = true
	m.CanRegenerate = true
}

func (m *Message) finishFailed(err error) {
	m.Streaming = false
	if err != nil {
		m.Error = err.Error()
	}
}
