// Package testfixtures provides fakes and helpers for TUI tests.
//
//   - MockTransport: scripted chat.Transport whose replies can be held open
//   - MockBus: in-memory event bus recording notices
package testfixtures

import (
	"context"
	"sync"

	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/events"
)

// MockTransport is a scripted chat.Transport. Every SendPrompt reports
// ConversationID, emits Chunks and returns Err. With Hold set it blocks
// after the chunks until Release or cancellation.
type MockTransport struct {
	Chunks         []string
	ConversationID string
	Err            error
	Hold           bool

	mu        sync.Mutex
	prompts   []chat.PromptRequest
	cancelled []string
	release   chan struct{}
	started   chan struct{}
}

// NewMockTransport creates a transport replying with chunks.
func NewMockTransport(chunks ...string) *MockTransport {
	return &MockTransport{
		Chunks:         chunks,
		ConversationID: FixedConversation,
		release:        make(chan struct{}),
		started:        make(chan struct{}, 16),
	}
}

// SendPrompt implements chat.Transport.
func (m *MockTransport) SendPrompt(ctx context.Context, req chat.PromptRequest, onChunk func(string), onConversationID func(string)) error {
	m.mu.Lock()
	m.prompts = append(m.prompts, req)
	m.mu.Unlock()

	if m.ConversationID != "" {
		onConversationID(m.ConversationID)
	}
	for _, c := range m.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		onChunk(c)
	}
	m.started <- struct{}{}
	if m.Hold {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Err
}

// CancelGeneration implements chat.Transport.
func (m *MockTransport) CancelGeneration(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, conversationID)
	return nil
}

// Started returns a channel signalled once per prompt after its chunks.
func (m *MockTransport) Started() <-chan struct{} {
	return m.started
}

// Release unblocks held prompts.
func (m *MockTransport) Release() {
	close(m.release)
}

// Prompts returns the requests received so far.
func (m *MockTransport) Prompts() []chat.PromptRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.PromptRequest(nil), m.prompts...)
}

// Cancelled returns the conversation ids passed to CancelGeneration.
func (m *MockTransport) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

// MockBus is an in-memory stand-in for events.Bus.
type MockBus struct {
	mu      sync.Mutex
	notices []events.Event
	subs    []chan events.Event
}

// NewMockBus creates an empty bus.
func NewMockBus() *MockBus {
	return &MockBus{}
}

// Subscribe returns a channel receiving every later event. The conversation
// filter is ignored.
func (b *MockBus) Subscribe(ctx context.Context, _ string) (<-chan events.Event, error) {
	ch := make(chan events.Event, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch, nil
}

// Notify records a notice and delivers it to subscribers.
func (b *MockBus) Notify(_ context.Context, conversation, text string) error {
	return b.Emit(events.Event{Conversation: conversation, Type: events.TypeNotice, Text: text})
}

// Emit delivers ev to subscribers, recording notices.
func (b *MockBus) Emit(ev events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ev.Type == events.TypeNotice {
		b.notices = append(b.notices, ev)
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Notices returns the notices published so far.
func (b *MockBus) Notices() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.notices...)
}
