package chat

import "github.com/braindrive/docchat/internal/scroll"

// Event is a change to a Transcript. Exactly one reducer, Transcript.Apply,
// interprets events.
type Event interface {
	isEvent()
}

// PromptSent appends a user prompt and the placeholder its reply streams into.
// User is nil for a continuation.
type PromptSent struct {
	User  *Message
	Reply *Message
}

// ContinueStarted appends a placeholder continuing a cut-off reply.
type ContinueStarted struct {
	From  string
	Reply *Message
}

// RegenerateStarted replaces the last AI reply with a fresh placeholder.
type RegenerateStarted struct {
	Reply *Message
}

// ChunkReceived appends streamed text to a reply.
type ChunkReceived struct {
	MessageID string
	Text      string
}

// ConversationAssigned records the backend conversation id.
type ConversationAssigned struct {
	ID string
}

// StreamFinished replaces a reply with its finalized copy.
type StreamFinished struct {
	Final   Message
	Outcome Outcome
	Err     error
}

// MessageEdited changes the content of a user message.
type MessageEdited struct {
	MessageID string
	Content   string
}

// ConversationCleared empties the transcript and forgets the conversation.
type ConversationCleared struct{}

func (PromptSent) isEvent()           {}
func (ContinueStarted) isEvent()      {}
func (RegenerateStarted) isEvent()    {}
func (ChunkReceived) isEvent()        {}
func (ConversationAssigned) isEvent() {}
func (StreamFinished) isEvent()       {}
func (MessageEdited) isEvent()        {}
func (ConversationCleared) isEvent()  {}

// Transcript is the ordered message list of one conversation.
// It is not safe for concurrent use; feed it from one loop.
type Transcript struct {
	Messages       []*Message
	ConversationID string
}

// Apply reduces ev into the transcript and reports whether anything changed.
func (t *Transcript) Apply(ev Event) bool {
	switch ev := ev.(type) {
	case PromptSent:
		if ev.User != nil {
			t.Messages = append(t.Messages, ev.User)
		}
		if ev.Reply != nil {
			ev.Reply.Streaming = true
			t.Messages = append(t.Messages, ev.Reply)
		}
		return ev.User != nil || ev.Reply != nil

	case ContinueStarted:
		if m := t.Find(ev.From); m != nil {
			m.CanContinue = false
		}
		if ev.Reply == nil {
			return false
		}
		ev.Reply.Streaming = true
		t.Messages = append(t.Messages, ev.Reply)
		return true

	case RegenerateStarted:
		if ev.Reply == nil {
			return false
		}
		ev.Reply.Streaming = true
		if i := t.lastIndex(SenderAI); i >= 0 && i == len(t.Messages)-1 {
			t.Messages[i] = ev.Reply
		} else {
			t.Messages = append(t.Messages, ev.Reply)
		}
		return true

	case ChunkReceived:
		m := t.Find(ev.MessageID)
		if m == nil || !m.Streaming || ev.Text == "" {
			return false
		}
		m.Content += ev.Text
		return true

	case ConversationAssigned:
		if ev.ID == "" || ev.ID == t.ConversationID {
			return false
		}
		t.ConversationID = ev.ID
		return true

	case StreamFinished:
		for i, m := range t.Messages {
			if m.ID == ev.Final.ID {
				final := ev.Final
				final.Streaming = false
				t.Messages[i] = &final
				return true
			}
		}
		return false

	case MessageEdited:
		m := t.Find(ev.MessageID)
		if m == nil || m.Sender != SenderUser || m.Content == ev.Content {
			return false
		}
		m.Edit(ev.Content)
		return true

	case ConversationCleared:
		changed := len(t.Messages) > 0 || t.ConversationID != ""
		t.Messages = nil
		t.ConversationID = ""
		return changed
	}
	return false
}

// Find returns the message with id, or nil.
func (t *Transcript) Find(id string) *Message {
	for _, m := range t.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Last returns the last message, or nil.
func (t *Transcript) Last() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

// LastUser returns the most recent user message, or nil.
func (t *Transcript) LastUser() *Message {
	if i := t.lastIndex(SenderUser); i >= 0 {
		return t.Messages[i]
	}
	return nil
}

// Streaming reports whether any reply is still streaming.
func (t *Transcript) Streaming() bool {
	last := t.Last()
	return last != nil && last.Streaming
}

// Tracked returns the messages in the form the scroll controller tracks.
func (t *Transcript) Tracked() []scroll.TrackedMessage {
	return scroll.Track(t.Messages)
}

func (t *Transcript) lastIndex(sender Sender) int {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Sender == sender {
			return i
		}
	}
	return -1
}
