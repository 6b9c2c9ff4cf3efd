package chat

import (
	"context"
	"errors"
)

// ErrAborted marks a prompt that ended because its context was cancelled.
// Transports may return it, or any error wrapping context.Canceled.
var ErrAborted = errors.New("generation aborted")

// ErrAlreadyStreaming is returned when a prompt is sent while another is live.
var ErrAlreadyStreaming = errors.New("a reply is already streaming")

// ErrTruncated is returned by a transport when the backend ended the reply
// at its length limit. The session completes the reply and marks it cut off
// so it can be continued.
var ErrTruncated = errors.New("reply truncated at length limit")

// IsAbort reports whether err is a cancellation rather than a failure.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// Model selects the provider and model that answers a prompt.
type Model struct {
	Provider   string `json:"provider"`
	ServerID   string `json:"server_id"`
	ServerName string `json:"server_name,omitempty"`
	Name       string `json:"name"`
}

// Key returns the "provider/server/name" form used in config and UI state.
func (m Model) Key() string {
	if m.Provider == "" && m.ServerID == "" {
		return m.Name
	}
	return m.Provider + "/" + m.ServerID + "/" + m.Name
}

// PageContext describes the host page a prompt was sent from.
type PageContext struct {
	PageID       string `json:"page_id,omitempty"`
	PageName     string `json:"page_name,omitempty"`
	PageRoute    string `json:"page_route,omitempty"`
	IsStudioPage bool   `json:"is_studio_page,omitempty"`
}

// Persona is an optional system persona applied to a conversation.
type Persona struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// PromptRequest is one outbound prompt.
type PromptRequest struct {
	Prompt           string
	Model            Model
	UseStreaming     bool
	ConversationID   string
	ConversationType string
	CollectionID     string
	PageContext      *PageContext
	Persona          *Persona
}

// Transport delivers prompts to a backend.
//
// SendPrompt calls onChunk zero or more times, in arrival order, before it
// returns. It calls onConversationID when the backend assigns an id.
// Cancelling ctx must make SendPrompt return an error for which IsAbort is
// true.
type Transport interface {
	SendPrompt(ctx context.Context, req PromptRequest, onChunk func(string), onConversationID func(string)) error
	CancelGeneration(ctx context.Context, conversationID string) error
}

// Follower is asked to follow the stream after each chunk is applied.
type Follower interface {
	FollowStreamIfAllowed()
}

// FollowerFunc adapts a function to Follower.
type FollowerFunc func()

// FollowStreamIfAllowed implements Follower.
func (f FollowerFunc) FollowStreamIfAllowed() { f() }

// NotificationKind names a lifecycle notification.
type NotificationKind string

const (
	NotifyStarted   NotificationKind = "stream_started"
	NotifyProgress  NotificationKind = "stream_progress"
	NotifyCompleted NotificationKind = "stream_completed"
	NotifyStopped   NotificationKind = "stream_stopped"
	NotifyFailed    NotificationKind = "stream_failed"
	NotifyNotice    NotificationKind = "notice"
)

// Notification is a lifecycle event handed to a Publisher.
type Notification struct {
	Kind           NotificationKind
	ConversationID string
	MessageID      string
	Text           string
	Bytes          int
	Err            string
}

// Publisher receives lifecycle notifications. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}
