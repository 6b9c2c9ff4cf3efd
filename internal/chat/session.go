package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/braindrive/docchat/internal/logger"
	"golang.org/x/time/rate"
)

// Outcome tells how a prompt ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	// OutcomeStopped follows StopGeneration.
	OutcomeStopped
	// OutcomeAborted follows cancellation of the caller's context or Cleanup.
	OutcomeAborted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeStopped:
		return "stopped"
	case OutcomeAborted:
		return "aborted"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Callbacks observe a prompt while it streams. Both run on the goroutine
// that called SendPrompt.
type Callbacks struct {
	OnChunk          func(text string)
	OnConversationID func(id string)
}

// run is one in-flight prompt.
type run struct {
	cancel   context.CancelFunc
	msg      *Message
	stopped  bool
	aborted  bool
	reported bool
}

// Session drives one prompt at a time through a Transport and keeps the
// reply's flags consistent with how the stream ended.
// It is safe for concurrent use.
type Session struct {
	transport Transport
	follower  Follower
	publisher Publisher
	log       *logger.Logger
	progress  *rate.Limiter

	mu             sync.Mutex
	active         *run
	conversationID string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithFollower sets the component asked to follow the stream after each chunk.
func WithFollower(f Follower) SessionOption {
	return func(s *Session) { s.follower = f }
}

// WithPublisher sets where lifecycle notifications go.
func WithPublisher(p Publisher) SessionOption {
	return func(s *Session) { s.publisher = p }
}

// WithSessionLogger overrides the logger.
func WithSessionLogger(l *logger.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithProgressInterval limits how often progress notifications are published.
func WithProgressInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.progress = rate.NewLimiter(rate.Every(d), 1) }
}

// WithConversationID resumes an existing conversation.
func WithConversationID(id string) SessionOption {
	return func(s *Session) { s.conversationID = id }
}

// NewSession creates an idle session.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport: transport,
		log:       logger.Named("chat"),
		progress:  rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsStreaming reports whether a prompt is live.
func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// ConversationID returns the id assigned by the backend, or "".
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// SendPrompt streams the reply to req into msg and blocks until the
// stream ends. msg belongs to the session until SendPrompt returns.
//
// A non-nil error is returned only for OutcomeFailed and for
// ErrAlreadyStreaming. Stops and aborts are outcomes, not errors.
func (s *Session) SendPrompt(ctx context.Context, req PromptRequest, msg *Message, cb Callbacks) (Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		cancel()
		return OutcomeFailed, ErrAlreadyStreaming
	}
	r := &run{cancel: cancel, msg: msg}
	s.active = r
	msg.Streaming = true
	msg.Error = ""
	if req.ConversationID == "" {
		req.ConversationID = s.conversationID
	}
	s.mu.Unlock()
	defer cancel()

	s.log.Debug("sending prompt (conversation=%q, model=%s, streaming=%t)", req.ConversationID, req.Model.Key(), req.UseStreaming)
	s.publish(ctx, Notification{Kind: NotifyStarted, ConversationID: req.ConversationID, MessageID: msg.ID})

	onChunk := func(text string) {
		s.mu.Lock()
		if r.stopped || r.aborted {
			s.mu.Unlock()
			return
		}
		msg.Content += text
		size := len(msg.Content)
		conv := s.conversationID
		s.mu.Unlock()

		if cb.OnChunk != nil {
			cb.OnChunk(text)
		}
		if s.follower != nil {
			s.follower.FollowStreamIfAllowed()
		}
		if s.progress.Allow() {
			s.publish(ctx, Notification{Kind: NotifyProgress, ConversationID: conv, MessageID: msg.ID, Bytes: size})
		}
	}

	onConversationID := func(id string) {
		s.mu.Lock()
		if id == "" || r.reported {
			s.mu.Unlock()
			return
		}
		r.reported = true
		if id == s.conversationID {
			s.mu.Unlock()
			return
		}
		s.conversationID = id
		s.mu.Unlock()

		s.log.Debug("conversation assigned: %s", id)
		if cb.OnConversationID != nil {
			cb.OnConversationID(id)
		}
	}

	err := s.transport.SendPrompt(runCtx, req, onChunk, onConversationID)

	s.mu.Lock()
	if s.active == r {
		s.active = nil
	}
	outcome := OutcomeCompleted
	switch {
	case r.stopped:
		outcome = OutcomeStopped
		msg.finishStopped()
	case r.aborted || (err != nil && IsAbort(err)) || (err == nil && ctx.Err() != nil):
		outcome = OutcomeAborted
		msg.finishStopped()
	case errors.Is(err, ErrTruncated):
		msg.MarkCutOff()
		msg.finishCompleted()
	case err != nil:
		outcome = OutcomeFailed
		msg.finishFailed(err)
	default:
		msg.finishCompleted()
	}
	conv := s.conversationID
	s.mu.Unlock()

	n := Notification{ConversationID: conv, MessageID: msg.ID, Bytes: len(msg.Content)}
	switch outcome {
	case OutcomeCompleted:
		n.Kind = NotifyCompleted
	case OutcomeStopped, OutcomeAborted:
		n.Kind = NotifyStopped
		n.Text = outcome.String()
	case OutcomeFailed:
		n.Kind = NotifyFailed
		n.Err = err.Error()
	}
	s.publish(context.WithoutCancel(ctx), n)

	if outcome == OutcomeFailed {
		s.log.Error("prompt failed: %v", err)
		return outcome, fmt.Errorf("send prompt: %w", err)
	}
	s.log.Debug("prompt %s (%d bytes)", outcome, len(msg.Content))
	return outcome, nil
}

// StopGeneration aborts the live prompt and finalizes its reply as cut off.
// The backend is asked to stop as well; a failure there is only logged.
// It reports whether a prompt was live.
func (s *Session) StopGeneration(ctx context.Context) bool {
	s.mu.Lock()
	r := s.active
	if r == nil {
		s.mu.Unlock()
		return false
	}
	s.active = nil
	r.stopped = true
	r.cancel()
	r.msg.finishStopped()
	conv := s.conversationID
	s.mu.Unlock()

	s.log.Info("generation stopped (conversation=%q)", conv)
	if conv == "" {
		return true
	}
	if err := s.transport.CancelGeneration(ctx, conv); err != nil {
		s.log.Warn("backend cancel for %s failed: %v", conv, err)
	}
	return true
}

// Cleanup aborts any live prompt without notifying the backend.
// It is safe to call repeatedly.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.active
	if r == nil {
		return
	}
	s.active = nil
	r.aborted = true
	r.cancel()
	r.msg.finishStopped()
}

// Reset forgets the conversation id so the next prompt starts a new one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = ""
}

func (s *Session) publish(ctx context.Context, n Notification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.Debug("publish %s: %v", n.Kind, err)
	}
}
