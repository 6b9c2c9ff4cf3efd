package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	chunks  []string
	convIDs []string
	err     error
	block   bool
	started chan struct{}

	cancelErr error

	mu        sync.Mutex
	requests  []PromptRequest
	cancelled []string
}

func (f *fakeTransport) SendPrompt(ctx context.Context, req PromptRequest, onChunk func(string), onConversationID func(string)) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	for _, id := range f.convIDs {
		onConversationID(id)
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeTransport) CancelGeneration(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, conversationID)
	return f.cancelErr
}

func (f *fakeTransport) cancelCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []NotificationKind
}

func (p *recordingPublisher) Publish(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, n.Kind)
	return nil
}

func (p *recordingPublisher) seen() []NotificationKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]NotificationKind(nil), p.kinds...)
}

type result struct {
	outcome Outcome
	err     error
}

// startBlocking sends a prompt on a goroutine and waits until every chunk has been delivered.
func startBlocking(t *testing.T, ctx context.Context, s *Session, tr *fakeTransport, msg *Message) <-chan result {
	t.Helper()
	tr.block = true
	tr.started = make(chan struct{})
	done := make(chan result, 1)
	go func() {
		o, err := s.SendPrompt(ctx, PromptRequest{Prompt: "hi", UseStreaming: true}, msg, Callbacks{})
		done <- result{o, err}
	}()
	select {
	case <-tr.started:
	case <-time.After(2 * time.Second):
		t.Fatal("transport never started")
	}
	return done
}

func wait(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("SendPrompt did not return")
		return result{}
	}
}

func TestSendPromptCompletes(t *testing.T) {
	tr := &fakeTransport{chunks: []string{"Hel", "lo", "!"}, convIDs: []string{"conv-1"}}
	pub := &recordingPublisher{}

	var s *Session
	var followed []string
	msg := NewPlaceholder()
	s = NewSession(tr, WithPublisher(pub), WithFollower(FollowerFunc(func() {
		require.True(t, s.IsStreaming())
		followed = append(followed, msg.Content)
	})))

	var chunks []string
	var assigned []string
	outcome, err := s.SendPrompt(context.Background(), PromptRequest{Prompt: "hi", UseStreaming: true}, msg, Callbacks{
		OnChunk:          func(text string) { chunks = append(chunks, text) },
		OnConversationID: func(id string) { assigned = append(assigned, id) },
	})

	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)
	require.Equal(t, []string{"Hel", "lo", "!"}, chunks)
	require.Equal(t, []string{"Hel", "Hello", "Hello!"}, followed, "content is applied before each follow decision")
	require.Equal(t, []string{"conv-1"}, assigned)
	require.Equal(t, "conv-1", s.ConversationID())

	require.Equal(t, "Hello!", msg.Content)
	require.False(t, msg.Streaming)
	require.True(t, msg.CanRegenerate)
	require.False(t, msg.CanContinue)
	require.False(t, msg.IsCutOff)
	require.False(t, s.IsStreaming())

	require.Equal(t, NotifyStarted, pub.seen()[0])
	require.Equal(t, NotifyCompleted, pub.seen()[len(pub.seen())-1])
}

func TestCompletionKeepsCutOffContinuable(t *testing.T) {
	tr := &fakeTransport{chunks: []string{"partial"}}
	s := NewSession(tr)
	msg := NewPlaceholder()
	msg.MarkCutOff()

	outcome, err := s.SendPrompt(context.Background(), PromptRequest{Prompt: "hi"}, msg, Callbacks{})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)
	require.True(t, msg.IsCutOff)
	require.True(t, msg.CanContinue)
	require.True(t, msg.CanRegenerate)
}

func TestProgressIsThrottled(t *testing.T) {
	tr := &fakeTransport{chunks: []string{"a", "b", "c", "d", "e"}}
	pub := &recordingPublisher{}
	s := NewSession(tr, WithPublisher(pub), WithProgressInterval(time.Hour))

	_, err := s.SendPrompt(context.Background(), PromptRequest{Prompt: "hi"}, NewPlaceholder(), Callbacks{})
	require.NoError(t, err)

	progress := 0
	for _, kind := range pub.seen() {
		if kind == NotifyProgress {
			progress++
		}
	}
	require.Equal(t, 1, progress, "one burst token, then nothing for an hour")
}

func TestTruncatedReplyCompletesCutOff(t *testing.T) {
	tr := &fakeTransport{chunks: []string{"first half"}, err: fmt.Errorf("read: %w", ErrTruncated)}
	pub := &recordingPublisher{}
	s := NewSession(tr, WithPublisher(pub))
	msg := NewPlaceholder()

	outcome, err := s.SendPrompt(context.Background(), PromptRequest{Prompt: "hi"}, msg, Callbacks{})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)
	require.Equal(t, "first half", msg.Content)
	require.True(t, msg.IsCutOff)
	require.True(t, msg.CanContinue)
	require.True(t, msg.CanRegenerate)
	require.False(t, msg.Streaming)
	require.Empty(t, msg.Error)
	require.Equal(t, NotifyCompleted, pub.seen()[len(pub.seen())-1])
}

func TestStopGenerationSetsCutOffFlags(t *testing.T) {
	tr := &fakeTransport{chunks: []string{"half an ans"}, convIDs: []string{"conv-9"}}
	pub := &recordingPublisher{}
	s := NewSession(tr, WithPublisher(pub))
	msg := NewPlaceholder()

	done := startBlocking(t, context.Background(), s, tr, msg)
	require.True(t, s.IsStreaming())

	require.True(t, s.StopGeneration(context.Background()))
	require.False(t, s.IsStreaming(), "the token is released immediately")

	r := wait(t, done)
	require.NoError(t, r.err)
	require.Equal(t, OutcomeStopped, r.outcome)

	require.False(t, msg.Streaming)
	require.True(t, msg.IsCutOff)
	require.True(t, msg.CanContinue)
	require.True(t, msg.CanRegenerate)
	require.Equal(t, "half an ans", msg.Content, "partial content survives")
	require.Equal(t, []string{"conv-9"}, tr.cancelCalls())
	require.Contains(t, pub.seen(), NotifyStopped)
}

func TestStopGenerationIgnoresBackendCancelFailure(t *testing.T) {
	tr := &fakeTransport{convIDs: []string{"conv-1"}, cancelErr: errors.New("502 bad gateway")}
	s := NewSession(tr)
	msg := NewPlaceholder()

	done := startBlocking(t, context.Background(), s, tr, msg)
	require.True(t, s.StopGeneration(context.Background()))

	r := wait(t, done)
	require.NoError(t, r.err)
	require.Equal(t, OutcomeStopped, r.outcome)
	require.True(t, msg.CanContinue)
}

func TestStopGenerationWhenIdle(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	require.False(t, s.StopGeneration(context.Background()))
	require.Empty(t, tr.cancelCalls())
}

func TestStopWithoutConversationSkipsBackendCancel(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	done := startBlocking(t, context.Background(), s, tr, NewPlaceholder())

	s.StopGeneration(context.Background())
	wait(t, done)
	require.Empty(t, tr.cancelCalls())
}

func TestCallerCancellationIsAnAbort(t *testing.T) {
	tr := &fakeTransport{chunks: []string{"abc"}, convIDs: []string{"conv-2"}}
	s := NewSession(tr)
	msg := NewPlaceholder()

	ctx, cancel := context.WithCancel(context.Background())
	done := startBlocking(t, ctx, s, tr, msg)
	cancel()

	r := wait(t, done)
	require.NoError(t, r.err, "an abort is not a transport error")
	require.Equal(t, OutcomeAborted, r.outcome)
	require.True(t, msg.IsCutOff)
	require.True(t, msg.CanContinue)
	require.Empty(t, msg.Error)
	require.Empty(t, tr.cancelCalls(), "only StopGeneration notifies the backend")
}

func TestTransportFailureKeepsPartialContent(t *testing.T) {
	boom := errors.New("connection reset")
	tr := &fakeTransport{chunks: []string{"some "}, err: boom}
	pub := &recordingPublisher{}
	s := NewSession(tr, WithPublisher(pub))
	msg := NewPlaceholder()

	outcome, err := s.SendPrompt(context.Background(), PromptRequest{Prompt: "hi"}, msg, Callbacks{})
	require.ErrorIs(t, err, boom)
	require.Equal(t, OutcomeFailed, outcome)
	require.Equal(t, "some ", msg.Content)
	require.False(t, msg.Streaming)
	require.False(t, msg.IsCutOff)
	require.False(t, msg.CanContinue)
	require.Equal(t, "connection reset", msg.Error)
	require.Contains(t, pub.seen(), NotifyFailed)
}

func TestAbortMarkerFromTransport(t *testing.T) {
	tr := &fakeTransport{err: ErrAborted}
	s := NewSession(tr)
	msg := NewPlaceholder()

	outcome, err := s.SendPrompt(context.Background(), PromptRequest{}, msg, Callbacks{})
	require.NoError(t, err)
	require.Equal(t, OutcomeAborted, outcome)
	require.True(t, msg.CanContinue)
}

func TestSecondPromptWhileStreamingIsRejected(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	done := startBlocking(t, context.Background(), s, tr, NewPlaceholder())

	other := NewPlaceholder()
	outcome, err := s.SendPrompt(context.Background(), PromptRequest{}, other, Callbacks{})
	require.ErrorIs(t, err, ErrAlreadyStreaming)
	require.Equal(t, OutcomeFailed, outcome)
	require.False(t, other.Streaming)

	s.StopGeneration(context.Background())
	wait(t, done)
}

func TestConversationIDReportedOnce(t *testing.T) {
	tr := &fakeTransport{convIDs: []string{"conv-1", "conv-1", "conv-2"}}
	s := NewSession(tr)

	var assigned []string
	cb := Callbacks{OnConversationID: func(id string) { assigned = append(assigned, id) }}
	_, err := s.SendPrompt(context.Background(), PromptRequest{}, NewPlaceholder(), cb)
	require.NoError(t, err)
	require.Equal(t, []string{"conv-1"}, assigned)

	// The next prompt reuses the id and does not report it again.
	tr.convIDs = []string{"conv-1"}
	_, err = s.SendPrompt(context.Background(), PromptRequest{}, NewPlaceholder(), cb)
	require.NoError(t, err)
	require.Equal(t, []string{"conv-1"}, assigned)
	require.Equal(t, "conv-1", tr.requests[1].ConversationID)
}

func TestResumeAndReset(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr, WithConversationID("old"))
	_, err := s.SendPrompt(context.Background(), PromptRequest{}, NewPlaceholder(), Callbacks{})
	require.NoError(t, err)
	require.Equal(t, "old", tr.requests[0].ConversationID)

	s.Reset()
	require.Empty(t, s.ConversationID())
}

func TestCleanupAbortsWithoutBackendCancel(t *testing.T) {
	tr := &fakeTransport{convIDs: []string{"conv-3"}}
	s := NewSession(tr)
	msg := NewPlaceholder()
	done := startBlocking(t, context.Background(), s, tr, msg)

	s.Cleanup()
	s.Cleanup()

	r := wait(t, done)
	require.Equal(t, OutcomeAborted, r.outcome)
	require.True(t, msg.IsCutOff)
	require.Empty(t, tr.cancelCalls())
	require.False(t, s.IsStreaming())
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "completed", OutcomeCompleted.String())
	require.Equal(t, "stopped", OutcomeStopped.String())
	require.Equal(t, "aborted", OutcomeAborted.String())
	require.Equal(t, "failed", OutcomeFailed.String())
	require.Equal(t, "outcome(9)", Outcome(9).String())
}
