package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscriptPromptLifecycle(t *testing.T) {
	var tr Transcript
	user := NewUserMessage("What is in the report?")
	reply := NewPlaceholder()

	require.True(t, tr.Apply(PromptSent{User: user, Reply: reply}))
	require.Len(t, tr.Messages, 2)
	require.True(t, tr.Streaming())

	require.True(t, tr.Apply(ChunkReceived{MessageID: reply.ID, Text: "It covers "}))
	require.True(t, tr.Apply(ChunkReceived{MessageID: reply.ID, Text: "Q3."}))
	require.False(t, tr.Apply(ChunkReceived{MessageID: "missing", Text: "x"}))
	require.Equal(t, "It covers Q3.", tr.Last().Content)

	require.True(t, tr.Apply(ConversationAssigned{ID: "conv-1"}))
	require.False(t, tr.Apply(ConversationAssigned{ID: "conv-1"}))

	final := *reply
	final.Content = "It covers Q3."
	final.finishCompleted()
	require.True(t, tr.Apply(StreamFinished{Final: final, Outcome: OutcomeCompleted}))
	require.False(t, tr.Streaming())
	require.True(t, tr.Last().CanRegenerate)

	require.False(t, tr.Apply(ChunkReceived{MessageID: reply.ID, Text: "late"}), "finalized messages never grow")
	require.Equal(t, user, tr.LastUser())
}

func TestTranscriptFinishReplacesWithCopy(t *testing.T) {
	var tr Transcript
	reply := NewPlaceholder()
	tr.Apply(PromptSent{Reply: reply})

	final := *reply
	final.Content = "partial"
	final.finishStopped()
	tr.Apply(StreamFinished{Final: final, Outcome: OutcomeStopped})

	final.Content = "mutated after the fact"
	require.Equal(t, "partial", tr.Last().Content)
	require.True(t, tr.Last().IsCutOff)
}

func TestTranscriptFailedReplyKeepsError(t *testing.T) {
	var tr Transcript
	reply := NewPlaceholder()
	tr.Apply(PromptSent{User: NewUserMessage("q"), Reply: reply})

	final := *reply
	final.finishFailed(errors.New("boom"))
	tr.Apply(StreamFinished{Final: final, Outcome: OutcomeFailed, Err: errors.New("boom")})

	require.Equal(t, "boom", tr.Last().Error)
	require.False(t, tr.Last().Streaming)
}

func TestTranscriptContinue(t *testing.T) {
	var tr Transcript
	cut := NewPlaceholder()
	cut.finishStopped()
	tr.Messages = []*Message{NewUserMessage("q"), cut}

	next := NewPlaceholder()
	require.True(t, tr.Apply(ContinueStarted{From: cut.ID, Reply: next}))
	require.False(t, cut.CanContinue)
	require.True(t, cut.IsCutOff)
	require.Len(t, tr.Messages, 3)
	require.True(t, tr.Last().Streaming)
}

func TestTranscriptRegenerateReplacesLastReply(t *testing.T) {
	var tr Transcript
	old := NewPlaceholder()
	old.Content = "first try"
	old.finishCompleted()
	tr.Messages = []*Message{NewUserMessage("q"), old}

	fresh := NewPlaceholder()
	require.True(t, tr.Apply(RegenerateStarted{Reply: fresh}))
	require.Len(t, tr.Messages, 2)
	require.Equal(t, fresh.ID, tr.Last().ID)
	require.True(t, tr.Last().Streaming)

	// With a user message last there is nothing to replace.
	tr.Messages = append(tr.Messages, NewUserMessage("again"))
	require.True(t, tr.Apply(RegenerateStarted{Reply: NewPlaceholder()}))
	require.Len(t, tr.Messages, 4)
}

func TestTranscriptEditKeepsFirstOriginal(t *testing.T) {
	var tr Transcript
	user := NewUserMessage("first")
	tr.Apply(PromptSent{User: user})

	require.True(t, tr.Apply(MessageEdited{MessageID: user.ID, Content: "second"}))
	require.True(t, tr.Apply(MessageEdited{MessageID: user.ID, Content: "third"}))
	require.False(t, tr.Apply(MessageEdited{MessageID: user.ID, Content: "third"}))

	require.True(t, user.IsEdited)
	require.Equal(t, "first", user.OriginalContent)
	require.Equal(t, "third", user.Content)
}

func TestTranscriptEditIgnoresReplies(t *testing.T) {
	var tr Transcript
	reply := NewPlaceholder()
	tr.Apply(PromptSent{Reply: reply})
	require.False(t, tr.Apply(MessageEdited{MessageID: reply.ID, Content: "nope"}))
}

func TestTranscriptClear(t *testing.T) {
	var tr Transcript
	require.False(t, tr.Apply(ConversationCleared{}))

	tr.Apply(PromptSent{User: NewUserMessage("q")})
	tr.Apply(ConversationAssigned{ID: "c"})
	require.True(t, tr.Apply(ConversationCleared{}))
	require.Empty(t, tr.Messages)
	require.Empty(t, tr.ConversationID)
}

func TestTranscriptTracked(t *testing.T) {
	var tr Transcript
	tr.Apply(PromptSent{User: NewUserMessage("q"), Reply: NewPlaceholder()})

	tracked := tr.Tracked()
	require.Len(t, tracked, 2)
	require.False(t, tracked[0].IsStreaming())
	require.True(t, tracked[1].IsStreaming())
}

func TestModelKey(t *testing.T) {
	require.Equal(t, "llama3", Model{Name: "llama3"}.Key())
	require.Equal(t, "ollama/srv-1/llama3", Model{Provider: "ollama", ServerID: "srv-1", Name: "llama3"}.Key())
}
