package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/events"
	"github.com/stretchr/testify/require"
)

func TestMockTransport_Script(t *testing.T) {
	tr := NewMockTransport("a", "b")
	var got string
	var conv string

	err := tr.SendPrompt(context.Background(), chat.PromptRequest{Prompt: "q"},
		func(c string) { got += c },
		func(id string) { conv = id })

	require.NoError(t, err)
	require.Equal(t, "ab", got)
	require.Equal(t, FixedConversation, conv)
	require.Len(t, tr.Prompts(), 1)
	Wait(t, tr.Started())
}

func TestMockTransport_HoldUntilCancel(t *testing.T) {
	tr := NewMockTransport("a")
	tr.Hold = true
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- tr.SendPrompt(ctx, chat.PromptRequest{}, func(string) {}, func(string) {})
	}()
	Wait(t, tr.Started())
	cancel()
	require.True(t, errors.Is(Wait[error](t, done), context.Canceled))
}

func TestMockBus_DeliversNotices(t *testing.T) {
	b := NewMockBus()
	ch, err := b.Subscribe(context.Background(), "*")
	require.NoError(t, err)

	require.NoError(t, b.Notify(context.Background(), "c", "hello"))
	ev := Wait(t, ch)
	require.Equal(t, events.TypeNotice, ev.Type)
	require.Equal(t, "hello", ev.Text)
	require.Len(t, b.Notices(), 1)
}
