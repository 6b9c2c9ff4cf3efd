package testfixtures

import (
	"fmt"
	"strings"
	"time"

	"github.com/braindrive/docchat/internal/chat"
)

// Fixed test values for stable rendering
const (
	FixedConversation = "conv-1"
	FixedModel        = "ollama/local/llama3"
)

var (
	FixedTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
)

// UserMessage returns a user message with a fixed timestamp.
func UserMessage(id, content string) *chat.Message {
	return &chat.Message{
		ID:      id,
		Sender:  chat.SenderUser,
		Content: content,
		Created: FixedTime,
	}
}

// Reply returns a finished AI reply with a fixed timestamp.
func Reply(id, content string) *chat.Message {
	return &chat.Message{
		ID:            id,
		Sender:        chat.SenderAI,
		Content:       content,
		Created:       FixedTime,
		CanRegenerate: true,
	}
}

// StreamingReply returns an AI reply that is still streaming.
func StreamingReply(id, content string) *chat.Message {
	return &chat.Message{
		ID:        id,
		Sender:    chat.SenderAI,
		Content:   content,
		Created:   FixedTime,
		Streaming: true,
	}
}

// CutOffReply returns a stopped AI reply that can be continued.
func CutOffReply(id, content string) *chat.Message {
	return &chat.Message{
		ID:            id,
		Sender:        chat.SenderAI,
		Content:       content,
		Created:       FixedTime,
		IsCutOff:      true,
		CanContinue:   true,
		CanRegenerate: true,
	}
}

// Conversation returns n question and answer pairs, each answer lines tall.
func Conversation(n, lines int) []*chat.Message {
	var out []*chat.Message
	for i := range n {
		out = append(out, UserMessage(id("u", i), "question"))
		body := strings.TrimSuffix(strings.Repeat("line\n", lines), "\n")
		out = append(out, Reply(id("a", i), body))
	}
	return out
}

func id(prefix string, i int) string {
	return fmt.Sprintf("%s%d", prefix, i)
}
