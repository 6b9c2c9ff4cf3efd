package braindrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/braindrive/docchat/internal/chat"
)

const (
	chatPath   = "/api/v1/ai/providers/chat"
	cancelPath = "/api/v1/ai/providers/cancel"

	defaultSettingsID = "ollama_servers_settings"
	doneMarker        = "[DONE]"
	finishLength      = "length"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Provider         string            `json:"provider"`
	SettingsID       string            `json:"settings_id"`
	ServerID         string            `json:"server_id"`
	Model            string            `json:"model"`
	Messages         []chatMessage     `json:"messages"`
	Params           map[string]any    `json:"params,omitempty"`
	Stream           bool              `json:"stream"`
	UserID           string            `json:"user_id,omitempty"`
	ConversationID   string            `json:"conversation_id,omitempty"`
	ConversationType string            `json:"conversation_type,omitempty"`
	CollectionID     string            `json:"collection_id,omitempty"`
	PageContext      *chat.PageContext `json:"page_context,omitempty"`
	PersonaID        string            `json:"persona_id,omitempty"`
}

type chatChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// chatChunk is one streamed event, or the whole body of a non-streaming reply.
type chatChunk struct {
	ConversationID string          `json:"conversation_id"`
	Choices        []chatChoice    `json:"choices"`
	Text           string          `json:"text"`
	Error          json.RawMessage `json:"error"`
}

func (c chatChunk) content() string {
	if len(c.Choices) > 0 {
		if s := c.Choices[0].Delta.Content; s != "" {
			return s
		}
		if s := c.Choices[0].Message.Content; s != "" {
			return s
		}
	}
	return c.Text
}

// errorText returns the in-band error, which is either a string or {"message": ...}.
func (c chatChunk) errorText() string {
	if len(c.Error) == 0 || string(c.Error) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(c.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(c.Error, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(c.Error)
}

func (c *Client) buildChatRequest(req chat.PromptRequest) chatRequest {
	body := chatRequest{
		Provider:         req.Model.Provider,
		SettingsID:       defaultSettingsID,
		ServerID:         req.Model.ServerID,
		Model:            req.Model.Name,
		Stream:           req.UseStreaming,
		UserID:           c.userID,
		ConversationID:   req.ConversationID,
		ConversationType: req.ConversationType,
		CollectionID:     req.CollectionID,
		PageContext:      req.PageContext,
	}
	if req.Model.Provider == "" {
		body.Provider = "ollama"
	}
	if p := req.Persona; p != nil {
		body.PersonaID = p.ID
		if p.SystemPrompt != "" {
			body.Messages = append(body.Messages, chatMessage{Role: "system", Content: p.SystemPrompt})
		}
		if p.Temperature != nil {
			body.Params = map[string]any{"temperature": *p.Temperature}
		}
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	return body
}

// SendPrompt implements chat.Transport.
func (c *Client) SendPrompt(ctx context.Context, req chat.PromptRequest, onChunk func(string), onConversationID func(string)) error {
	accept := "application/json"
	if req.UseStreaming {
		accept = "text/event-stream"
	}
	resp, err := c.do(ctx, http.MethodPost, chatPath, c.buildChatRequest(req), accept)
	if err != nil {
		return c.abortOr(ctx, err)
	}
	defer resp.Body.Close()

	if !req.UseStreaming || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return c.readWhole(ctx, resp.Body, onChunk, onConversationID)
	}
	return c.readStream(ctx, resp.Body, onChunk, onConversationID)
}

func (c *Client) readStream(ctx context.Context, body io.Reader, onChunk func(string), onConversationID func(string)) error {
	reader := newSSEReader(body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.abortOr(ctx, fmt.Errorf("read stream: %w", err))
		}
		if strings.TrimSpace(string(data)) == doneMarker {
			return nil
		}

		var chunk chatChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			c.log.Debug("skipping malformed event: %v", err)
			continue
		}
		if chunk.ConversationID != "" {
			onConversationID(chunk.ConversationID)
		}
		if msg := chunk.errorText(); msg != "" {
			return fmt.Errorf("stream error: %s", msg)
		}
		if text := chunk.content(); text != "" {
			onChunk(text)
		}
		if reason := chunk.finishReason(); reason != "" {
			return finishError(reason)
		}
	}
}

func (c *Client) readWhole(ctx context.Context, body io.Reader, onChunk func(string), onConversationID func(string)) error {
	var chunk chatChunk
	if err := json.NewDecoder(body).Decode(&chunk); err != nil {
		return c.abortOr(ctx, fmt.Errorf("decode reply: %w", err))
	}
	if chunk.ConversationID != "" {
		onConversationID(chunk.ConversationID)
	}
	if msg := chunk.errorText(); msg != "" {
		return fmt.Errorf("backend error: %s", msg)
	}
	if text := chunk.content(); text != "" {
		onChunk(text)
	}
	return finishError(chunk.finishReason())
}

func (c chatChunk) finishReason() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].FinishReason
}

// finishError maps a finish reason to the transport result. A reply cut at
// the token limit is still a reply, but one that can be continued.
func finishError(reason string) error {
	if reason == finishLength {
		return chat.ErrTruncated
	}
	return nil
}

// abortOr reports a cancelled context as an abort instead of err.
func (c *Client) abortOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", chat.ErrAborted, ctxErr)
	}
	return err
}

// CancelGeneration implements chat.Transport. It asks the backend to stop
// generating for conversationID.
func (c *Client) CancelGeneration(ctx context.Context, conversationID string) error {
	resp, err := c.do(ctx, http.MethodPost, cancelPath, map[string]string{"conversation_id": conversationID}, "application/json")
	if err != nil {
		return fmt.Errorf("cancel generation: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
