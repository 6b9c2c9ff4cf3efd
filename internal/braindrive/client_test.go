package braindrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/braindrive/docchat/internal/chat"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, breaker BreakerConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/", Token: "secret", UserID: "u-1", Breaker: breaker})
	require.NoError(t, err)
	return c
}

func sseHandler(t *testing.T, events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
	}
}

func collect(t *testing.T, c *Client, ctx context.Context, req chat.PromptRequest) (string, []string, error) {
	t.Helper()
	var sb strings.Builder
	var ids []string
	err := c.SendPrompt(ctx, req, func(s string) { sb.WriteString(s) }, func(id string) { ids = append(ids, id) })
	return sb.String(), ids, err
}

func TestNewValidatesURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "localhost:8005"})
	require.ErrorContains(t, err, "http://")

	c, err := New(Options{BaseURL: " http://localhost:8005/ "})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8005", c.baseURL)
}

func TestSendPromptStreaming(t *testing.T) {
	var got chatRequest
	h := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		sseHandler(t,
			`{"conversation_id":"conv-1","choices":[{"delta":{"content":"Hel"}}]}`,
			`{"conversation_id":"conv-1","choices":[{"delta":{"content":"lo"}}]}`,
			`not json`,
			`[DONE]`,
			`{"choices":[{"delta":{"content":"never"}}]}`,
		)(w, r)
	}
	c := newTestClient(t, http.HandlerFunc(h), BreakerConfig{})

	temp := 0.2
	text, ids, err := collect(t, c, context.Background(), chat.PromptRequest{
		Prompt:           "Summarize",
		Model:            chat.Model{Provider: "ollama", ServerID: "srv", Name: "llama3"},
		UseStreaming:     true,
		ConversationType: "chat-with-documents",
		CollectionID:     "col-7",
		Persona:          &chat.Persona{ID: "p-1", SystemPrompt: "Be brief.", Temperature: &temp},
	})
	require.NoError(t, err)
	require.Equal(t, "Hello", text)
	require.Equal(t, []string{"conv-1", "conv-1"}, ids)

	require.Equal(t, "llama3", got.Model)
	require.Equal(t, "srv", got.ServerID)
	require.True(t, got.Stream)
	require.Equal(t, "u-1", got.UserID)
	require.Equal(t, "col-7", got.CollectionID)
	require.Equal(t, "p-1", got.PersonaID)
	require.Equal(t, []chatMessage{{Role: "system", Content: "Be brief."}, {Role: "user", Content: "Summarize"}}, got.Messages)
	require.InDelta(t, 0.2, got.Params["temperature"], 1e-9)
}

func TestSendPromptNonStreaming(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"conversation_id":"conv-2","choices":[{"message":{"content":"Whole answer"}}]}`)
	}
	c := newTestClient(t, http.HandlerFunc(h), BreakerConfig{})

	text, ids, err := collect(t, c, context.Background(), chat.PromptRequest{Prompt: "q"})
	require.NoError(t, err)
	require.Equal(t, "Whole answer", text)
	require.Equal(t, []string{"conv-2"}, ids)
}

func TestSendPromptInBandError(t *testing.T) {
	c := newTestClient(t, sseHandler(t,
		`{"choices":[{"delta":{"content":"par"}}]}`,
		`{"error":{"message":"model crashed"}}`,
	), BreakerConfig{})

	text, _, err := collect(t, c, context.Background(), chat.PromptRequest{UseStreaming: true})
	require.ErrorContains(t, err, "model crashed")
	require.Equal(t, "par", text)
	require.False(t, chat.IsAbort(err))
}

func TestSendPromptLengthLimitIsTruncation(t *testing.T) {
	c := newTestClient(t, sseHandler(t,
		`{"choices":[{"delta":{"content":"long ans"}}]}`,
		`{"choices":[{"delta":{"content":"wer"},"finish_reason":"length"}]}`,
		`{"choices":[{"delta":{"content":"never"}}]}`,
	), BreakerConfig{})

	text, _, err := collect(t, c, context.Background(), chat.PromptRequest{UseStreaming: true})
	require.ErrorIs(t, err, chat.ErrTruncated)
	require.Equal(t, "long answer", text)
	require.False(t, chat.IsAbort(err))

	c = newTestClient(t, sseHandler(t,
		`{"choices":[{"delta":{"content":"short"},"finish_reason":"stop"}]}`,
	), BreakerConfig{})
	_, _, err = collect(t, c, context.Background(), chat.PromptRequest{UseStreaming: true})
	require.NoError(t, err)
}

func TestSendPromptNonStreamingLengthLimit(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Half"},"finish_reason":"length"}]}`)
	}
	c := newTestClient(t, http.HandlerFunc(h), BreakerConfig{})

	text, _, err := collect(t, c, context.Background(), chat.PromptRequest{Prompt: "q"})
	require.ErrorIs(t, err, chat.ErrTruncated)
	require.Equal(t, "Half", text)
}

func TestSendPromptAPIError(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"no such model"}`, http.StatusNotFound)
	}
	c := newTestClient(t, http.HandlerFunc(h), BreakerConfig{})

	_, _, err := collect(t, c, context.Background(), chat.PromptRequest{UseStreaming: true})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Contains(t, apiErr.Body, "no such model")
	require.False(t, apiErr.Temporary())
}

func TestSendPromptAbortIsDistinguishable(t *testing.T) {
	release := make(chan struct{})
	h := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}
	c := newTestClient(t, http.HandlerFunc(h), BreakerConfig{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	var got strings.Builder
	err := c.SendPrompt(ctx, chat.PromptRequest{UseStreaming: true}, func(s string) {
		got.WriteString(s)
		cancel()
	}, func(string) {})

	require.Error(t, err)
	require.True(t, chat.IsAbort(err), "got %v", err)
	require.Equal(t, "first", got.String())
}

func TestCancelGeneration(t *testing.T) {
	var body map[string]string
	h := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, cancelPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}
	c := newTestClient(t, http.HandlerFunc(h), BreakerConfig{})

	require.NoError(t, c.CancelGeneration(context.Background(), "conv-1"))
	require.Equal(t, "conv-1", body["conversation_id"])
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	h := func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}
	c := newTestClient(t, http.HandlerFunc(h), BreakerConfig{MaxFailures: 2, Timeout: time.Minute})

	for range 2 {
		_, err := c.ListModels(context.Background())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}
	require.Equal(t, gobreaker.StateOpen, c.BreakerState())

	_, err := c.ListModels(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, int32(2), hits.Load(), "an open circuit fails fast")
}

func TestBreakerIgnoresClientErrorsAndAborts(t *testing.T) {
	require.True(t, isSuccessful(nil))
	require.True(t, isSuccessful(&APIError{Status: http.StatusBadRequest}))
	require.True(t, isSuccessful(fmt.Errorf("wrapped: %w", context.Canceled)))
	require.True(t, isSuccessful(chat.ErrAborted))
	require.False(t, isSuccessful(&APIError{Status: http.StatusServiceUnavailable}))
	require.False(t, isSuccessful(&APIError{Status: http.StatusTooManyRequests}))
	require.False(t, isSuccessful(errors.New("dial tcp: connection refused")))
}

func TestAPIErrorMessage(t *testing.T) {
	require.Equal(t, "backend returned 500 Internal Server Error", (&APIError{Status: 500}).Error())
	require.Equal(t, "backend returned 400: bad", (&APIError{Status: 400, Body: "bad"}).Error())
}
