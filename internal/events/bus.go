// Package events carries chat lifecycle notifications over an embedded NATS bus.
//
// Subjects have the form docchat.<conversation>.<type>, where the conversation
// token is the slug of the conversation id. Recent events are kept in a
// memory-backed JetStream stream so late subscribers can catch up.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/logger"
	"github.com/gosimple/slug"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	subjectRoot = "docchat"
	streamName  = "docchat_events"

	// pendingToken stands in for a conversation the backend has not named yet.
	pendingToken = "pending"

	historyMaxMsgs = 1000
	historyMaxAge  = time.Hour
)

// Event types.
const (
	TypeStarted   = string(chat.NotifyStarted)
	TypeProgress  = string(chat.NotifyProgress)
	TypeCompleted = string(chat.NotifyCompleted)
	TypeStopped   = string(chat.NotifyStopped)
	TypeFailed    = string(chat.NotifyFailed)
	TypeNotice    = string(chat.NotifyNotice)
)

// Event is the JSON payload published on the bus.
type Event struct {
	Conversation string    `json:"conversation"`
	Type         string    `json:"type"`
	MessageID    string    `json:"message_id,omitempty"`
	Text         string    `json:"text,omitempty"`
	Bytes        int       `json:"bytes,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConversationToken returns the subject token for a conversation id.
func ConversationToken(conversation string) string {
	if t := slug.Make(conversation); t != "" {
		return t
	}
	return pendingToken
}

// SubjectFor returns the subject of one event type in a conversation.
func SubjectFor(conversation, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", subjectRoot, ConversationToken(conversation), eventType)
}

// SubjectForConversation returns the wildcard for all events of a
// conversation, or of every conversation when it is "*".
func SubjectForConversation(conversation string) string {
	if conversation == "*" {
		return subjectRoot + ".>"
	}
	return fmt.Sprintf("%s.%s.>", subjectRoot, ConversationToken(conversation))
}

// Bus publishes and delivers events. It implements chat.Publisher.
type Bus struct {
	ns     *server.Server
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	log    *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ chat.Publisher = (*Bus)(nil)

// Start runs an embedded server and connects the bus to it.
func Start(ctx context.Context, storeDir string) (*Bus, error) {
	log := logger.Named("events")

	ns, err := startServer(storeDir, log)
	if err != nil {
		return nil, fmt.Errorf("start nats: %w", err)
	}
	nc, err := connectInProcess(ns)
	if err != nil {
		_ = shutdown(nil, ns, log)
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := &Bus{ns: ns, nc: nc, log: log}
	if err := b.setupStream(ctx); err != nil {
		_ = shutdown(nc, ns, log)
		return nil, err
	}
	return b, nil
}

func (b *Bus) setupStream(ctx context.Context) error {
	js, err := jetstream.New(b.nc)
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectRoot + ".>"},
		Storage:  jetstream.MemoryStorage,
		MaxMsgs:  historyMaxMsgs,
		MaxAge:   historyMaxAge,
		Discard:  jetstream.DiscardOld,
	})
	if err != nil {
		return fmt.Errorf("create event stream: %w", err)
	}
	b.js = js
	b.stream = stream
	return nil
}

// Emit publishes ev and waits for the stream to store it.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	if ev.Type == "" {
		return errors.New("event type is required")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := b.js.Publish(ctx, SubjectFor(ev.Conversation, ev.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Publish implements chat.Publisher.
func (b *Bus) Publish(ctx context.Context, n chat.Notification) error {
	return b.Emit(ctx, Event{
		Conversation: n.ConversationID,
		Type:         string(n.Kind),
		MessageID:    n.MessageID,
		Text:         n.Text,
		Bytes:        n.Bytes,
		Error:        n.Err,
	})
}

// Notify publishes a user-facing notice.
func (b *Bus) Notify(ctx context.Context, conversation, text string) error {
	return b.Emit(ctx, Event{Conversation: conversation, Type: TypeNotice, Text: text})
}

// Subscribe delivers live events of a conversation ("*" for all) until ctx
// is done, then closes the channel. Events are dropped when the consumer
// falls behind.
func (b *Bus) Subscribe(ctx context.Context, conversation string) (<-chan Event, error) {
	ch := make(chan Event, 256)
	var mu sync.Mutex
	closed := false

	sub, err := b.nc.Subscribe(SubjectForConversation(conversation), func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			b.log.Debug("subscriber full, dropping %s event", ev.Type)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch, nil
}

// History returns up to limit stored events of a conversation ("*" for
// all), oldest first.
func (b *Bus) History(ctx context.Context, conversation string, limit int) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	cons, err := b.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectForConversation(conversation)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("history consumer: %w", err)
	}

	batch, err := cons.FetchNoWait(limit)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	var out []Event
	for msg := range batch.Messages() {
		var ev Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return out, fmt.Errorf("fetch history: %w", err)
	}
	return out, nil
}

// Close drains the connection and stops the server. It is idempotent.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = shutdown(b.nc, b.ns, b.log)
	})
	return b.closeErr
}
