package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/events"
	"github.com/braindrive/docchat/internal/logger"
	"github.com/braindrive/docchat/internal/state"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
)

const (
	cutOffMarker = "[cut off]"
	stopTimeout  = 5 * time.Second
	historyLimit = 100
)

var askFlags struct {
	resume       bool
	conversation string
	events       bool
}

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Ask one question and stream the reply to stdout",
	Long: `Send a single prompt and stream the reply to stdout.

The prompt is taken from the arguments, or from stdin when no arguments are
given. Ctrl-C stops generation on the backend and keeps the partial reply.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askFlags.resume, "resume", "r", false, "Continue the most recent conversation")
	askCmd.Flags().StringVar(&askFlags.conversation, "conversation", "", "Continue a conversation by id")
	askCmd.Flags().BoolVar(&askFlags.events, "events", false, "Print the conversation's lifecycle events after the reply")
}

func runAsk(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ui := state.Load(cfg.DataDir)
	r, err := resolveRequest(ctx, cfg, client, ui)
	if err != nil {
		return err
	}

	bus, err := startBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn("Failed to close event bus: %v", err)
		}
	}()

	opts := []chat.SessionOption{
		chat.WithPublisher(bus),
		chat.WithSessionLogger(logger.Named("session")),
		chat.WithProgressInterval(cfg.ProgressInterval),
	}
	switch {
	case askFlags.conversation != "":
		opts = append(opts, chat.WithConversationID(askFlags.conversation))
	case askFlags.resume:
		if id := ui.LastConversation(); id != "" {
			opts = append(opts, chat.WithConversationID(id))
		}
	}
	session := chat.NewSession(client, opts...)
	defer session.Cleanup()

	done := make(chan struct{})
	defer close(done)
	stopOnSignal(ctx, session, done)

	out := cmd.OutOrStdout()
	req := r.Request
	req.Prompt = prompt
	reply := chat.NewPlaceholder()
	outcome, err := session.SendPrompt(ctx, req, reply, chat.Callbacks{
		OnChunk: func(text string) { _, _ = io.WriteString(out, text) },
	})
	if err != nil {
		return err
	}

	switch outcome {
	case chat.OutcomeStopped, chat.OutcomeAborted:
		fmt.Fprintf(out, "\n%s\n", cutOffMarker)
	default:
		fmt.Fprintln(out)
	}

	id := session.ConversationID()
	if id != "" {
		ui.LastModel = r.ModelLabel
		ui.Remember(id, ansi.Truncate(firstLine(prompt), 60, "..."), time.Now())
		if err := state.Save(cfg.DataDir, ui); err != nil {
			logger.Warn("Failed to save UI state: %v", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "conversation: %s\n", id)
	}

	if askFlags.events {
		return printHistory(ctx, out, bus, id)
	}
	return nil
}

// stopOnSignal stops generation on the first interrupt. The prompt context
// stays live so the backend is told to stop and the partial reply is kept.
func stopOnSignal(ctx context.Context, session *chat.Session, done <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
			defer cancel()
			if !session.StopGeneration(stopCtx) {
				logger.Debug("Interrupt with no live reply")
			}
		case <-done:
		}
	}()
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	var prompt string
	if len(args) > 0 {
		prompt = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		prompt = string(data)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	return prompt, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func printHistory(ctx context.Context, w io.Writer, bus *events.Bus, conversation string) error {
	if conversation == "" {
		conversation = "*"
	}
	evs, err := bus.History(ctx, conversation, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read event history: %w", err)
	}
	fmt.Fprintln(w)
	for _, ev := range evs {
		fmt.Fprintln(w, formatEvent(ev))
	}
	return nil
}

func formatEvent(ev events.Event) string {
	line := fmt.Sprintf("%s  %-16s", ev.Timestamp.Format("15:04:05.000"), ev.Type)
	switch {
	case ev.Error != "":
		line += "  " + ev.Error
	case ev.Text != "":
		line += "  " + ev.Text
	case ev.Bytes > 0:
		line += fmt.Sprintf("  %d bytes", ev.Bytes)
	}
	return line
}
