package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/config"
	"github.com/braindrive/docchat/internal/events"
	"github.com/braindrive/docchat/internal/logger"
	"github.com/braindrive/docchat/internal/state"
	"github.com/braindrive/docchat/internal/tui"
	"github.com/spf13/cobra"
)

var chatFlags struct {
	resume       bool
	conversation string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the full-screen chat",
	Long: `Open the full-screen chat transcript.

Replies stream in as they are generated. The transcript follows new text
until you scroll up; press End or click the scroll indicator to follow again.
Esc stops a reply, ctrl+r regenerates the last one and ctrl+e edits the last
prompt in $EDITOR.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatFlags.resume, "resume", "r", false, "Resume the most recent conversation")
	chatCmd.Flags().StringVar(&chatFlags.conversation, "conversation", "", "Resume a conversation by id")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui := state.Load(cfg.DataDir)
	r, err := resolveRequest(ctx, cfg, client, ui)
	if err != nil {
		return err
	}
	ui.LastModel = r.ModelLabel
	if r.Request.Persona != nil {
		ui.LastPersona = r.Request.Persona.ID
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
	if err := startHooks(ctx, bus); err != nil {
		return err
	}

	opts := []chat.SessionOption{
		chat.WithPublisher(bus),
		chat.WithSessionLogger(logger.Named("session")),
		chat.WithProgressInterval(cfg.ProgressInterval),
	}
	if id := conversationToResume(ui); id != "" {
		logger.Info("Resuming conversation %s", id)
		opts = append(opts, chat.WithConversationID(id))
	}
	session := chat.NewSession(client, opts...)
	defer session.Cleanup()

	return tui.Run(ctx, tui.Options{
		Session:      session,
		Bus:          bus,
		Request:      r.Request,
		ModelLabel:   r.ModelLabel,
		PersonaLabel: r.PersonaLabel,
		Scroll:       cfg.ScrollConfig(),
		DataDir:      cfg.DataDir,
		UIState:      ui,
	})
}

func conversationToResume(ui *state.UIState) string {
	if chatFlags.conversation != "" {
		return chatFlags.conversation
	}
	if chatFlags.resume {
		return ui.LastConversation()
	}
	return ""
}

// startBus starts the embedded event bus under <data_dir>/events.
func startBus(ctx context.Context, cfg *config.Config) (*events.Bus, error) {
	bus, err := events.Start(ctx, filepath.Join(cfg.DataDir, "events"))
	if err != nil {
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}
	return bus, nil
}
