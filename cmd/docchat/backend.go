package main

import (
	"context"
	"fmt"
	"os"

	"github.com/braindrive/docchat/internal/braindrive"
	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/config"
	"github.com/braindrive/docchat/internal/hooks"
	"github.com/braindrive/docchat/internal/logger"
	"github.com/braindrive/docchat/internal/state"
)

var globalFlags struct {
	backend    string
	model      string
	persona    string
	collection string
	dataDir    string
}

// loadConfig loads the layered config, applies command-line overrides,
// validates it and configures the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if globalFlags.backend != "" {
		cfg.BackendURL = globalFlags.backend
	}
	if globalFlags.model != "" {
		cfg.Model = globalFlags.model
	}
	if globalFlags.persona != "" {
		cfg.Persona = globalFlags.persona
	}
	if globalFlags.collection != "" {
		cfg.CollectionID = globalFlags.collection
	}
	if globalFlags.dataDir != "" {
		cfg.DataDir = globalFlags.dataDir
	}
}

func newClient(cfg *config.Config) (*braindrive.Client, error) {
	opts := cfg.ClientOptions()
	opts.Logger = logger.Named("braindrive")
	client, err := braindrive.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return client, nil
}

// resolved is a prompt template plus the labels shown for it.
type resolved struct {
	Request      chat.PromptRequest
	ModelLabel   string
	PersonaLabel string
}

// resolveRequest builds the prompt template. The model comes from config,
// then the last model used in the TUI, then the first model the backend
// offers. A persona is only looked up when one is named.
func resolveRequest(ctx context.Context, cfg *config.Config, client *braindrive.Client, ui *state.UIState) (resolved, error) {
	out := resolved{Request: chat.PromptRequest{
		UseStreaming:     cfg.UseStreaming,
		ConversationType: cfg.ConversationType,
		CollectionID:     cfg.CollectionID,
	}}

	models, err := client.ListModels(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to list models: %w", err)
	}
	key := cfg.Model
	if key == "" && ui != nil {
		key = ui.LastModel
	}
	switch {
	case key != "":
		m, ok := braindrive.FindModel(models, key)
		if !ok {
			return out, fmt.Errorf("unknown model %q (run 'docchat models' to list them)", key)
		}
		out.Request.Model = m
	case len(models) > 0:
		out.Request.Model = models[0]
	default:
		return out, fmt.Errorf("backend offers no models")
	}
	out.ModelLabel = out.Request.Model.Key()

	ref := cfg.Persona
	if ref == "" && ui != nil {
		ref = ui.LastPersona
	}
	if ref != "" {
		personas, err := client.ListPersonas(ctx)
		if err != nil {
			return out, fmt.Errorf("failed to list personas: %w", err)
		}
		p, ok := braindrive.FindPersona(personas, ref)
		if !ok {
			return out, fmt.Errorf("unknown persona %q", ref)
		}
		out.Request.Persona = &p
		out.PersonaLabel = p.Name
	}
	return out, nil
}

// startHooks runs the reply hooks of the working directory, if any, until
// ctx is done.
func startHooks(ctx context.Context, sub hooks.Subscriber) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := hooks.LoadConfig(wd)
	if err != nil || cfg == nil {
		return err
	}
	if _, err := hooks.NewRunner(cfg, wd).Start(ctx, sub); err != nil {
		return fmt.Errorf("failed to start hooks: %w", err)
	}
	logger.Info("Reply hooks enabled from %s", hooks.ConfigFileName)
	return nil
}
