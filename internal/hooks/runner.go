package hooks

import (
	"context"

	"github.com/braindrive/docchat/internal/events"
	"github.com/braindrive/docchat/internal/logger"
)

// Subscriber delivers bus events.
type Subscriber interface {
	Subscribe(ctx context.Context, conversation string) (<-chan events.Event, error)
}

// Runner runs the configured hooks for every reply that ends.
type Runner struct {
	cfg     *Config
	workDir string
	log     *logger.Logger
	// ran observes each hook run. Tests only.
	ran func(hook *HookConfig, vars Variables, output string)
}

// NewRunner creates a Runner that executes hooks in workDir.
func NewRunner(cfg *Config, workDir string) *Runner {
	return &Runner{cfg: cfg, workDir: workDir, log: logger.Named("hooks")}
}

// Start subscribes to every conversation on sub and runs hooks until ctx
// is done. The returned channel closes when the runner has stopped.
func (r *Runner) Start(ctx context.Context, sub Subscriber) (<-chan struct{}, error) {
	ch, err := sub.Subscribe(ctx, "*")
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, ch)
	}()
	return done, nil
}

// Run consumes events until ch closes or ctx is done. Hooks run one at a
// time in event order.
func (r *Runner) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := r.handle(ctx, ev); err != nil {
				return
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev events.Event) error {
	hooks, outcome := r.hooksFor(ev.Type)
	if len(hooks) == 0 {
		return nil
	}
	vars := Variables{
		Conversation: ev.Conversation,
		Message:      ev.MessageID,
		Outcome:      outcome,
		Error:        ev.Error,
	}
	for _, h := range hooks {
		out, err := Execute(ctx, h, r.workDir, vars)
		if err != nil {
			return err
		}
		r.log.Debug("%s hook for %s: %q", outcome, ev.Conversation, out)
		if r.ran != nil {
			r.ran(h, vars, out)
		}
	}
	return nil
}

func (r *Runner) hooksFor(eventType string) ([]*HookConfig, string) {
	if r.cfg == nil {
		return nil, ""
	}
	switch eventType {
	case events.TypeCompleted:
		return r.cfg.Hooks.OnComplete, "completed"
	case events.TypeStopped:
		return r.cfg.Hooks.OnStop, "stopped"
	case events.TypeFailed:
		return r.cfg.Hooks.OnFail, "failed"
	}
	return nil, ""
}
