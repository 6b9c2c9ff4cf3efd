// Package hooks runs user-configured shell commands when a reply ends.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/braindrive/docchat/internal/logger"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the hooks configuration file.
const ConfigFileName = ".docchat.hooks.yml"

// LoadConfig loads the hooks configuration from dir.
// Returns nil if the config file doesn't exist (hooks are optional).
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hooks config: %w", err)
	}

	logger.Debug("Loaded hooks config from %s (version: %d)", path, cfg.Version)
	return &cfg, nil
}

// Variables describe the reply a hook runs for. They are exported as
// DOCCHAT_CONVERSATION, DOCCHAT_MESSAGE, DOCCHAT_OUTCOME and DOCCHAT_ERROR.
// The {{conversation}}, {{message}}, {{outcome}} and {{error}} placeholders
// expand to quoted references to those variables, never to the values, so
// text from the backend is not parsed by the shell.
type Variables struct {
	Conversation string
	Message      string
	Outcome      string
	Error        string
}

// Execute runs a hook command through sh and returns its output.
// A failing or timed out command is reported in the output, not as an
// error. Only cancellation of ctx is returned as an error.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables) (string, error) {
	if hook == nil || hook.Command == "" {
		return "", nil
	}

	command := expandVariables(hook.Command)
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"DOCCHAT_CONVERSATION="+vars.Conversation,
		"DOCCHAT_MESSAGE="+vars.Message,
		"DOCCHAT_OUTCOME="+vars.Outcome,
		"DOCCHAT_ERROR="+vars.Error,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("Hook command timed out after %ds: %s", timeout, command)
		return fmt.Sprintf("[hook timed out after %ds]\n%s", timeout, stdout.String()), nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[stderr]\n" + stderr.String()
	}
	if err != nil {
		logger.Warn("Hook command failed: %v", err)
		return fmt.Sprintf("[hook failed: %v]\n%s", err, output), nil
	}
	return output, nil
}

var placeholders = strings.NewReplacer(
	"{{conversation}}", `"$DOCCHAT_CONVERSATION"`,
	"{{message}}", `"$DOCCHAT_MESSAGE"`,
	"{{outcome}}", `"$DOCCHAT_OUTCOME"`,
	"{{error}}", `"$DOCCHAT_ERROR"`,
)

func expandVariables(command string) string {
	return placeholders.Replace(command)
}
