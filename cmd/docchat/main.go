package main

import (
	"context"
	"os"
	"strings"

	"github.com/braindrive/docchat/internal/logger"
	"github.com/braindrive/docchat/internal/tui/theme"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

const (
	logoText1 = "█▀▄ █▀█ █▀▀ █▀▀ █ █ ▄▀█ ▀█▀"
	logoText2 = "█▄▀ █▄█ █▄▄ █▄▄ █▀█ █▀█  █ "
)

// Version set via ldflags during build
var version = "dev"

func main() {
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your documents from the terminal",
}

// renderLogo creates the logo with gradient colors
func renderLogo() string {
	t := theme.NewCatppuccinMocha()
	line1 := theme.ApplyGradient(logoText1, t.Primary, t.Secondary)
	line2 := theme.ApplyGradient(logoText2, t.Primary, t.Secondary)
	return strings.Join([]string{line1, line2}, "\n")
}

func init() {
	rootCmd.Long = renderLogo() + `

docchat is a terminal client for a BrainDrive chat-with-documents backend.
Replies stream into a full-screen transcript that follows the newest text
until you scroll away, and every conversation emits lifecycle events on an
embedded NATS bus.`

	rootCmd.PersistentFlags().StringVar(&globalFlags.backend, "backend", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.model, "model", "m", "", "Model key provider/server/name or bare model name")
	rootCmd.PersistentFlags().StringVar(&globalFlags.persona, "persona", "", "Persona id or name")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.collection, "collection", "c", "", "Document collection id")
	rootCmd.PersistentFlags().StringVar(&globalFlags.dataDir, "data-dir", "", "Data directory for UI state and the event store")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(setupCmd)
}
