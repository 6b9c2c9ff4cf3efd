package main

import (
	"fmt"
	"os"

	"github.com/braindrive/docchat/internal/config"
	"github.com/spf13/cobra"
)

var setupFlags struct {
	project bool
	force   bool
	token   string
	userID  string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create docchat configuration file",
	Long: `Create a docchat configuration file with sensible defaults.

By default, creates a global config at ~/.config/docchat/docchat.yml.
Use --project to create a project-local config in the current directory.
Values given with --backend, --model, --persona, --collection and
--data-dir are written into the file.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
	setupCmd.Flags().StringVar(&setupFlags.token, "token", "", "API token sent as a bearer token")
	setupCmd.Flags().StringVar(&setupFlags.userID, "user", "", "User id sent with every prompt")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	if !setupFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := config.Default()
	applyFlags(cfg)
	cfg.APIToken = setupFlags.token
	cfg.UserID = setupFlags.userID
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var err error
	if setupFlags.project {
		err = config.WriteProject(cfg)
	} else {
		err = config.WriteGlobal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config written to: %s\n\n", targetPath)
	fmt.Fprintln(out, "Run 'docchat models' to pick a model, then 'docchat chat' to get started.")
	return nil
}

// fileExists checks if a file exists (helper for setup command).
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
