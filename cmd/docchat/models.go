package main

import (
	"encoding/json"
	"fmt"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/tui/theme"
	"github.com/spf13/cobra"
)

var modelsFlags struct {
	json     bool
	personas bool
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the backend offers",
	Long: `List the models the backend offers, marking the configured one.

Use the KEY column with --model or the model config key.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsFlags.json, "json", false, "Print JSON instead of a table")
	modelsCmd.Flags().BoolVar(&modelsFlags.personas, "personas", false, "List personas instead of models")
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if modelsFlags.personas {
		personas, err := client.ListPersonas(ctx)
		if err != nil {
			return fmt.Errorf("failed to list personas: %w", err)
		}
		if modelsFlags.json {
			return writeJSON(cmd, personas)
		}
		rows := make([][]string, 0, len(personas))
		for _, p := range personas {
			rows = append(rows, []string{marker(p.ID == cfg.Persona || p.Name == cfg.Persona), p.ID, p.Name, p.Description})
		}
		_, err = lipgloss.Fprintln(out, renderTable([]string{"", "ID", "NAME", "DESCRIPTION"}, rows))
		return err
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if modelsFlags.json {
		return writeJSON(cmd, models)
	}
	if len(models) == 0 {
		fmt.Fprintln(out, "The backend offers no models.")
		return nil
	}
	_, err = lipgloss.Fprintln(out, renderTable([]string{"", "KEY", "PROVIDER", "SERVER"}, modelRows(models, cfg.Model)))
	return err
}

func modelRows(models []chat.Model, current string) [][]string {
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		server := m.ServerName
		if server == "" {
			server = m.ServerID
		}
		rows = append(rows, []string{marker(m.Key() == current || m.Name == current), m.Key(), m.Provider, server})
	}
	return rows
}

func marker(selected bool) string {
	if selected {
		return "*"
	}
	return ""
}

func renderTable(headers []string, rows [][]string) string {
	t := theme.Current()
	header := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Primary)).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgBase)).Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted))).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
