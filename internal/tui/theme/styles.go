package theme

import "charm.land/lipgloss/v2"

// Styles contains the pre-built lipgloss styles for the TUI.
type Styles struct {
	AppTitle     lipgloss.Style
	StatusBar    lipgloss.Style
	StatusInfo   lipgloss.Style
	StatusSep    lipgloss.Style
	StatusMuted  lipgloss.Style
	StatusOnline lipgloss.Style
	StatusError  lipgloss.Style

	UserLabel  lipgloss.Style
	AILabel    lipgloss.Style
	Timestamp  lipgloss.Style
	UserBody   lipgloss.Style
	AIBody     lipgloss.Style
	EditedTag  lipgloss.Style
	CutOffTag  lipgloss.Style
	ErrorText  lipgloss.Style
	ActionHint lipgloss.Style
	DiffInsert lipgloss.Style
	DiffDelete lipgloss.Style
	DiffHunk   lipgloss.Style

	Indicator     lipgloss.Style
	Toast         lipgloss.Style
	Composer      lipgloss.Style
	HintKey       lipgloss.Style
	HintDesc      lipgloss.Style
	HintSeparator lipgloss.Style
	Spinner       lipgloss.Style
}

// buildStyles constructs the pre-built styles from theme colors.
func (t *Theme) buildStyles() *Styles {
	c := lipgloss.Color
	return &Styles{
		AppTitle: lipgloss.NewStyle().
			Foreground(c(t.Primary)).
			Bold(true),
		StatusBar: lipgloss.NewStyle().
			Foreground(c(t.FgBase)).
			Background(c(t.BgMantle)).
			Padding(0, 1),
		StatusInfo:   lipgloss.NewStyle().Foreground(c(t.FgBase)),
		StatusSep:    lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		StatusMuted:  lipgloss.NewStyle().Foreground(c(t.FgSubtle)),
		StatusOnline: lipgloss.NewStyle().Foreground(c(t.Success)),
		StatusError:  lipgloss.NewStyle().Foreground(c(t.Error)),

		UserLabel: lipgloss.NewStyle().Foreground(c(t.Secondary)).Bold(true),
		AILabel:   lipgloss.NewStyle().Foreground(c(t.Primary)).Bold(true),
		Timestamp: lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		UserBody: lipgloss.NewStyle().
			Foreground(c(t.FgBright)).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(c(t.Secondary)).
			PaddingLeft(1),
		AIBody:     lipgloss.NewStyle().Foreground(c(t.FgBase)),
		EditedTag:  lipgloss.NewStyle().Foreground(c(t.FgSubtle)).Italic(true),
		CutOffTag:  lipgloss.NewStyle().Foreground(c(t.Warning)).Italic(true),
		ErrorText:  lipgloss.NewStyle().Foreground(c(t.Error)),
		ActionHint: lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		DiffInsert: lipgloss.NewStyle().Foreground(c(t.DiffInsertFg)),
		DiffDelete: lipgloss.NewStyle().Foreground(c(t.DiffDeleteFg)),
		DiffHunk:   lipgloss.NewStyle().Foreground(c(t.Info)),

		Indicator: lipgloss.NewStyle().
			Foreground(c(t.BgBase)).
			Background(c(t.Primary)).
			Bold(true).
			Padding(0, 1),
		Toast: lipgloss.NewStyle().
			Foreground(c(t.BgBase)).
			Background(c(t.Warning)).
			Bold(true).
			Padding(0, 1),
		Composer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(c(t.FgMuted)),
		HintKey:       lipgloss.NewStyle().Foreground(c(t.Secondary)).Bold(true),
		HintDesc:      lipgloss.NewStyle().Foreground(c(t.FgSubtle)),
		HintSeparator: lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		Spinner:       lipgloss.NewStyle().Foreground(c(t.Primary)),
	}
}
