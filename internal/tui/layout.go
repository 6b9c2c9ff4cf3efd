package tui

import uv "github.com/charmbracelet/ultraviolet"

// Layout breakpoints and dimensions
const (
	// CompactHeightBreakpoint is the minimum height for the full composer
	CompactHeightBreakpoint = 20
	// StatusHeight is the height of the status bar in rows
	StatusHeight = 1
	// FooterHeight is the height of the key hint row
	FooterHeight = 1
	// ComposerLines is the number of text rows in the full composer
	ComposerLines = 3
	// ComposerLinesCompact is the number of text rows in the compact composer
	ComposerLinesCompact = 1
	// composerBorder is the top plus bottom border of the composer
	composerBorder = 2
)

// LayoutMode represents the layout mode based on terminal size
type LayoutMode int

const (
	// LayoutDesktop shows the multi-line composer
	LayoutDesktop LayoutMode = iota
	// LayoutCompact shrinks the composer to one line
	LayoutCompact
)

// Layout defines the rectangular regions for all UI components.
// From top to bottom: transcript, composer, footer, status.
type Layout struct {
	Mode       LayoutMode
	Area       uv.Rectangle
	Transcript uv.Rectangle
	Composer   uv.Rectangle
	Footer     uv.Rectangle
	Status     uv.Rectangle
}

// IsCompact returns true if the layout is in compact mode
func (l Layout) IsCompact() bool {
	return l.Mode == LayoutCompact
}

// ComposerTextLines returns the number of editable rows in the composer.
func (l Layout) ComposerTextLines() int {
	return max(l.Composer.Dy()-composerBorder, 0)
}

// CalculateLayout computes the layout rectangles based on terminal dimensions
func CalculateLayout(width, height int) Layout {
	width, height = max(width, 0), max(height, 0)

	mode := LayoutDesktop
	lines := ComposerLines
	if height < CompactHeightBreakpoint {
		mode = LayoutCompact
		lines = ComposerLinesCompact
	}

	area := uv.Rect(0, 0, width, height)

	// Fixed rows are taken from the bottom; the transcript gets the rest.
	statusH := min(StatusHeight, height)
	footerH := min(FooterHeight, height-statusH)
	composerH := min(lines+composerBorder, height-statusH-footerH)
	transcriptH := height - statusH - footerH - composerH

	y := 0
	transcript := uv.Rect(0, y, width, transcriptH)
	y += transcriptH
	composer := uv.Rect(0, y, width, composerH)
	y += composerH
	footer := uv.Rect(0, y, width, footerH)
	y += footerH
	status := uv.Rect(0, y, width, statusH)

	return Layout{
		Mode:       mode,
		Area:       area,
		Transcript: transcript,
		Composer:   composer,
		Footer:     footer,
		Status:     status,
	}
}
