// Package ui holds layout helpers shared by the terminal views.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/daycare-notify/internal/theme"
)

// Layout tracks the terminal size and the fixed chrome around the content.
type Layout struct {
	Width  int
	Height int
}

// chromeHeight is the header plus the status bar.
const chromeHeight = 2

// NewLayout creates a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight returns the rows left for the main view.
func (l Layout) ContentHeight() int {
	return max(l.Height-chromeHeight, 0)
}

// Header renders the title bar with left and right aligned segments.
func (l Layout) Header(left, right string) string {
	return l.bar(theme.HeaderStyle, left, right)
}

// StatusBar renders the bottom bar.
func (l Layout) StatusBar(hints string) string {
	return l.bar(theme.StatusBarStyle, hints, "")
}

// Frame stacks header, content and status bar.
func (l Layout) Frame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).MaxHeight(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// bar fills the full width with style's background between the segments.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := ""
	if right != "" {
		rightRendered = style.Render(right)
	}

	gap := max(l.Width-lipgloss.Width(leftRendered)-lipgloss.Width(rightRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}
