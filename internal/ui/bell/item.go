package bell

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/theme"
)

// nowFunc is the reference time for relative timestamps.
var nowFunc = time.Now

// Item wraps a notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title + " " + i.Notification.Message }

// Delegate renders one notification per line.
type Delegate struct{}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single list item line.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, renderLine(it.Notification, index == m.Index()))
}

func renderLine(n model.Notification, selected bool) string {
	typ := string(n.Type)

	dot := " "
	if !n.Read {
		dot = theme.UnreadDotStyle.Render("●")
	}
	badge := theme.TypeLabelStyle(typ).Render(theme.TypeLabel(typ))

	text := n.Title + ": " + n.Message
	if n.Read {
		text = theme.ReadStyle.Render(text)
	}

	when := theme.MutedStyle.Render(relativeTime(n.Timestamp))
	line := lipgloss.JoinHorizontal(lipgloss.Top, dot, " ", badge, " ", text, "  ", when)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := nowFunc().Sub(t)
	switch {
	case d < 0:
		return t.Local().Format("Jan 02 15:04")
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
