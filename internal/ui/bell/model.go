// Package bell is the notification list of the terminal client.
package bell

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/daycare-notify/internal/keys"
	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
	"github.com/nhle/daycare-notify/internal/theme"
)

// Actions are the mutations the list can request. *notify.Service
// implements it.
type Actions interface {
	Trigger()
	MarkRead(ctx context.Context, id string)
	MarkAllRead(ctx context.Context)
	ClearRead(ctx context.Context)
}

// SnapshotMsg carries a published snapshot to the UI.
type SnapshotMsg struct {
	Snapshot notify.Snapshot
}

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	Notification model.Notification
}

// Model is the notification list view.
type Model struct {
	list       list.Model
	keys       *keys.KeyMap
	actions    Actions
	snap       notify.Snapshot
	unreadOnly bool
	width      int
	height     int
}

// New creates the list view.
func New(actions Actions, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:    l,
		keys:    k,
		actions: actions,
		width:   width,
		height:  height,
	}
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		m.snap = msg.Snapshot
		return m, m.list.SetItems(m.items())

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	actions := m.actions

	switch {
	case key.Matches(msg, m.keys.Select):
		n, ok := m.Selected()
		if !ok {
			return nil, true
		}
		return func() tea.Msg { return SelectedMsg{Notification: n} }, true

	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.Selected()
		if !ok || n.Read {
			return nil, true
		}
		return func() tea.Msg {
			actions.MarkRead(context.Background(), n.ID)
			return nil
		}, true

	case key.Matches(msg, m.keys.MarkAllRead):
		return func() tea.Msg {
			actions.MarkAllRead(context.Background())
			return nil
		}, true

	case key.Matches(msg, m.keys.ClearRead):
		return func() tea.Msg {
			actions.ClearRead(context.Background())
			return nil
		}, true

	case key.Matches(msg, m.keys.Refresh):
		return func() tea.Msg {
			actions.Trigger()
			return nil
		}, true

	case key.Matches(msg, m.keys.UnreadOnly):
		m.unreadOnly = !m.unreadOnly
		return m.list.SetItems(m.items()), true
	}
	return nil, false
}

func (m Model) items() []list.Item {
	source := m.snap.Notifications
	if m.unreadOnly {
		source = m.snap.Unread()
	}
	items := make([]list.Item, len(source))
	for i, n := range source {
		items[i] = Item{Notification: n}
	}
	return items
}

// Selected returns the focused notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Snapshot returns the last snapshot the view received.
func (m Model) Snapshot() notify.Snapshot {
	return m.snap
}

// UnreadOnly reports whether read notifications are hidden.
func (m Model) UnreadOnly() bool {
	return m.unreadOnly
}

// View renders the list, or a placeholder when it is empty.
func (m Model) View() string {
	if len(m.list.Items()) > 0 {
		return m.list.View()
	}

	text := "No pending complaints or meeting requests"
	switch {
	case m.snap.IsLoading:
		text = "Checking for notifications..."
	case m.unreadOnly && len(m.snap.Notifications) > 0:
		text = "All caught up"
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(text)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
