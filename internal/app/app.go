package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/daycare-notify/internal/keys"
	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
	"github.com/nhle/daycare-notify/internal/theme"
	"github.com/nhle/daycare-notify/internal/ui"
	"github.com/nhle/daycare-notify/internal/ui/bell"
	"github.com/nhle/daycare-notify/internal/ui/detail"
	helpview "github.com/nhle/daycare-notify/internal/ui/help"
)

// subscriptionBuffer is how many snapshots may queue for the UI before the
// oldest is dropped.
const subscriptionBuffer = 4

// Service is what the terminal client needs from a notification session.
// *notify.Service implements it.
type Service interface {
	bell.Actions
	Role() model.Recipient
	Subscribe(buffer int) (id string, ch <-chan notify.Snapshot, cancel func())
}

// subscriptionClosedMsg is sent when the service stops publishing.
type subscriptionClosedMsg struct{}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
)

// Model is the root Bubble Tea model that routes between the notification
// list, the detail view and the help overlay.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	service      Service
	updates      <-chan notify.Snapshot
	unsubscribe  func()
	bell         bell.Model
	detail       detail.Model
	helpView     helpview.Model
	ready        bool
	disconnected bool
}

// New creates the root model and subscribes to the service.
func New(svc Service) Model {
	k := keys.DefaultKeyMap()
	_, ch, cancel := svc.Subscribe(subscriptionBuffer)

	return Model{
		currentView: ViewList,
		keys:        k,
		service:     svc,
		updates:     ch,
		unsubscribe: cancel,
		bell:        bell.New(svc, k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
}

// Init starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

// waitForSnapshot returns a tea.Cmd that blocks until the next snapshot
// arrives on ch.
func waitForSnapshot(ch <-chan notify.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return bell.SnapshotMsg{Snapshot: snap}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentHeight := m.layout.ContentHeight()
		m.bell.SetSize(msg.Width, contentHeight)
		m.detail.SetSize(msg.Width, contentHeight)
		m.helpView.SetSize(msg.Width, contentHeight)
		return m, nil

	case bell.SnapshotMsg:
		var cmd tea.Cmd
		m.bell, cmd = m.bell.Update(msg)
		m.refreshDetail(msg.Snapshot)
		return m, tea.Batch(cmd, waitForSnapshot(m.updates))

	case subscriptionClosedMsg:
		m.disconnected = true
		return m, nil

	case bell.SelectedMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetNotification(msg.Notification)
		return m, m.markRead(msg.Notification)

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.unsubscribe != nil {
				m.unsubscribe()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
			} else {
				m.previousView = m.currentView
				m.currentView = ViewHelp
			}
			return m, nil

		case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
			m.currentView = m.previousView
			return m, nil

		case m.currentView == ViewDetail && key.Matches(msg, m.keys.MarkRead):
			if n, ok := m.detail.Notification(); ok {
				return m, m.markRead(n)
			}
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.bell, cmd = m.bell.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	}

	return m, cmd
}

// refreshDetail keeps the open notification's read flag in step with the
// latest snapshot.
func (m *Model) refreshDetail(snap notify.Snapshot) {
	open, ok := m.detail.Notification()
	if !ok {
		return
	}
	for _, n := range snap.Notifications {
		if n.ID == open.ID {
			m.detail.SetNotification(n)
			return
		}
	}
}

// markRead returns a command that marks n read, or nil when it already is.
func (m Model) markRead(n model.Notification) tea.Cmd {
	if n.Read {
		return nil
	}
	svc := m.service
	return func() tea.Msg {
		svc.MarkRead(context.Background(), n.ID)
		return nil
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.Header(m.title(), m.status())
	content := m.renderContent()
	statusBar := m.layout.StatusBar(m.keyHints())

	return m.layout.Frame(header, content, statusBar)
}

func (m Model) title() string {
	title := fmt.Sprintf("Notifications (%s)", m.service.Role())
	if unread := m.bell.Snapshot().UnreadCount; unread > 0 {
		title += " " + theme.BadgeStyle.Render(fmt.Sprintf("%d", unread))
	}
	return title
}

// status returns a short string describing the refresh state.
func (m Model) status() string {
	switch {
	case m.disconnected:
		return "stopped"
	case m.bell.Snapshot().IsLoading:
		return "refreshing"
	default:
		return "idle"
	}
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.bell.View()
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return "esc back | m mark read | j/k scroll"
	default:
		if m.bell.UnreadOnly() {
			return "unread only | u show all | q quit"
		}
		return "q quit | ? help | m read | A read all | X clear | u unread | r refresh"
	}
}
