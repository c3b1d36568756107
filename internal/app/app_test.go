package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
	"github.com/nhle/daycare-notify/internal/ui/bell"
	"github.com/nhle/daycare-notify/internal/ui/detail"
)

type fakeService struct {
	ch           chan notify.Snapshot
	read         []string
	unsubscribed bool
}

func newFakeService() *fakeService {
	return &fakeService{ch: make(chan notify.Snapshot, 1)}
}

func (f *fakeService) Trigger() {}
func (f *fakeService) MarkAllRead(context.Context) {}
func (f *fakeService) ClearRead(context.Context) {}
func (f *fakeService) MarkRead(_ context.Context, id string) { f.read = append(f.read, id) }
func (f *fakeService) Role() model.Recipient { return model.RecipientTeacher }

func (f *fakeService) Subscribe(int) (string, <-chan notify.Snapshot, func()) {
	return "sub", f.ch, func() { f.unsubscribed = true }
}

func snapshot() notify.Snapshot {
	return notify.Snapshot{
		Notifications: []model.Notification{
			{ID: "complaint-A", Type: model.NotificationComplaint, Title: "New complaint", Message: "Lunch", Timestamp: time.Now()},
		},
		UnreadCount: 1,
	}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func TestModel_ReceivesSnapshots(t *testing.T) {
	svc := newFakeService()
	m := sized(t, New(svc))

	svc.ch <- snapshot()
	msg := m.Init()()
	require.IsType(t, bell.SnapshotMsg{}, msg)

	next, cmd := m.Update(msg)
	m = next.(Model)
	require.NotNil(t, cmd)

	assert.Equal(t, 1, m.bell.Snapshot().UnreadCount)
	assert.Contains(t, m.View(), "Notifications (teacher)")
	assert.Contains(t, m.View(), "Lunch")
}

func TestModel_SelectOpensDetailAndMarksRead(t *testing.T) {
	svc := newFakeService()
	m := sized(t, New(svc))
	n := snapshot().Notifications[0]

	next, cmd := m.Update(bell.SelectedMsg{Notification: n})
	m = next.(Model)
	assert.Equal(t, ViewDetail, m.currentView)

	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"complaint-A"}, svc.read)

	n.Read = true
	next, _ = m.Update(bell.SnapshotMsg{Snapshot: notify.Snapshot{Notifications: []model.Notification{n}}})
	m = next.(Model)
	open, ok := m.detail.Notification()
	require.True(t, ok)
	assert.True(t, open.Read)

	next, _ = m.Update(detail.BackMsg{})
	assert.Equal(t, ViewList, next.(Model).currentView)
}

func TestModel_HelpToggle(t *testing.T) {
	m := sized(t, New(newFakeService()))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	m = next.(Model)
	assert.Equal(t, ViewHelp, m.currentView)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewList, next.(Model).currentView)
}

func TestModel_QuitUnsubscribes(t *testing.T) {
	svc := newFakeService()
	m := New(svc)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, svc.unsubscribed)
}

func TestModel_SubscriptionClosed(t *testing.T) {
	svc := newFakeService()
	m := sized(t, New(svc))

	close(svc.ch)
	msg := m.Init()()
	require.IsType(t, subscriptionClosedMsg{}, msg)

	next, _ := m.Update(msg)
	assert.Contains(t, next.(Model).View(), "stopped")
}
