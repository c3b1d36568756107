package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/daycare-notify/internal/model"
)

type readSet map[string]bool

func (r readSet) Has(id string) bool { return r[id] }

func note(id string, ts time.Time) model.Notification {
	return model.Notification{ID: id, Timestamp: ts}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestHubPublishAnnotatesReadFlags(t *testing.T) {
	reads := readSet{"complaint-A": true}
	h := NewHub(reads)

	h.Publish([]model.Notification{note("complaint-A", day(2)), note("meeting-B", day(1))})

	snap := h.Snapshot()
	require.Len(t, snap.Notifications, 2)
	assert.True(t, snap.Notifications[0].Read)
	assert.False(t, snap.Notifications[1].Read)
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Equal(t, []string{"meeting-B"}, ids(snap.Unread()))
}

func TestHubPublishDoesNotAliasInput(t *testing.T) {
	h := NewHub(readSet{})
	in := []model.Notification{note("a", day(1))}
	h.Publish(in)
	in[0].ID = "changed"
	assert.Equal(t, "a", h.Snapshot().Notifications[0].ID)
}

func TestHubSetLoadingKeepsUnreadCount(t *testing.T) {
	h := NewHub(readSet{})
	h.Publish([]model.Notification{note("a", day(1)), note("b", day(2))})

	h.SetLoading(true)
	snap := h.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Equal(t, 2, snap.UnreadCount)

	h.Publish(nil)
	snap = h.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.Equal(t, 0, snap.UnreadCount)
	assert.NotNil(t, snap.Notifications)
}

func TestHubReannotateProducesNewList(t *testing.T) {
	reads := readSet{}
	h := NewHub(reads)
	h.Publish([]model.Notification{note("a", day(1))})
	before := h.Snapshot()

	reads["a"] = true
	h.Reannotate()
	after := h.Snapshot()

	assert.False(t, before.Notifications[0].Read)
	assert.True(t, after.Notifications[0].Read)
	assert.Equal(t, 0, after.UnreadCount)
}

func TestHubSubscribeDeliversCurrentThenUpdates(t *testing.T) {
	h := NewHub(readSet{})
	h.Publish([]model.Notification{note("a", day(1))})

	id, ch, cancel := h.Subscribe(4)
	defer cancel()
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, h.Subscribers())

	first := <-ch
	assert.Equal(t, []string{"a"}, ids(first.Notifications))

	h.Publish([]model.Notification{note("b", day(2)), note("a", day(1))})
	second := <-ch
	assert.Equal(t, []string{"b", "a"}, ids(second.Notifications))
}

func TestHubSlowSubscriberGetsLatest(t *testing.T) {
	h := NewHub(readSet{})
	_, ch, cancel := h.Subscribe(1)
	defer cancel()

	for i := 1; i <= 5; i++ {
		h.Publish([]model.Notification{note(string(rune('a'+i)), day(i))})
	}

	latest := <-ch
	assert.Equal(t, []string{"f"}, ids(latest.Notifications))
	select {
	case extra := <-ch:
		t.Fatalf("unexpected queued snapshot %v", extra)
	default:
	}
}

func TestHubCancelAndClose(t *testing.T) {
	h := NewHub(readSet{})
	_, ch1, cancel1 := h.Subscribe(1)
	_, ch2, _ := h.Subscribe(1)
	<-ch1
	<-ch2

	cancel1()
	cancel1()
	_, ok := <-ch1
	assert.False(t, ok)

	h.Close()
	h.Close()
	_, ok = <-ch2
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())

	h.Publish([]model.Notification{note("a", day(1))})
	assert.Empty(t, h.Snapshot().Notifications)

	_, ch3, cancel3 := h.Subscribe(1)
	defer cancel3()
	_, ok = <-ch3
	assert.False(t, ok)
}

func ids(list []model.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}
