package meeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/daycare-notify/internal/model"
)

func TestNormalize(t *testing.T) {
	n := Normalize(model.Meeting{
		ID:         "m1",
		Topic:      "Progress review",
		Date:       "2024-01-01",
		Time:       "14:30",
		Status:     "pending",
		ParentName: "Mr Lee",
	})

	assert.Equal(t, "meeting-m1", n.ID)
	assert.Equal(t, model.NotificationMeeting, n.Type)
	assert.Equal(t, "Meeting request", n.Title)
	assert.Equal(t, "Progress review on 2024-01-01 14:30 with Mr Lee", n.Message)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC), n.Timestamp)
	assert.Equal(t, "/meetings/m1", n.Link)
	assert.NotEmpty(t, n.Data)
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   model.Meeting
		want time.Time
	}{
		{name: "date only", in: model.Meeting{ID: "1", Date: "2024-01-01"}, want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "full timestamp ignores time field", in: model.Meeting{ID: "1", Date: "2024-01-01T09:00:00Z", Time: "14:00"}, want: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{name: "bad time falls back to date", in: model.Meeting{ID: "1", Date: "2024-01-01", Time: "after lunch"}, want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "created at", in: model.Meeting{ID: "1", CreatedAt: "2023-12-31T23:00:00Z"}, want: time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in).Timestamp)
		})
	}
}

func TestNormalizeMessageFallbacks(t *testing.T) {
	assert.Equal(t, "Meeting #9", Normalize(model.Meeting{ID: "9"}).Message)
	assert.Equal(t, "Meeting #9 on 2024-01-01", Normalize(model.Meeting{ID: "9", Date: "2024-01-01"}).Message)
	assert.Equal(t, "Intro with Ann", Normalize(model.Meeting{ID: "9", Topic: "Intro", ParentName: "Ann"}).Message)
}

func TestNormalizeRecordsWithoutID(t *testing.T) {
	a := Normalize(model.Meeting{Topic: "Review", Date: "2024-01-01"})
	b := Normalize(model.Meeting{Topic: "Intro", Date: "2024-01-01"})

	assert.NotEqual(t, "meeting-", a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.ID, Normalize(model.Meeting{Topic: "Review", Date: "2024-01-01"}).ID)
	assert.Empty(t, a.Link)
	assert.Equal(t, "Meeting", Normalize(model.Meeting{}).Message)
}
