package meeting

import (
	"encoding/json"
	"strings"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/source"
)

// Normalize converts a meeting record into a notification. It performs no
// I/O and tolerates any missing optional field.
// A record without an id is keyed by a hash of its content and gets no link.
func Normalize(m model.Meeting) model.Notification {
	data := rawData(m)
	id, link := m.ID, "/meetings/"+m.ID
	if id == "" {
		id, link = source.FallbackID(data), ""
	}

	return model.Notification{
		ID:        model.NotificationID(model.NotificationMeeting, id),
		Type:      model.NotificationMeeting,
		Title:     "Meeting request",
		Message:   message(m),
		Timestamp: source.ResolveTime(scheduled(m), m.Date, m.CreatedAt),
		Link:      link,
		Data:      data,
	}
}

// scheduled joins the date and time-of-day fields when both are present.
func scheduled(m model.Meeting) string {
	date := strings.TrimSpace(m.Date)
	clock := strings.TrimSpace(m.Time)
	if date == "" || clock == "" || strings.Contains(date, "T") {
		return ""
	}
	return date + " " + clock
}

func message(m model.Meeting) string {
	var b strings.Builder

	topic := strings.TrimSpace(m.Topic)
	switch {
	case topic != "":
	case m.ID != "":
		topic = "Meeting #" + m.ID
	default:
		topic = "Meeting"
	}
	b.WriteString(topic)

	if when := strings.TrimSpace(strings.TrimSpace(m.Date) + " " + strings.TrimSpace(m.Time)); when != "" {
		b.WriteString(" on ")
		b.WriteString(when)
	}
	if parent := strings.TrimSpace(m.ParentName); parent != "" {
		b.WriteString(" with ")
		b.WriteString(parent)
	}
	return b.String()
}

// rawData returns the record as the collaborator sent it, or a re-encoding
// when the record was built in-process.
func rawData(m model.Meeting) json.RawMessage {
	if len(m.Raw) > 0 {
		return m.Raw
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}
