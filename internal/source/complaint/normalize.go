package complaint

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/source"
)

// Normalize converts a complaint record into a notification. It performs
// no I/O and tolerates any missing optional field.
// A record without an id is keyed by a hash of its content and gets no link.
func Normalize(c model.Complaint) model.Notification {
	data := rawData(c)
	id, link := c.ID, "/complaints/"+c.ID
	if id == "" {
		id, link = source.FallbackID(data), ""
	}

	return model.Notification{
		ID:        model.NotificationID(model.NotificationComplaint, id),
		Type:      model.NotificationComplaint,
		Title:     "New complaint",
		Message:   message(c),
		Timestamp: source.ResolveTime(c.Date, c.CreatedAt),
		Link:      link,
		Data:      data,
	}
}

func message(c model.Complaint) string {
	subject := strings.TrimSpace(c.Subject)
	if subject == "" {
		subject = strings.TrimSpace(c.Description)
	}
	parent := strings.TrimSpace(c.ParentName)

	switch {
	case subject != "" && parent != "":
		return fmt.Sprintf("%s (from %s)", subject, parent)
	case subject != "":
		return subject
	case parent != "":
		return "Complaint from " + parent
	case c.ID != "":
		return "Complaint #" + c.ID
	default:
		return "Complaint"
	}
}

// rawData returns the record as the collaborator sent it, or a re-encoding
// when the record was built in-process.
func rawData(c model.Complaint) json.RawMessage {
	if len(c.Raw) > 0 {
		return c.Raw
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return data
}
