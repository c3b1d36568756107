package model

import (
	"encoding/json"
	"time"
)

// NotificationType discriminates the collaborator a notification came from.
type NotificationType string

const (
	NotificationComplaint NotificationType = "complaint"
	NotificationMeeting   NotificationType = "meeting"
)

// Notification is one actionable item surfaced to a user. Notifications are
// derived from collaborator records on every refresh and never stored.
type Notification struct {
	// ID is "<type>-<sourceRecordId>" and is stable across refreshes for
	// the same underlying record.
	ID string `json:"id"`

	// Type identifies which collaborator produced this notification.
	Type NotificationType `json:"type"`

	// Title and Message are display text built from the source record.
	Title   string `json:"title"`
	Message string `json:"message"`

	// Timestamp orders notifications, newest first.
	Timestamp time.Time `json:"timestamp"`

	// Read is computed from the read-state set at publish time.
	Read bool `json:"read"`

	// Link is a deep link into the collaborator's detail view.
	Link string `json:"link"`

	// Data is the originating record exactly as the collaborator sent it.
	Data json.RawMessage `json:"data,omitempty"`
}

// NotificationID builds the deterministic notification identifier for a
// collaborator record.
func NotificationID(t NotificationType, recordID string) string {
	return string(t) + "-" + recordID
}
