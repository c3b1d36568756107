package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecipient is returned when a recipient role is not recognised.
var ErrInvalidRecipient = errors.New("invalid recipient role")

// Recipient is the addressee category used to filter collaborator records.
type Recipient string

const (
	RecipientTeacher    Recipient = "teacher"
	RecipientSupervisor Recipient = "supervisor"
)

// ParseRecipient normalizes s into a Recipient.
func ParseRecipient(s string) (Recipient, error) {
	switch r := Recipient(strings.ToLower(strings.TrimSpace(s))); r {
	case RecipientTeacher, RecipientSupervisor:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, s)
	}
}

// StatusPending is the only status treated as actionable. Comparison is
// case-insensitive because collaborators disagree on capitalization.
const StatusPending = "pending"

// IsActionable reports whether status marks a record that still needs
// attention.
func IsActionable(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusPending)
}

// Complaint is a complaint record as returned by the complaints collaborator.
type Complaint struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	Recipient   string `json:"recipient"`
	ParentName  string `json:"parentName"`
	ChildName   string `json:"childName"`
	CreatedAt   string `json:"createdAt"`

	// Raw holds the record's original JSON.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a complaint, accepting "_id" in place of "id",
// string or numeric ids, and keeping the original bytes in Raw.
func (c *Complaint) UnmarshalJSON(data []byte) error {
	type plain Complaint
	var aux struct {
		plain
		ID      json.RawMessage `json:"id"`
		MongoID json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Complaint(aux.plain)
	id, err := recordID(aux.ID, aux.MongoID)
	if err != nil {
		return fmt.Errorf("decoding complaint id: %w", err)
	}
	c.ID = id
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Meeting is a meeting request as returned by the meetings collaborator.
type Meeting struct {
	ID         string `json:"id"`
	Topic      string `json:"topic"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     string `json:"status"`
	Recipient  string `json:"recipient"`
	ParentName string `json:"parentName"`
	ChildName  string `json:"childName"`
	CreatedAt  string `json:"createdAt"`

	// Raw holds the record's original JSON.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a meeting, accepting "_id" in place of "id",
// string or numeric ids, and keeping the original bytes in Raw.
func (m *Meeting) UnmarshalJSON(data []byte) error {
	type plain Meeting
	var aux struct {
		plain
		ID      json.RawMessage `json:"id"`
		MongoID json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Meeting(aux.plain)
	id, err := recordID(aux.ID, aux.MongoID)
	if err != nil {
		return fmt.Errorf("decoding meeting id: %w", err)
	}
	m.ID = id
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// recordID returns the first non-empty id among candidates. Collaborators
// send ids as JSON strings or numbers.
func recordID(candidates ...json.RawMessage) (string, error) {
	for _, raw := range candidates {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}

		var id string
		if raw[0] == '"' {
			if err := json.Unmarshal(raw, &id); err != nil {
				return "", err
			}
		} else {
			var n json.Number
			if err := json.Unmarshal(raw, &n); err != nil {
				return "", fmt.Errorf("id must be a string or number, got %s", raw)
			}
			id = n.String()
		}

		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	}
	return "", nil
}
