// Package source defines the contract for collaborators that contribute
// notifications, plus the helpers adapters share.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/nhle/daycare-notify/internal/model"
)

// Source is a read-only producer of normalized notifications for a
// recipient role. Fetch never fails: an adapter that cannot reach its
// collaborator logs the problem and returns an empty slice so the other
// sources can still be surfaced.
type Source interface {
	// Type returns the notification type this source produces.
	Type() model.NotificationType

	// Fetch returns the actionable items addressed to role.
	Fetch(ctx context.Context, role model.Recipient) []model.Notification
}

// AddressedTo reports whether a record's recipient field matches role.
// Records that do not name a recipient are trusted to have been filtered
// by the collaborator's query.
func AddressedTo(recipient string, role model.Recipient) bool {
	recipient = strings.TrimSpace(recipient)
	return recipient == "" || strings.EqualFold(recipient, string(role))
}

// nowFunc is the last-resort timestamp for records without a usable date.
var nowFunc = time.Now

// timeLayouts are tried in order when parsing collaborator dates.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a collaborator timestamp. The zero time is returned when
// s is empty or matches no known layout.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ResolveTime returns the first candidate that parses, falling back to the
// current instant so a record is never dropped for lack of a date.
func ResolveTime(candidates ...string) time.Time {
	for _, c := range candidates {
		if t := ParseTime(c); !t.IsZero() {
			return t
		}
	}
	return nowFunc().UTC()
}

// FallbackID derives a stable record id from the record's JSON for
// collaborators that omit one. Distinct records get distinct ids; the same
// record gets the same id on every refresh.
func FallbackID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "anon-" + hex.EncodeToString(sum[:8])
}
