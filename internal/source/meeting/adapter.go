// Package meeting adapts the meetings collaborator into a notification
// source.
package meeting

import (
	"context"
	"log/slog"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/source"
)

// Fetcher queries the meetings collaborator.
type Fetcher interface {
	MeetingsByRecipient(ctx context.Context, role model.Recipient) ([]model.Meeting, error)
}

// Adapter implements source.Source for meeting requests.
type Adapter struct {
	fetcher Fetcher
	logger  *slog.Logger
}

var _ source.Source = (*Adapter)(nil)

// NewAdapter creates a meeting source backed by f.
func NewAdapter(f Fetcher, logger *slog.Logger) *Adapter {
	return &Adapter{fetcher: f, logger: logger}
}

// Type returns the meeting notification type.
func (a *Adapter) Type() model.NotificationType {
	return model.NotificationMeeting
}

// Fetch returns pending meetings addressed to role. Errors are logged and
// yield an empty result.
func (a *Adapter) Fetch(ctx context.Context, role model.Recipient) []model.Notification {
	records, err := a.fetcher.MeetingsByRecipient(ctx, role)
	if err != nil {
		a.logger.Warn("Meeting fetch failed", "role", role, "error", err)
		return []model.Notification{}
	}

	out := make([]model.Notification, 0, len(records))
	for _, m := range records {
		if !model.IsActionable(m.Status) || !source.AddressedTo(m.Recipient, role) {
			continue
		}
		if m.ID == "" {
			a.logger.Warn("Meeting record has no id, keying it by content", "role", role)
		}
		out = append(out, Normalize(m))
	}

	a.logger.Debug("Meetings fetched", "role", role, "total", len(records), "actionable", len(out))
	return out
}
