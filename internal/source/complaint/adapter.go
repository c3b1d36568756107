// Package complaint adapts the complaints collaborator into a notification
// source.
package complaint

import (
	"context"
	"log/slog"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/source"
)

// Fetcher queries the complaints collaborator.
type Fetcher interface {
	ComplaintsByRecipient(ctx context.Context, role model.Recipient) ([]model.Complaint, error)
}

// Adapter implements source.Source for complaints.
type Adapter struct {
	fetcher Fetcher
	logger  *slog.Logger
}

var _ source.Source = (*Adapter)(nil)

// NewAdapter creates a complaint source backed by f.
func NewAdapter(f Fetcher, logger *slog.Logger) *Adapter {
	return &Adapter{fetcher: f, logger: logger}
}

// Type returns the complaint notification type.
func (a *Adapter) Type() model.NotificationType {
	return model.NotificationComplaint
}

// Fetch returns pending complaints addressed to role. Errors are logged and
// yield an empty result.
func (a *Adapter) Fetch(ctx context.Context, role model.Recipient) []model.Notification {
	records, err := a.fetcher.ComplaintsByRecipient(ctx, role)
	if err != nil {
		a.logger.Warn("Complaint fetch failed", "role", role, "error", err)
		return []model.Notification{}
	}

	out := make([]model.Notification, 0, len(records))
	for _, c := range records {
		if !model.IsActionable(c.Status) || !source.AddressedTo(c.Recipient, role) {
			continue
		}
		if c.ID == "" {
			a.logger.Warn("Complaint record has no id, keying it by content", "role", role)
		}
		out = append(out, Normalize(c))
	}

	a.logger.Debug("Complaints fetched", "role", role, "total", len(records), "actionable", len(out))
	return out
}
