// Package notify merges source results into one ordered notification list
// and publishes it, with read flags, to subscribers.
package notify

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/source"
)

// Guard decides whether a finished refresh may still be published.
// *sync.Poller implements it.
type Guard interface {
	Generation() uint64
	Current(gen uint64) bool
}

// alwaysCurrent is used when no guard is configured.
type alwaysCurrent struct{}

func (alwaysCurrent) Generation() uint64   { return 0 }
func (alwaysCurrent) Current(uint64) bool { return true }

const flightKey = "refresh"

// Aggregator fetches every source concurrently, merges the results and
// publishes them to a Hub. Concurrent refreshes share one in-flight fetch.
type Aggregator struct {
	role    model.Recipient
	sources []source.Source
	hub     *Hub
	guard   Guard
	logger  *slog.Logger

	// Cycles run under base so one caller leaving does not cancel the
	// result other callers are waiting for.
	base   context.Context
	cancel context.CancelFunc

	group singleflight.Group
}

// NewAggregator creates an aggregator for role. A nil guard treats every
// result as current.
func NewAggregator(role model.Recipient, hub *Hub, guard Guard, logger *slog.Logger, sources ...source.Source) *Aggregator {
	if guard == nil {
		guard = alwaysCurrent{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		role:    role,
		sources: sources,
		hub:     hub,
		guard:   guard,
		logger:  logger,
		base:    base,
		cancel:  cancel,
	}
}

// SetGuard replaces the publish guard. It must be called before the first
// refresh.
func (a *Aggregator) SetGuard(g Guard) {
	a.guard = g
}

// Refresh runs one fetch-merge-publish cycle, or joins the cycle already in
// flight. It returns when that cycle completes or ctx is done; ctx bounds
// only the wait, never the shared cycle. It never fails: source errors
// surface as empty contributions.
func (a *Aggregator) Refresh(ctx context.Context) {
	select {
	case <-a.begin():
	case <-ctx.Done():
	}
}

// Close cancels any cycle in flight and makes later cycles publish nothing.
func (a *Aggregator) Close() {
	a.cancel()
}

// begin starts a cycle, or attaches to the running one, and returns a
// channel that receives when the cycle finishes. Attachment happens before
// begin returns.
func (a *Aggregator) begin() <-chan singleflight.Result {
	return a.group.DoChan(flightKey, func() (any, error) {
		a.run(a.base)
		return nil, nil
	})
}

func (a *Aggregator) run(ctx context.Context) {
	gen := a.guard.Generation()
	a.hub.SetLoading(true)

	groups := a.fetchAll(ctx)

	if ctx.Err() != nil {
		a.logger.Debug("Aggregator closed, discarding results", "role", a.role)
		a.hub.SetLoading(false)
		return
	}
	if !a.guard.Current(gen) {
		a.logger.Debug("Refresh result is stale, discarding", "role", a.role, "generation", gen)
		a.hub.SetLoading(false)
		return
	}

	merged := Merge(groups...)
	a.hub.Publish(merged)
	a.logger.Debug("Notifications published", "role", a.role, "count", len(merged))
}

// fetchAll queries every source concurrently. A panicking source counts as
// an empty result.
func (a *Aggregator) fetchAll(ctx context.Context) [][]model.Notification {
	groups := make([][]model.Notification, len(a.sources))

	var wg conc.WaitGroup
	for i, src := range a.sources {
		wg.Go(func() {
			groups[i] = src.Fetch(ctx, a.role)
		})
	}
	if rec := wg.WaitAndRecover(); rec != nil {
		a.logger.Error("Source panicked during fetch", "role", a.role, "error", rec.AsError())
	}

	return groups
}

// Merge concatenates groups, drops repeated IDs (the first occurrence wins)
// and orders the result newest first, breaking ties by ID.
func Merge(groups ...[]model.Notification) []model.Notification {
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	seen := make(map[string]struct{}, total)
	out := make([]model.Notification, 0, total)
	for _, g := range groups {
		for _, n := range g {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			out = append(out, n)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
