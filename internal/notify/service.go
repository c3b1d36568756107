package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/readstate"
	"github.com/nhle/daycare-notify/internal/source"
	appsync "github.com/nhle/daycare-notify/internal/sync"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Role     model.Recipient
	Interval time.Duration

	// Clock drives the poller. Nil selects the wall clock.
	Clock appsync.Clock
}

// Service ties the poller, the aggregator, the read state and the hub
// together for one user. It is built explicitly at the composition root.
type Service struct {
	role   model.Recipient
	reads  *readstate.Store
	hub    *Hub
	agg    *Aggregator
	poller *appsync.Poller
	logger *slog.Logger
}

// NewService wires a service over the given sources. The service is idle
// until Start.
func NewService(cfg ServiceConfig, reads *readstate.Store, logger *slog.Logger, sources ...source.Source) *Service {
	hub := NewHub(reads)
	agg := NewAggregator(cfg.Role, hub, nil, logger, sources...)

	opts := []appsync.Option{appsync.WithLogger(logger)}
	if cfg.Clock != nil {
		opts = append(opts, appsync.WithClock(cfg.Clock))
	}
	poller := appsync.New(agg.Refresh, cfg.Interval, opts...)
	agg.SetGuard(poller)

	return &Service{
		role:   cfg.Role,
		reads:  reads,
		hub:    hub,
		agg:    agg,
		poller: poller,
		logger: logger,
	}
}

// Role returns the recipient role the service polls for.
func (s *Service) Role() model.Recipient {
	return s.role
}

// Start begins polling. The first refresh runs immediately.
func (s *Service) Start(ctx context.Context) error {
	return s.poller.Start(ctx)
}

// Stop halts polling, discards any refresh still in flight and closes all
// subscriptions. It does not block.
func (s *Service) Stop() {
	s.poller.Stop()
	s.agg.Close()
	s.hub.Close()
}

// Done is closed once the polling loop has exited after Stop.
func (s *Service) Done() <-chan struct{} {
	return s.poller.Done()
}

// Status reports the poller's state.
func (s *Service) Status() appsync.Status {
	return s.poller.Status()
}

// Refresh runs a refresh now, or joins the one in flight, and returns when
// it completes.
func (s *Service) Refresh(ctx context.Context) {
	s.agg.Refresh(ctx)
}

// Trigger asks the running poller for a refresh without waiting for it.
// Requests made while one is pending are dropped.
func (s *Service) Trigger() {
	s.poller.Trigger()
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) {
	s.reads.MarkRead(ctx, id)
	s.hub.Reannotate()
}

// MarkAllRead marks every notification in the current snapshot as read.
func (s *Service) MarkAllRead(ctx context.Context) {
	snap := s.hub.Snapshot()
	ids := make([]string, 0, len(snap.Notifications))
	for _, n := range snap.Notifications {
		ids = append(ids, n.ID)
	}
	s.reads.MarkAllRead(ctx, ids)
	s.hub.Reannotate()
}

// ClearRead forgets every read mark.
func (s *Service) ClearRead(ctx context.Context) {
	s.reads.Clear(ctx)
	s.hub.Reannotate()
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() Snapshot {
	return s.hub.Snapshot()
}

// Subscribe registers a consumer of snapshot updates. See Hub.Subscribe.
func (s *Service) Subscribe(buffer int) (id string, ch <-chan Snapshot, cancel func()) {
	return s.hub.Subscribe(buffer)
}
