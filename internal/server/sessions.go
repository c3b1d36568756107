package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
)

// SessionFactory builds an idle notification service for one user.
type SessionFactory func(ctx context.Context, userID string, role model.Recipient) (*notify.Service, error)

// Sessions keeps one running notification service per user. Services are
// created on first use and live until logout or Close.
type Sessions struct {
	base    context.Context
	factory SessionFactory
	logger  *slog.Logger

	mu       gosync.Mutex
	services map[string]*notify.Service
	closed   bool
}

// NewSessions creates a registry. Services are started with base as their
// parent context, not with any request context.
func NewSessions(base context.Context, factory SessionFactory, logger *slog.Logger) *Sessions {
	return &Sessions{
		base:     base,
		factory:  factory,
		logger:   logger,
		services: make(map[string]*notify.Service),
	}
}

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("session registry closed")

// Get returns the user's service, building and starting it when needed. A
// session created for another role is replaced. The registry lock is not
// held while a session is built, so slow storage delays only that user.
func (s *Sessions) Get(userID string, role model.Recipient) (*notify.Service, error) {
	if svc, err := s.current(userID, role); svc != nil || err != nil {
		return svc, err
	}

	built, err := s.factory(s.base, userID, role)
	if err != nil {
		return nil, fmt.Errorf("building session for %s: %w", userID, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		built.Stop()
		return nil, ErrClosed
	}
	existing, ok := s.services[userID]
	if ok && existing.Role() == role {
		// Another request for this user won the race.
		s.mu.Unlock()
		built.Stop()
		return existing, nil
	}
	if err := built.Start(s.base); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("starting session for %s: %w", userID, err)
	}
	s.services[userID] = built
	s.mu.Unlock()

	if ok {
		s.logger.Info("Role changed, replaced session", "user_id", userID, "old_role", existing.Role(), "new_role", role)
		existing.Stop()
	}
	s.logger.Info("Session started", "user_id", userID, "role", role)
	return built, nil
}

// current returns the live session for userID when it serves role.
func (s *Sessions) current(userID string, role model.Recipient) (*notify.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if svc, ok := s.services[userID]; ok && svc.Role() == role {
		return svc, nil
	}
	return nil, nil
}

// lookup returns the user's service without creating one.
func (s *Sessions) lookup(userID string) (*notify.Service, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[userID]
	return svc, ok
}

// Stop tears down the user's service. It reports whether one existed.
func (s *Sessions) Stop(userID string) bool {
	s.mu.Lock()
	svc, ok := s.services[userID]
	delete(s.services, userID)
	s.mu.Unlock()

	if ok {
		svc.Stop()
		s.logger.Info("Session stopped", "user_id", userID)
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.services)
}

// Close stops every session and rejects new ones.
func (s *Sessions) Close() {
	s.mu.Lock()
	services := s.services
	s.services = make(map[string]*notify.Service)
	s.closed = true
	s.mu.Unlock()

	for userID, svc := range services {
		svc.Stop()
		s.logger.Debug("Session stopped on shutdown", "user_id", userID)
	}
}
