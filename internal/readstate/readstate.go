// Package readstate tracks which notifications a user has already seen.
//
// The read set only grows through MarkRead and MarkAllRead; Clear is the
// only way to shrink it. The in-memory set is authoritative: persistence
// is best-effort and a failed write never rolls back a mutation.
package readstate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

// KeyPrefix namespaces read-state entries in a shared key-value store.
const KeyPrefix = "read_notifications:"

// Key returns the storage key holding userID's read set.
func Key(userID string) string {
	return KeyPrefix + userID
}

// Storage is the persistence boundary for the read set.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store is a persisted set of notification IDs. It is safe for concurrent
// use.
type Store struct {
	storage Storage
	key     string
	logger  *slog.Logger

	mu  sync.RWMutex
	ids map[string]struct{}

	// persistMu serializes writes. The snapshot is taken while holding it so
	// the last write to finish always carries the newest set.
	persistMu sync.Mutex
}

// Open loads the read set stored under key. Missing, unreadable, or corrupt
// data yields an empty set; Open never fails.
func Open(ctx context.Context, storage Storage, key string, logger *slog.Logger) *Store {
	s := &Store{
		storage: storage,
		key:     key,
		logger:  logger,
		ids:     make(map[string]struct{}),
	}

	raw, ok, err := storage.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("Read state unavailable, starting empty", "key", key, "error", err)
	case !ok || raw == "":
	default:
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			logger.Warn("Read state corrupt, starting empty", "key", key, "error", err)
			break
		}
		for _, id := range ids {
			if id != "" {
				s.ids[id] = struct{}{}
			}
		}
	}

	return s
}

// Has reports whether id has been marked read.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// MarkRead adds id to the read set. It is a no-op, with no write, when id
// is already present.
func (s *Store) MarkRead(ctx context.Context, id string) {
	if id == "" {
		return
	}
	s.MarkAllRead(ctx, []string{id})
}

// MarkAllRead adds every id to the read set. Storage is written only when
// at least one id is new.
func (s *Store) MarkAllRead(ctx context.Context, ids []string) {
	s.mu.Lock()
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		added++
	}
	s.mu.Unlock()

	if added == 0 {
		return
	}
	s.persist(ctx)
}

// Clear empties the read set and removes its stored entry.
func (s *Store) Clear(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.ids = make(map[string]struct{})
	s.mu.Unlock()

	if err := s.storage.Delete(context.WithoutCancel(ctx), s.key); err != nil {
		s.logger.Warn("Deleting read state failed", "key", s.key, "error", err)
	}
}

// persist writes the current set. Failures are logged and otherwise ignored.
func (s *Store) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	data, err := json.Marshal(s.sorted())
	if err != nil {
		s.logger.Warn("Encoding read state failed", "key", s.key, "error", err)
		return
	}

	// Writes outlive a cancelled request.
	if err := s.storage.Set(context.WithoutCancel(ctx), s.key, string(data)); err != nil {
		s.logger.Warn("Persisting read state failed", "key", s.key, "error", err)
	}
}

func (s *Store) sorted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
