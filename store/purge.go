package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/postdesk/models"
)

// DefaultRetention is how long a soft-deleted post stays recoverable.
const DefaultRetention = 7 * 24 * time.Hour

// Expired reports whether p has been soft-deleted for at least window at now.
func Expired(p models.Post, now time.Time, window time.Duration) bool {
	return p.Deleted && p.DeletedAt != nil && now.Sub(*p.DeletedAt) >= window
}

// Purge permanently removes soft-deleted posts older than window. The
// collection is persisted only when something was removed.
func (s *Store) Purge(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if !Expired(p, now, window) {
			kept = append(kept, p)
		}
	}
	removed := len(s.posts) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.posts = kept
	s.log.Info("purged expired posts", zap.Int("removed", removed), zap.Duration("window", window))
	return removed, s.persist(ctx)
}

// PurgeExpired runs Purge with the store's clock and retention window. If
// storage was unreadable at Load it first retries reading it.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	var err error
	if s.unreadable {
		err = s.reconnect(ctx)
	}
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.Purge(ctx, s.now(), s.retention)
}

// Retention is the configured recovery window.
func (s *Store) Retention() time.Duration { return s.retention }
