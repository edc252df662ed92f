// Package store owns the in-memory post collection and keeps the persisted
// copy in sync with it. Every mutation rewrites the whole collection through
// the storage adapter.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/postdesk/migration"
	"github.com/cppla/postdesk/models"
	"github.com/cppla/postdesk/query"
	"github.com/cppla/postdesk/storage"
)

// ErrNotFound is returned for ids that are unknown or not in the expected state.
var ErrNotFound = errors.New("post not found")

// Source tells where the collection came from on Load.
type Source string

const (
	SourceStorage  Source = "storage"
	SourceSeed     Source = "seed"
	SourceFallback Source = "fallback"
)

// LoadResult describes what Load did.
type LoadResult struct {
	Source   Source
	Migrated bool
	Purged   int
	// Cause is the recovered error that forced a fallback, if any.
	Cause error
}

type Store struct {
	mu sync.RWMutex

	adapter   *storage.Adapter
	pipeline  *migration.Pipeline
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	seed      func(now time.Time) []models.Post
	retention time.Duration

	posts []models.Post
	dirty bool
	// readOnly is set when the stored data must not be overwritten.
	readOnly error
	// unreadable marks a readOnly caused by a failed read; it clears once
	// storage can be read again.
	unreadable bool
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSeed replaces the collection used on first run and on load failure.
func WithSeed(seed func(now time.Time) []models.Post) Option {
	return func(s *Store) { s.seed = seed }
}

func WithPipeline(p *migration.Pipeline) Option {
	return func(s *Store) { s.pipeline = p }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns an empty store; call Load before serving reads.
func New(adapter *storage.Adapter, opts ...Option) *Store {
	s := &Store{
		adapter:   adapter,
		log:       zap.NewNop(),
		now:       time.Now,
		newID:     newPostID,
		seed:      DefaultSeed,
		retention: DefaultRetention,
		posts:     []models.Post{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = migration.New(migration.WithClock(s.now))
	}
	return s
}

func newPostID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load migrates and hydrates the collection, then purges expired records once.
// Read failures never fail Load: the store falls back to the seed collection
// and reports the cause in LoadResult. The returned error is a save failure
// that left the store dirty.
func (s *Store) Load(ctx context.Context) (LoadResult, error) {
	s.mu.Lock()
	res, saveErr := s.hydrate(ctx)
	s.mu.Unlock()

	removed, err := s.Purge(ctx, s.now(), s.retention)
	res.Purged = removed
	if err != nil && saveErr == nil {
		saveErr = err
	}

	s.log.Info("post store loaded",
		zap.String("source", string(res.Source)),
		zap.Bool("migrated", res.Migrated),
		zap.Int("purged", res.Purged),
		zap.Int("posts", len(s.All())),
	)
	return res, saveErr
}

func (s *Store) hydrate(ctx context.Context) (LoadResult, error) {
	s.readOnly = nil
	s.unreadable = false
	s.dirty = false

	snap, err := s.adapter.Load(ctx)
	if err != nil {
		s.readOnly = err
		s.unreadable = true
		return s.fallback(err), nil
	}
	if snap == nil {
		s.posts = s.seed(s.now())
		s.log.Info("no stored posts, seeding default collection", zap.Int("posts", len(s.posts)))
		if err := s.adapter.SaveVersion(ctx, s.pipeline.CurrentVersion()); err != nil {
			s.dirty = true
			return LoadResult{Source: SourceSeed}, err
		}
		return LoadResult{Source: SourceSeed}, s.persist(ctx)
	}

	upgraded, err := s.pipeline.Migrate(ctx, s.adapter, snap)
	if upgraded == nil {
		if errors.Is(err, migration.ErrFutureVersion) {
			s.readOnly = err
		}
		return s.fallback(err), nil
	}
	migrated := upgraded != snap

	posts, decodeErr := storage.DecodePosts(upgraded.Raw)
	if decodeErr != nil {
		return s.fallback(decodeErr), nil
	}
	s.posts = posts
	res := LoadResult{Source: SourceStorage, Migrated: migrated}
	if err != nil {
		// upgraded in memory but the write back failed
		s.dirty = true
		s.log.Warn("persist migrated posts failed", zap.Error(err))
		return res, err
	}
	if migrated {
		s.log.Info("migrated stored posts",
			zap.Int("from", snap.Version),
			zap.Int("to", upgraded.Version),
		)
	}
	return res, nil
}

// fallback seeds in memory without touching storage.
func (s *Store) fallback(cause error) LoadResult {
	s.posts = s.seed(s.now())
	s.log.Warn("load stored posts failed, using seed collection", zap.Error(cause))
	return LoadResult{Source: SourceFallback, Cause: cause}
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	if s.readOnly != nil {
		s.dirty = true
		return &storage.StorageError{Op: "write", Key: s.adapter.ContentKey(), Err: s.readOnly}
	}
	if err := s.adapter.Save(ctx, s.posts); err != nil {
		s.dirty = true
		s.log.Warn("persist posts failed", zap.Error(err))
		return err
	}
	s.dirty = false
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

// Create appends a new post. Fields are taken as given; validation happens
// at the caller. On a save failure the post is kept and returned with the error.
func (s *Store) Create(ctx context.Context, fields models.PostFields) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Post{ID: s.newID(), Status: models.StatusDraft}
	fields.Apply(&p)
	if fields.PublishDate == nil || p.PublishDate.IsZero() {
		p.PublishDate = s.now().UTC()
	}
	if p.Status == "" {
		p.Status = models.StatusDraft
	}
	s.posts = append(s.posts, p)

	s.log.Debug("post created", zap.String("id", p.ID))
	return p.Clone(), s.persist(ctx)
}

// Update merges the present fields into a visible post.
func (s *Store) Update(ctx context.Context, id string, fields models.PostFields) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || s.posts[i].Deleted {
		return models.Post{}, ErrNotFound
	}
	fields.Apply(&s.posts[i])
	if s.posts[i].Status == "" {
		s.posts[i].Status = models.StatusDraft
	}

	s.log.Debug("post updated", zap.String("id", id))
	return s.posts[i].Clone(), s.persist(ctx)
}

// SoftDelete hides a post until it is restored or purged.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || s.posts[i].Deleted {
		return ErrNotFound
	}
	now := s.now().UTC()
	s.posts[i].Deleted = true
	s.posts[i].DeletedAt = &now

	s.log.Debug("post soft-deleted", zap.String("id", id))
	return s.persist(ctx)
}

// Restore brings back a soft-deleted post that has not been purged yet.
func (s *Store) Restore(ctx context.Context, id string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || !s.posts[i].Deleted {
		return models.Post{}, ErrNotFound
	}
	s.posts[i].Deleted = false
	s.posts[i].DeletedAt = nil

	s.log.Debug("post restored", zap.String("id", id))
	return s.posts[i].Clone(), s.persist(ctx)
}

// Get returns a visible post.
func (s *Store) Get(id string) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 || s.posts[i].Deleted {
		return models.Post{}, ErrNotFound
	}
	return s.posts[i].Clone(), nil
}

// All returns the whole collection, soft-deleted records included.
func (s *Store) All() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}

// Visible returns the posts that are not soft-deleted.
func (s *Store) Visible() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLocked()
}

func (s *Store) visibleLocked() []models.Post {
	out := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if !p.Deleted {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Counts reports the collection size and the visible posts per status.
func (s *Store) Counts() models.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := models.Counts{Total: len(s.posts)}
	for _, p := range s.posts {
		if p.Deleted {
			continue
		}
		switch p.Status {
		case models.StatusPublished:
			c.Published++
		case models.StatusDraft:
			c.Draft++
		}
	}
	return c
}

// Categories lists the distinct categories of visible posts in first-seen order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range s.posts {
		if p.Deleted || p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Recent returns up to n visible posts, newest first.
func (s *Store) Recent(n int) []models.Post {
	if n <= 0 {
		return []models.Post{}
	}
	s.mu.RLock()
	visible := s.visibleLocked()
	s.mu.RUnlock()

	sorted := query.Query(visible, "", models.Filters{SortBy: models.SortNewest})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Dirty reports whether in-memory state is ahead of storage.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Flush retries persisting the current collection. When storage could not be
// read at Load, Flush instead tries to read it again and hydrates from it.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreadable {
		return s.reconnect(ctx)
	}
	return s.persist(ctx)
}

// reconnect re-hydrates from storage once it is readable again. Changes made
// while it was unreadable only lived in memory and are dropped. Must be called
// with mu held.
func (s *Store) reconnect(ctx context.Context) error {
	if _, err := s.adapter.Load(ctx); err != nil {
		return err
	}
	dropped := s.dirty
	res, err := s.hydrate(ctx)
	s.log.Info("storage readable again, reloaded posts",
		zap.String("source", string(res.Source)),
		zap.Bool("dropped_unsaved", dropped),
	)
	return err
}

// Pagination returns the saved page position, or page 1 at the default size.
func (s *Store) Pagination(ctx context.Context) (models.PaginationPrefs, error) {
	prefs, ok, err := s.adapter.LoadPagination(ctx)
	if err != nil || !ok {
		return models.PaginationPrefs{Page: 1, Size: query.DefaultPageSize}, err
	}
	return prefs, nil
}

func (s *Store) SavePagination(ctx context.Context, prefs models.PaginationPrefs) error {
	if prefs.Size <= 0 {
		return query.ErrInvalidPageSize
	}
	if prefs.Page < 1 {
		prefs.Page = 1
	}
	return s.adapter.SavePagination(ctx, prefs)
}
