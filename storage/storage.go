// Package storage persists the post collection as a single JSON blob in a
// durable key-value backend.
//
// The Backend interface is the primary abstraction. SQLiteBackend is the
// default implementation; Redis and MySQL (via gorm) are available for
// deployments that already run those services, and MemoryBackend serves tests.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cppla/postdesk/models"
)

// DefaultNamespace matches the key the web client has always written to.
const DefaultNamespace = "blogs"

// Backend is a minimal durable key-value store.
type Backend interface {
	// Get returns ok=false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error
	Close() error
}

// StorageError reports a failed read or write of the underlying store.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Snapshot is the raw persisted collection together with its schema version.
type Snapshot struct {
	Raw     []byte
	Version int
}

// Adapter reads and writes the whole collection under namespaced keys.
type Adapter struct {
	backend   Backend
	namespace string
}

// NewAdapter wraps backend; an empty namespace falls back to DefaultNamespace.
func NewAdapter(backend Backend, namespace string) *Adapter {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}
	return &Adapter{backend: backend, namespace: namespace}
}

// ContentKey holds the JSON array of posts.
func (a *Adapter) ContentKey() string { return a.namespace }

// VersionKey holds the schema version as an integer string.
func (a *Adapter) VersionKey() string { return a.namespace + "_schema_version" }

// PaginationKey holds the list view's page position.
func (a *Adapter) PaginationKey() string { return a.namespace + "_pagination" }

// Load returns nil, nil on first run when no collection has been stored yet.
// A missing version marker reads as version 0.
func (a *Adapter) Load(ctx context.Context) (*Snapshot, error) {
	raw, ok, err := a.backend.Get(ctx, a.ContentKey())
	if err != nil {
		return nil, &StorageError{Op: "read", Key: a.ContentKey(), Err: err}
	}
	if !ok {
		return nil, nil
	}
	version, err := a.LoadVersion(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Raw: []byte(raw), Version: version}, nil
}

// LoadVersion reads the schema version marker.
func (a *Adapter) LoadVersion(ctx context.Context) (int, error) {
	v, ok, err := a.backend.Get(ctx, a.VersionKey())
	if err != nil {
		return 0, &StorageError{Op: "read", Key: a.VersionKey(), Err: err}
	}
	if !ok || strings.TrimSpace(v) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &StorageError{Op: "read", Key: a.VersionKey(), Err: fmt.Errorf("parse version %q: %w", v, err)}
	}
	return n, nil
}

// Save serializes and overwrites the entire collection.
func (a *Adapter) Save(ctx context.Context, posts []models.Post) error {
	if posts == nil {
		posts = []models.Post{}
	}
	data, err := json.Marshal(posts)
	if err != nil {
		return &StorageError{Op: "encode", Key: a.ContentKey(), Err: err}
	}
	return a.SaveRaw(ctx, data)
}

// SaveRaw overwrites the collection with an already encoded blob.
func (a *Adapter) SaveRaw(ctx context.Context, raw []byte) error {
	if err := a.backend.Set(ctx, a.ContentKey(), string(raw)); err != nil {
		return &StorageError{Op: "write", Key: a.ContentKey(), Err: err}
	}
	return nil
}

// SaveVersion writes the schema version marker.
func (a *Adapter) SaveVersion(ctx context.Context, version int) error {
	if err := a.backend.Set(ctx, a.VersionKey(), strconv.Itoa(version)); err != nil {
		return &StorageError{Op: "write", Key: a.VersionKey(), Err: err}
	}
	return nil
}

// LoadPagination returns the stored page position, or ok=false if none was saved.
func (a *Adapter) LoadPagination(ctx context.Context) (models.PaginationPrefs, bool, error) {
	var prefs models.PaginationPrefs
	raw, ok, err := a.backend.Get(ctx, a.PaginationKey())
	if err != nil {
		return prefs, false, &StorageError{Op: "read", Key: a.PaginationKey(), Err: err}
	}
	if !ok {
		return prefs, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		// unreadable prefs are treated as absent
		return models.PaginationPrefs{}, false, nil
	}
	return prefs, true, nil
}

// SavePagination stores the list view's page position.
func (a *Adapter) SavePagination(ctx context.Context, prefs models.PaginationPrefs) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return &StorageError{Op: "encode", Key: a.PaginationKey(), Err: err}
	}
	if err := a.backend.Set(ctx, a.PaginationKey(), string(data)); err != nil {
		return &StorageError{Op: "write", Key: a.PaginationKey(), Err: err}
	}
	return nil
}

// Close releases the backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

// DecodePosts parses a stored collection blob.
func DecodePosts(raw []byte) ([]models.Post, error) {
	var posts []models.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}
