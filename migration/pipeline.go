// Package migration upgrades a stored post collection from older schema
// versions to CurrentVersion.
//
// Steps work on the raw JSON records rather than on models.Post so that a
// step can repair data the current struct would refuse to decode.
package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cppla/postdesk/storage"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 2

// ErrFutureVersion means the stored data was written by a newer build.
var ErrFutureVersion = errors.New("stored schema version is newer than supported")

// Record is one post as decoded from JSON.
type Record = map[string]any

// StepFunc upgrades every record by one version. It must be idempotent.
type StepFunc func(records []Record, now time.Time) ([]Record, error)

// Step produces schema Version from Version-1.
type Step struct {
	Version     int
	Description string
	Up          StepFunc
}

// Writer persists the upgraded collection and version marker.
type Writer interface {
	SaveRaw(ctx context.Context, raw []byte) error
	SaveVersion(ctx context.Context, version int) error
}

// Pipeline applies registered steps in version order.
type Pipeline struct {
	steps []Step
	now   func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source handed to steps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns the pipeline holding every step up to CurrentVersion.
func New(opts ...Option) *Pipeline {
	p, err := NewPipeline(DefaultSteps(), opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPipeline validates that steps run 1..N without gaps.
func NewPipeline(steps []Step, opts ...Option) (*Pipeline, error) {
	for i, s := range steps {
		if s.Version != i+1 {
			return nil, fmt.Errorf("invalid migration: step %d has version %d, want %d", i, s.Version, i+1)
		}
		if s.Up == nil {
			return nil, fmt.Errorf("invalid migration: step %d has no Up func", s.Version)
		}
	}
	p := &Pipeline{steps: steps, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CurrentVersion is the version reached after every step has run.
func (p *Pipeline) CurrentVersion() int { return len(p.steps) }

// Upgrade applies the steps after from. changed is false when from is
// already current, in which case raw is returned untouched.
func (p *Pipeline) Upgrade(raw []byte, from int) (out []byte, version int, changed bool, err error) {
	current := p.CurrentVersion()
	if from > current {
		return nil, from, false, fmt.Errorf("%w: stored %d, supported %d", ErrFutureVersion, from, current)
	}
	if from == current {
		return raw, current, false, nil
	}
	if from < 0 {
		from = 0
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, from, false, err
	}

	now := p.now().UTC()
	for _, step := range p.steps[from:] {
		records, err = step.Up(records, now)
		if err != nil {
			return nil, from, false, fmt.Errorf("migration %d->%d failed: %w", step.Version-1, step.Version, err)
		}
	}

	out, err = json.Marshal(records)
	if err != nil {
		return nil, from, false, fmt.Errorf("encode migrated records: %w", err)
	}
	return out, current, true, nil
}

// Migrate upgrades snap when it is stale and writes the collection, then the
// version marker. The returned snapshot is what the store should hydrate from;
// it is non-nil even when a write fails, as long as the upgrade itself succeeded.
func (p *Pipeline) Migrate(ctx context.Context, w Writer, snap *storage.Snapshot) (*storage.Snapshot, error) {
	if snap == nil {
		return nil, nil
	}
	raw, version, changed, err := p.Upgrade(snap.Raw, snap.Version)
	if err != nil {
		return nil, err
	}
	if !changed {
		return snap, nil
	}
	upgraded := &storage.Snapshot{Raw: raw, Version: version}
	if err := w.SaveRaw(ctx, raw); err != nil {
		return upgraded, err
	}
	if err := w.SaveVersion(ctx, version); err != nil {
		return upgraded, err
	}
	return upgraded, nil
}

func decodeRecords(raw []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode stored records: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
