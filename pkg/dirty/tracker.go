// Package dirty tracks the last confirmed value of every widget and reports
// which widgets diverged from it.
package dirty

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// Tracker holds the clean value baseline per node id.
// Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	clean  map[string]string
	logger *slog.Logger
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLogger configures a logger for the Tracker.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a tracker with no baselines.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		clean:  make(map[string]string),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MarkClean stores the canonical form of value as the baseline for id.
func (t *Tracker) MarkClean(id string, value any) error {
	canon, err := Canonicalize(value)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.clean[id]; exists {
		t.logger.Debug("Overwriting clean value", "node_id", id)
	}
	t.clean[id] = canon
	return nil
}

// Clear removes the baseline for id.
func (t *Tracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clean, id)
}

// Reset removes every baseline.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clean = make(map[string]string)
}

// HasBaseline reports whether a clean value was captured for id.
func (t *Tracker) HasBaseline(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.clean[id]
	return ok
}

// IsDirty reports whether current differs from the baseline of id.
// Without a baseline a widget is never dirty.
func (t *Tracker) IsDirty(id string, current any) bool {
	t.mu.RLock()
	baseline, ok := t.clean[id]
	t.mu.RUnlock()
	if !ok {
		return false
	}

	canon, err := Canonicalize(current)
	if err != nil {
		t.logger.Warn("Cannot canonicalize value, treating as dirty", "node_id", id, "err", err)
		return true
	}
	return canon != baseline
}

// DirtySet fetches the current value of every candidate and returns the
// canonical values of those that differ from their baseline. Candidates
// without a baseline are skipped. Any provider failure fails the whole call.
func (t *Tracker) DirtySet(ctx context.Context, candidates map[string]registry.ValueProvider) (map[string]string, error) {
	var mu sync.Mutex
	result := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	for id, provider := range candidates {
		if !t.HasBaseline(id) {
			continue
		}
		g.Go(func() error {
			value, err := provider.Value(gctx)
			if err != nil {
				return registry.NewValueRetrievalError(id, err)
			}
			if !t.IsDirty(id, value) {
				return nil
			}
			canon, err := Canonicalize(value)
			if err != nil {
				return registry.NewValueRetrievalError(id, err)
			}
			mu.Lock()
			result[id] = canon
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// IsPageDirty reports whether any candidate diverged from its baseline.
func (t *Tracker) IsPageDirty(ctx context.Context, candidates map[string]registry.ValueProvider) (bool, error) {
	set, err := t.DirtySet(ctx, candidates)
	if err != nil {
		return false, err
	}
	return len(set) > 0, nil
}

// Snapshot returns a copy of the baselines.
func (t *Tracker) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.clean))
	for k, v := range t.clean {
		out[k] = v
	}
	return out
}

// Restore replaces the baselines with previously captured canonical values.
func (t *Tracker) Restore(clean map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clean = make(map[string]string, len(clean))
	for k, v := range clean {
		t.clean[k] = v
	}
}

// IDs returns the ids that have a baseline, sorted.
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.clean))
	for id := range t.clean {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
