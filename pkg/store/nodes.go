package store

import (
	"context"
	"sort"
	"time"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// SetNodeLoading adds id to or removes it from the set of widgets that are
// still mounting. Removing it releases WaitForMount callers.
func (s *Store) SetNodeLoading(id string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.loading[id]
	switch {
	case loading && !exists:
		s.loading[id] = make(chan struct{})
	case !loading && exists:
		close(ch)
		delete(s.loading, id)
	}
}

// IsLoading reports whether id is still mounting.
func (s *Store) IsLoading(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loading[id]
	return ok
}

// LoadingNodes returns the ids still mounting, sorted.
func (s *Store) LoadingNodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.loading))
	for id := range s.loading {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WaitForMount blocks until id has left the loading set. The wait is bounded
// by the mount barrier; exceeding it returns a *domain.MountTimeoutError,
// which callers treat as "no usable value". A page replacement during the
// wait returns domain.ErrStalePage.
func (s *Store) WaitForMount(ctx context.Context, id string) error {
	s.mu.Lock()
	done, loading := s.loading[id]
	replaced := s.replaced
	bound := time.Duration(s.mountRetries) * s.mountDelay
	s.mu.Unlock()

	if !loading {
		return nil
	}

	timer := time.NewTimer(bound)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-replaced:
		return domain.ErrStalePage
	case <-timer.C:
		s.logger.Warn("Node did not finish loading", "node_id", id, "waited", bound)
		return &domain.MountTimeoutError{NodeID: id, Waited: bound}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetNodesReExecuting replaces the set of nodes being re-executed. Duplicate
// ids are dropped; the state only changes when the membership differs.
// The re-execution update counter is incremented for every non-empty change
// and reset when the set becomes empty. It reports whether anything changed.
func (s *Store) SetNodesReExecuting(ctx context.Context, ids []string) bool {
	ids = unique(ids)
	s.mu.Lock()
	if sameMembers(s.reexecuting, ids) {
		s.mu.Unlock()
		return false
	}
	s.reexecuting = append([]string(nil), ids...)
	if len(ids) > 0 {
		s.reexecutionUpdates++
	} else {
		s.reexecutionUpdates = 0
		s.reexecuting = nil
	}
	current := append([]string(nil), s.reexecuting...)
	s.mu.Unlock()

	if s.hooks.OnReexecutingChanged != nil {
		s.hooks.OnReexecutingChanged(ctx, current)
	}
	return true
}

// SetAllNodesReExecuting marks every node of the page as re-executing.
func (s *Store) SetAllNodesReExecuting(ctx context.Context) bool {
	return s.SetNodesReExecuting(ctx, s.NodeIDs())
}

// NodesReExecuting returns the nodes being re-executed.
func (s *Store) NodesReExecuting() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reexecuting...)
}

// IsNodeReExecuting reports whether id is being re-executed.
func (s *Store) IsNodeReExecuting(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reexecuting {
		if r == id {
			return true
		}
	}
	return false
}

// ReexecutionUpdates returns the counter bumped on every re-execution round.
func (s *Store) ReexecutionUpdates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reexecutionUpdates
}

// unique returns ids without duplicates, keeping the first occurrence.
func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// sameMembers compares two duplicate free sets.
func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
