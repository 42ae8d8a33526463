// Package reconcile keeps a locally mutated copy of a server-owned list and
// restores it from the server when a write fails.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Fetch loads the authoritative list. It must be idempotent.
type Fetch[T any] func(ctx context.Context) ([]T, error)

// List is a server-owned collection with tentative local edits.
//
// Apply mutates matching items first, then commits. A failed commit is
// followed by a Refresh so the visible list converges on server state.
type List[T any] struct {
	fetch Fetch[T]

	mu     sync.RWMutex
	items  []T
	loaded bool
}

// New builds a list over fetch. Nothing is loaded until Refresh.
func New[T any](fetch Fetch[T]) *List[T] {
	if fetch == nil {
		panic("reconcile: fetch required")
	}
	return &List[T]{fetch: fetch}
}

// Refresh replaces the items with a fresh fetch. On error the previous items
// are kept.
func (l *List[T]) Refresh(ctx context.Context) error {
	items, err := l.fetch(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.items = items
	l.loaded = true
	l.mu.Unlock()
	return nil
}

// Items returns a copy of the current items.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Loaded reports whether any Refresh has succeeded.
func (l *List[T]) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Apply runs mutate on every item match accepts, then commit. The tentative
// state is visible to Items while commit runs. If commit fails the list is
// re-fetched; the returned error carries the commit failure and, when the
// refetch also failed, that error too.
func (l *List[T]) Apply(ctx context.Context, match func(T) bool, mutate func(*T), commit func(ctx context.Context) error) error {
	l.mu.Lock()
	for i := range l.items {
		if match(l.items[i]) {
			mutate(&l.items[i])
		}
	}
	l.mu.Unlock()

	err := commit(ctx)
	if err == nil {
		return nil
	}
	if refreshErr := l.Refresh(ctx); refreshErr != nil {
		return errors.Join(err, fmt.Errorf("reconcile: refetch after failed commit: %w", refreshErr))
	}
	return err
}
