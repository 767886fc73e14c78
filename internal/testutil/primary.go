// Package testutil holds in-memory stand-ins for the primary store used by
// repository and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/websitelelo/websitelelo/internal/repository"
)

// Health is a health checker the test flips between up and down.
type Health struct {
	up atomic.Bool
}

func NewHealth(up bool) *Health {
	h := &Health{}
	h.up.Store(up)
	return h
}

func (h *Health) Set(up bool)     { h.up.Store(up) }
func (h *Health) Connected() bool { return h.up.Load() }

// MemoryPrimary is an in-memory repository.Primary.
// Setting Err makes every call fail, simulating an adapter outage while the
// health checker still reports connected.
type MemoryPrimary[T any, PT repository.Entity[T]] struct {
	mu   sync.Mutex
	docs []T
	seq  int
	Err  error
}

func NewMemoryPrimary[T any, PT repository.Entity[T]]() *MemoryPrimary[T, PT] {
	return &MemoryPrimary[T, PT]{}
}

func (m *MemoryPrimary[T, PT]) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("%024x", m.seq)
}

func (m *MemoryPrimary[T, PT]) Find(ctx context.Context, q repository.Query) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []T{}
	for _, d := range m.docs {
		if q.ActiveOnly {
			if a, ok := any(&d).(interface{ Active() bool }); ok && !a.Active() {
				continue
			}
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := PT(&out[i]).Created(), PT(&out[j]).Created()
		if q.Descending {
			return a.After(b)
		}
		return a.Before(b)
	})
	return out, nil
}

func (m *MemoryPrimary[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, d := range m.docs {
		if PT(&d).GetID() == id {
			found := d
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MemoryPrimary[T, PT]) Insert(ctx context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *MemoryPrimary[T, PT]) Replace(ctx context.Context, id string, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := range m.docs {
		if PT(&m.docs[i]).GetID() == id {
			m.docs[i] = *doc
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MemoryPrimary[T, PT]) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := range m.docs {
		if PT(&m.docs[i]).GetID() == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MemoryPrimary[T, PT]) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.docs), nil
}

// Docs returns a copy of the stored documents.
func (m *MemoryPrimary[T, PT]) Docs() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.docs...)
}
