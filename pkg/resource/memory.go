package resource

import (
	"context"
	"sort"
	"sync"

	"github.com/harun/restx/pkg/errdefs"
)

// MemoryStore keeps resources in process memory.
type MemoryStore struct {
	items map[Kind]map[string]*Resource
	mu    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: map[Kind]map[string]*Resource{
			KindResource:    {},
			KindSpecialized: {},
		},
	}
}

func (s *MemoryStore) Save(ctx context.Context, r *Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.items[r.Kind]
	if !ok {
		return errdefs.Validation("unknown resource kind %q", r.Kind)
	}
	if _, exists := bucket[r.Name]; exists {
		return errdefs.Conflict("%s %q already exists", r.Kind, r.Name)
	}
	bucket[r.Name] = r.Clone()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, kind Kind, name string) (*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.items[kind][name]
	if !ok {
		return nil, errdefs.NotFound("%s %q not found", kind, name)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, kind Kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[kind][name]; !ok {
		return errdefs.NotFound("%s %q not found", kind, name)
	}
	delete(s.items[kind], name)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, kind Kind) ([]*Resource, error) {
	s.mu.RLock()
	out := make([]*Resource, 0, len(s.items[kind]))
	for _, r := range s.items[kind] {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
