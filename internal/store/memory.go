package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the fallback backend when neither Postgres nor Redis is
// configured. Snapshots do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]Project)}
}

func (s *MemoryStore) Save(_ context.Context, p Project) error {
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}
	p.Data = append([]byte(nil), p.Data...)
	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Project, error) {
	s.mu.RLock()
	p, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return Project{}, ErrNotFound
	}
	p.Data = append([]byte(nil), p.Data...)
	return p, nil
}

func (s *MemoryStore) List(_ context.Context) ([]ProjectInfo, error) {
	s.mu.RLock()
	infos := make([]ProjectInfo, 0, len(s.projects))
	for _, p := range s.projects {
		infos = append(infos, p.info())
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].SavedAt.Equal(infos[j].SavedAt) {
			return infos[i].SavedAt.After(infos[j].SavedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
