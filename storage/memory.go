package storage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	networks    map[string]NetworkRecord
	runs        map[string]RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.networks = make(map[string]NetworkRecord)
	s.runs = make(map[string]RunRecord)
	return nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, record NetworkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.networks[record.ID] = record
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, id string) (NetworkRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.networks[id]
	return record, ok, nil
}

func (s *MemoryStore) ListNetworks(_ context.Context) ([]NetworkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := slices.Collect(maps.Values(s.networks))
	slices.SortFunc(records, compareNetworks)
	return records, nil
}

func (s *MemoryStore) DeleteNetwork(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.networks, id)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func compareNetworks(a, b NetworkRecord) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
