package remote

import (
	"context"
	"sync"

	"lottery-panel/database/model"

	"go.uber.org/atomic"
)

// MemoryStore implements SyncClient fully in-process with the same
// compare-and-swap semantics as the hosted store. It backs local mode
// and is the concurrency harness for tests; the offline switch forces
// every call to ErrUnavailable.
type MemoryStore struct {
	mu           sync.Mutex
	tickets      map[string]*model.Ticket
	listeners    map[string]map[int64]func(*model.Ticket)
	nextListener int64

	offline atomic.Bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:   make(map[string]*model.Ticket),
		listeners: make(map[string]map[int64]func(*model.Ticket)),
	}
}

// SetOffline toggles simulated connectivity loss.
func (s *MemoryStore) SetOffline(offline bool) {
	s.offline.Store(offline)
}

func (s *MemoryStore) Fetch(ctx context.Context, id string) (*model.Ticket, error) {
	if s.offline.Load() {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) ConditionalWrite(ctx context.Context, t *model.Ticket, expectedVersion int64) (*WriteResult, error) {
	if s.offline.Load() {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	s.mu.Lock()
	current, exists := s.tickets[t.Id]
	var currentVersion int64
	if exists {
		currentVersion = current.Version
	}
	if currentVersion != expectedVersion || t.Version != expectedVersion+1 {
		var copy *model.Ticket
		if exists {
			copy = current.Clone()
		}
		s.mu.Unlock()
		return &WriteResult{Committed: false, Current: copy}, nil
	}
	stored := t.Clone()
	s.tickets[t.Id] = stored
	fns := make([]func(*model.Ticket), 0, len(s.listeners[stored.DrawId]))
	for _, fn := range s.listeners[stored.DrawId] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(stored.Clone())
	}
	return &WriteResult{Committed: true, Current: stored.Clone()}, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, drawId string, fn func(*model.Ticket)) (func(), error) {
	if s.offline.Load() {
		return nil, ErrUnavailable
	}
	s.mu.Lock()
	s.nextListener++
	id := s.nextListener
	if s.listeners[drawId] == nil {
		s.listeners[drawId] = make(map[int64]func(*model.Ticket))
	}
	s.listeners[drawId][id] = fn
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.listeners[drawId], id)
		s.mu.Unlock()
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return cancel, nil
}

// Seed installs a ticket directly, bypassing the CAS path. Test setup
// only.
func (s *MemoryStore) Seed(t *model.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.Id] = t.Clone()
}

// Get returns the stored copy without availability checks. Test
// inspection only.
func (s *MemoryStore) Get(id string) *model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil
	}
	return t.Clone()
}
