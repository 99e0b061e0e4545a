// Package memory provides a thread-safe in-memory implementation of the
// storage interfaces. It is intended for tests and for running without a
// configured Supabase deployment, and it deliberately keeps the
// implementation simple.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agencydesk/agencydesk/internal/app/domain/ledger"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
	"github.com/agencydesk/agencydesk/internal/app/storage"
)

// Store is an in-memory policy and ledger store with snapshot watchers.
// Listing preserves insertion order so derived views are deterministic.
type Store struct {
	mu          sync.RWMutex
	policies    map[string]policy.Policy
	policyOrder []string
	entries     map[string]ledger.Entry
	entryOrder  []string

	watchSeq      int
	policyWatches map[int]func([]policy.Policy)
	ledgerWatches map[int]func([]ledger.Entry)
}

var (
	_ storage.PolicyStore = (*Store)(nil)
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.Watcher     = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		policies:      make(map[string]policy.Policy),
		entries:       make(map[string]ledger.Entry),
		policyWatches: make(map[int]func([]policy.Policy)),
		ledgerWatches: make(map[int]func([]ledger.Entry)),
	}
}

// PolicyStore implementation ---------------------------------------------------

func (s *Store) CreatePolicy(_ context.Context, p policy.Policy) (policy.Policy, error) {
	s.mu.Lock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, exists := s.policies[p.ID]; exists {
		s.mu.Unlock()
		return policy.Policy{}, fmt.Errorf("policy %s already exists", p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.policies[p.ID] = p
	s.policyOrder = append(s.policyOrder, p.ID)
	snapshot, fns := s.policySnapshotLocked()
	s.mu.Unlock()

	notifyPolicies(fns, snapshot)
	return p, nil
}

func (s *Store) UpdatePolicy(_ context.Context, p policy.Policy) (policy.Policy, error) {
	s.mu.Lock()
	original, ok := s.policies[p.ID]
	if !ok {
		s.mu.Unlock()
		return policy.Policy{}, fmt.Errorf("policy %s: %w", p.ID, storage.ErrNotFound)
	}
	p.CreatedAt = original.CreatedAt
	s.policies[p.ID] = p
	snapshot, fns := s.policySnapshotLocked()
	s.mu.Unlock()

	notifyPolicies(fns, snapshot)
	return p, nil
}

func (s *Store) GetPolicy(_ context.Context, id string) (policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return policy.Policy{}, fmt.Errorf("policy %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPolicies(_ context.Context) ([]policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPoliciesLocked(), nil
}

func (s *Store) DeletePolicy(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.policies[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("policy %s: %w", id, storage.ErrNotFound)
	}
	delete(s.policies, id)
	s.policyOrder = removeID(s.policyOrder, id)
	snapshot, fns := s.policySnapshotLocked()
	s.mu.Unlock()

	notifyPolicies(fns, snapshot)
	return nil
}

// LedgerStore implementation ---------------------------------------------------

func (s *Store) CreateEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	} else if _, exists := s.entries[e.ID]; exists {
		s.mu.Unlock()
		return ledger.Entry{}, fmt.Errorf("ledger entry %s already exists", e.ID)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries[e.ID] = e
	s.entryOrder = append(s.entryOrder, e.ID)
	snapshot, fns := s.ledgerSnapshotLocked()
	s.mu.Unlock()

	notifyLedger(fns, snapshot)
	return e, nil
}

func (s *Store) GetEntry(_ context.Context, id string) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return ledger.Entry{}, fmt.Errorf("ledger entry %s: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

func (s *Store) ListEntries(_ context.Context) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEntriesLocked(), nil
}

func (s *Store) ListEntriesByPolicy(_ context.Context, policyID string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.Entry
	for _, id := range s.entryOrder {
		if e := s.entries[id]; e.PolicyID == policyID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.entries[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("ledger entry %s: %w", id, storage.ErrNotFound)
	}
	delete(s.entries, id)
	s.entryOrder = removeID(s.entryOrder, id)
	snapshot, fns := s.ledgerSnapshotLocked()
	s.mu.Unlock()

	notifyLedger(fns, snapshot)
	return nil
}

// Watcher implementation -------------------------------------------------------

func (s *Store) WatchPolicies(_ context.Context, fn func([]policy.Policy)) (storage.CancelFunc, error) {
	s.mu.Lock()
	s.watchSeq++
	id := s.watchSeq
	s.policyWatches[id] = fn
	snapshot := s.listPoliciesLocked()
	s.mu.Unlock()

	// Initial snapshot so the subscriber never waits for the first mutation.
	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.policyWatches, id)
		s.mu.Unlock()
	}, nil
}

func (s *Store) WatchLedger(_ context.Context, fn func([]ledger.Entry)) (storage.CancelFunc, error) {
	s.mu.Lock()
	s.watchSeq++
	id := s.watchSeq
	s.ledgerWatches[id] = fn
	snapshot := s.listEntriesLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.ledgerWatches, id)
		s.mu.Unlock()
	}, nil
}

// Helpers ----------------------------------------------------------------------

func (s *Store) listPoliciesLocked() []policy.Policy {
	result := make([]policy.Policy, 0, len(s.policyOrder))
	for _, id := range s.policyOrder {
		result = append(result, s.policies[id])
	}
	return result
}

func (s *Store) listEntriesLocked() []ledger.Entry {
	result := make([]ledger.Entry, 0, len(s.entryOrder))
	for _, id := range s.entryOrder {
		result = append(result, s.entries[id])
	}
	return result
}

func (s *Store) policySnapshotLocked() ([]policy.Policy, []func([]policy.Policy)) {
	fns := make([]func([]policy.Policy), 0, len(s.policyWatches))
	for _, fn := range s.policyWatches {
		fns = append(fns, fn)
	}
	return s.listPoliciesLocked(), fns
}

func (s *Store) ledgerSnapshotLocked() ([]ledger.Entry, []func([]ledger.Entry)) {
	fns := make([]func([]ledger.Entry), 0, len(s.ledgerWatches))
	for _, fn := range s.ledgerWatches {
		fns = append(fns, fn)
	}
	return s.listEntriesLocked(), fns
}

func notifyPolicies(fns []func([]policy.Policy), snapshot []policy.Policy) {
	for _, fn := range fns {
		fn(snapshot)
	}
}

func notifyLedger(fns []func([]ledger.Entry), snapshot []ledger.Entry) {
	for _, fn := range fns {
		fn(snapshot)
	}
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
