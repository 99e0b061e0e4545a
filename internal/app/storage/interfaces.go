// Package storage defines the persistence boundary of the application.
// Durable state is owned by the external document store; implementations
// here are either the hosted Supabase deployment or the in-memory store
// used for tests and prototyping.
package storage

import (
	"context"
	"errors"

	"github.com/agencydesk/agencydesk/internal/app/domain/ledger"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
)

// ErrNotFound marks lookups for records the store does not hold.
// Implementations wrap it so callers can test with errors.Is.
var ErrNotFound = errors.New("not found")

// PolicyStore persists policy records. CreatedAt is stamped by the store at
// write time and is immutable afterwards; updates replace all other fields
// wholesale.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, p policy.Policy) (policy.Policy, error)
	UpdatePolicy(ctx context.Context, p policy.Policy) (policy.Policy, error)
	GetPolicy(ctx context.Context, id string) (policy.Policy, error)
	ListPolicies(ctx context.Context) ([]policy.Policy, error)
	DeletePolicy(ctx context.Context, id string) error
}

// LedgerStore persists payment and expense entries. Entries are never
// updated in place.
type LedgerStore interface {
	CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
	GetEntry(ctx context.Context, id string) (ledger.Entry, error)
	ListEntries(ctx context.Context) ([]ledger.Entry, error)
	ListEntriesByPolicy(ctx context.Context, policyID string) ([]ledger.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// CancelFunc releases a live subscription. It must be called when the
// subscriber goes away, or the store leaks listeners.
type CancelFunc func()

// Watcher pushes full-collection snapshots to subscribers. Every push
// supersedes the previous one entirely; there is no ordering guarantee
// between the policy stream and the ledger stream.
type Watcher interface {
	WatchPolicies(ctx context.Context, fn func([]policy.Policy)) (CancelFunc, error)
	WatchLedger(ctx context.Context, fn func([]ledger.Entry)) (CancelFunc, error)
}
