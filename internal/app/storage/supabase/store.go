// Package supabase implements the storage interfaces over the hosted
// Supabase deployment. Rows are scoped to one user by a namespace of the
// form artifacts/{deployment}/users/{userID}; the creation timestamp is
// stamped server-side. The watcher polls the REST surface and pushes full
// snapshots, preserving the whole-collection-replacement contract.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/agencydesk/agencydesk/internal/app/domain/ledger"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/database"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

const (
	policiesTable = "policies"
	entriesTable  = "payments_expenses"

	defaultPollInterval = 5 * time.Second
)

// Store is a Supabase-backed policy and ledger store.
type Store struct {
	client       *database.Client
	namespace    string
	log          *logger.Logger
	pollInterval time.Duration
}

var (
	_ storage.PolicyStore = (*Store)(nil)
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.Watcher     = (*Store)(nil)
)

// New creates a store scoped to one user of one deployment.
func New(client *database.Client, deployment, userID string, log *logger.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("supabase client is required")
	}
	if deployment == "" || userID == "" {
		return nil, fmt.Errorf("deployment and user id are required")
	}
	if log == nil {
		log = logger.NewDefault("supabase-store")
	}
	return &Store{
		client:       client,
		namespace:    fmt.Sprintf("artifacts/%s/users/%s", deployment, userID),
		log:          log,
		pollInterval: defaultPollInterval,
	}, nil
}

// WithPollInterval adjusts how often the watcher refreshes snapshots.
func (s *Store) WithPollInterval(d time.Duration) *Store {
	if d > 0 {
		s.pollInterval = d
	}
	return s
}

func (s *Store) scopeQuery(extra string) string {
	q := "namespace=eq." + url.QueryEscape(s.namespace)
	if extra != "" {
		q += "&" + extra
	}
	return q
}

// PolicyStore implementation ---------------------------------------------------

func (s *Store) CreatePolicy(ctx context.Context, p policy.Policy) (policy.Policy, error) {
	row := toPolicyRow(s.namespace, p)
	data, err := s.client.Request(ctx, "POST", policiesTable, row, "")
	if err != nil {
		return policy.Policy{}, err
	}
	var rows []policyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return policy.Policy{}, fmt.Errorf("unmarshal policies: %w", err)
	}
	if len(rows) == 0 {
		return policy.Policy{}, fmt.Errorf("create policy: store returned no row")
	}
	return rows[0].toDomain(), nil
}

func (s *Store) UpdatePolicy(ctx context.Context, p policy.Policy) (policy.Policy, error) {
	if p.ID == "" {
		return policy.Policy{}, fmt.Errorf("policy id is required")
	}
	row := toPolicyRow(s.namespace, p)
	row.ID = ""         // identity never changes
	row.CreatedAt = nil // immutable once stamped
	data, err := s.client.Request(ctx, "PATCH", policiesTable, row, s.scopeQuery("id=eq."+url.QueryEscape(p.ID)))
	if err != nil {
		return policy.Policy{}, err
	}
	var rows []policyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return policy.Policy{}, fmt.Errorf("unmarshal policies: %w", err)
	}
	if len(rows) == 0 {
		return policy.Policy{}, fmt.Errorf("policy %s: %w", p.ID, storage.ErrNotFound)
	}
	return rows[0].toDomain(), nil
}

func (s *Store) GetPolicy(ctx context.Context, id string) (policy.Policy, error) {
	data, err := s.client.Request(ctx, "GET", policiesTable, nil, s.scopeQuery("id=eq."+url.QueryEscape(id)+"&limit=1"))
	if err != nil {
		return policy.Policy{}, err
	}
	var rows []policyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return policy.Policy{}, fmt.Errorf("unmarshal policies: %w", err)
	}
	if len(rows) == 0 {
		return policy.Policy{}, fmt.Errorf("policy %s: %w", id, storage.ErrNotFound)
	}
	return rows[0].toDomain(), nil
}

func (s *Store) ListPolicies(ctx context.Context) ([]policy.Policy, error) {
	data, err := s.client.Request(ctx, "GET", policiesTable, nil, s.scopeQuery("order=created_at.asc"))
	if err != nil {
		return nil, err
	}
	var rows []policyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal policies: %w", err)
	}
	policies := make([]policy.Policy, 0, len(rows))
	for _, row := range rows {
		policies = append(policies, row.toDomain())
	}
	return policies, nil
}

func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	_, err := s.client.Request(ctx, "DELETE", policiesTable, nil, s.scopeQuery("id=eq."+url.QueryEscape(id)))
	return err
}

// LedgerStore implementation ---------------------------------------------------

func (s *Store) CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	row := toEntryRow(s.namespace, e)
	data, err := s.client.Request(ctx, "POST", entriesTable, row, "")
	if err != nil {
		return ledger.Entry{}, err
	}
	var rows []entryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return ledger.Entry{}, fmt.Errorf("unmarshal entries: %w", err)
	}
	if len(rows) == 0 {
		return ledger.Entry{}, fmt.Errorf("create entry: store returned no row")
	}
	return rows[0].toDomain(), nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (ledger.Entry, error) {
	data, err := s.client.Request(ctx, "GET", entriesTable, nil, s.scopeQuery("id=eq."+url.QueryEscape(id)+"&limit=1"))
	if err != nil {
		return ledger.Entry{}, err
	}
	var rows []entryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return ledger.Entry{}, fmt.Errorf("unmarshal entries: %w", err)
	}
	if len(rows) == 0 {
		return ledger.Entry{}, fmt.Errorf("ledger entry %s: %w", id, storage.ErrNotFound)
	}
	return rows[0].toDomain(), nil
}

func (s *Store) ListEntries(ctx context.Context) ([]ledger.Entry, error) {
	return s.listEntries(ctx, "")
}

func (s *Store) ListEntriesByPolicy(ctx context.Context, policyID string) ([]ledger.Entry, error) {
	return s.listEntries(ctx, "policy_id=eq."+url.QueryEscape(policyID))
}

func (s *Store) listEntries(ctx context.Context, extra string) ([]ledger.Entry, error) {
	query := "order=created_at.asc"
	if extra != "" {
		query = extra + "&" + query
	}
	data, err := s.client.Request(ctx, "GET", entriesTable, nil, s.scopeQuery(query))
	if err != nil {
		return nil, err
	}
	var rows []entryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	_, err := s.client.Request(ctx, "DELETE", entriesTable, nil, s.scopeQuery("id=eq."+url.QueryEscape(id)))
	return err
}

// Watcher implementation -------------------------------------------------------
//
// The REST surface has no push channel, so watching is a poll loop that
// delivers each fetched list as a full snapshot. Cancellation stops the
// loop; errors are logged and the previous snapshot stays current.

func (s *Store) WatchPolicies(ctx context.Context, fn func([]policy.Policy)) (storage.CancelFunc, error) {
	return s.poll(ctx, "policies", func(ctx context.Context) error {
		policies, err := s.ListPolicies(ctx)
		if err != nil {
			return err
		}
		fn(policies)
		return nil
	})
}

func (s *Store) WatchLedger(ctx context.Context, fn func([]ledger.Entry)) (storage.CancelFunc, error) {
	return s.poll(ctx, "ledger", func(ctx context.Context) error {
		entries, err := s.ListEntries(ctx)
		if err != nil {
			return err
		}
		fn(entries)
		return nil
	})
}

func (s *Store) poll(ctx context.Context, name string, refresh func(context.Context) error) (storage.CancelFunc, error) {
	if err := refresh(ctx); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				tickCtx, tickCancel := context.WithTimeout(loopCtx, s.pollInterval)
				if err := refresh(tickCtx); err != nil {
					s.log.WithError(err).WithField("collection", name).Warn("snapshot refresh failed")
				}
				tickCancel()
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}
