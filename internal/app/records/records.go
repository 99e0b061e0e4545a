// Package records holds the latest full-collection snapshots pushed by the
// external store. Each push supersedes the previous snapshot entirely, so
// readers never observe a partially-applied update within one collection.
// There is no ordering guarantee between the policy stream and the ledger
// stream; views that join both must tolerate one side being momentarily
// stale.
package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/agencydesk/agencydesk/internal/app/domain/ledger"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
	"github.com/agencydesk/agencydesk/internal/app/metrics"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/app/system"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

var _ system.Service = (*Cache)(nil)

// Cache is the read-only, continuously refreshed snapshot holder. It owns
// no durable state; the external store remains the single owner.
type Cache struct {
	watcher storage.Watcher
	log     *logger.Logger

	mu           sync.RWMutex
	running      bool
	user         string
	policies     []policy.Policy
	entries      []ledger.Entry
	cancelFns    []storage.CancelFunc
	policySynced bool
	ledgerSynced bool
}

// NewCache creates a cache over the given watcher.
func NewCache(watcher storage.Watcher, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDefault("records")
	}
	return &Cache{watcher: watcher, log: log}
}

// Name implements system.Service.
func (c *Cache) Name() string { return "record-cache" }

// Start opens the live subscriptions.
func (c *Cache) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	if err := c.subscribe(ctx); err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return err
	}
	c.log.Info("record cache started")
	return nil
}

// Stop releases the live subscriptions. Skipping this leaks store-side
// listeners.
func (c *Cache) Stop(_ context.Context) error {
	c.mu.Lock()
	cancels := c.cancelFns
	c.cancelFns = nil
	c.running = false
	c.policySynced = false
	c.ledgerSynced = false
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	c.log.Info("record cache stopped")
	return nil
}

// SetUser re-scopes the cache to a new authenticated identity: existing
// subscriptions are released, cached snapshots dropped, and fresh
// subscriptions opened. An empty user just tears down (logout).
func (c *Cache) SetUser(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.user == userID && c.running {
		c.mu.Unlock()
		return nil
	}
	cancels := c.cancelFns
	c.cancelFns = nil
	c.user = userID
	c.policies = nil
	c.entries = nil
	c.policySynced = false
	c.ledgerSynced = false
	running := c.running
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if !running || userID == "" {
		return nil
	}
	c.log.WithField("user_id", userID).Info("record cache re-scoped")
	return c.subscribe(ctx)
}

func (c *Cache) subscribe(ctx context.Context) error {
	cancelPolicies, err := c.watcher.WatchPolicies(ctx, c.setPolicies)
	if err != nil {
		return fmt.Errorf("watch policies: %w", err)
	}
	cancelLedger, err := c.watcher.WatchLedger(ctx, c.setEntries)
	if err != nil {
		cancelPolicies()
		return fmt.Errorf("watch ledger: %w", err)
	}

	c.mu.Lock()
	c.cancelFns = append(c.cancelFns, cancelPolicies, cancelLedger)
	c.mu.Unlock()
	return nil
}

func (c *Cache) setPolicies(snapshot []policy.Policy) {
	c.mu.Lock()
	c.policies = snapshot
	c.policySynced = true
	c.mu.Unlock()
	metrics.RecordSnapshotSize("policies", len(snapshot))
}

func (c *Cache) setEntries(snapshot []ledger.Entry) {
	c.mu.Lock()
	c.entries = snapshot
	c.ledgerSynced = true
	c.mu.Unlock()
	metrics.RecordSnapshotSize("payments_expenses", len(snapshot))
}

// Policies returns the latest policy snapshot.
func (c *Cache) Policies() []policy.Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policies
}

// Entries returns the latest ledger snapshot.
func (c *Cache) Entries() []ledger.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

// Synced reports whether both collections have delivered at least one
// snapshot since the last (re-)subscription.
func (c *Cache) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policySynced && c.ledgerSynced
}
