// Package app assembles the brokerage console application: stores,
// domain services and lifecycle-managed runners behind one constructor.
package app

import (
	"context"
	"fmt"

	"github.com/agencydesk/agencydesk/internal/app/records"
	"github.com/agencydesk/agencydesk/internal/app/services/customers"
	"github.com/agencydesk/agencydesk/internal/app/services/ledgers"
	"github.com/agencydesk/agencydesk/internal/app/services/policies"
	"github.com/agencydesk/agencydesk/internal/app/services/reports"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/app/storage/memory"
	"github.com/agencydesk/agencydesk/internal/app/system"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

// Stores bundles the persistence dependencies. Leave fields nil to run on
// a shared in-memory store, which is what tests and local development use.
type Stores struct {
	Policies storage.PolicyStore
	Ledger   storage.LedgerStore
	Watcher  storage.Watcher
}

// Application wires stores, services and runners together.
type Application struct {
	Policies  *policies.Service
	Ledgers   *ledgers.Service
	Customers *customers.Service
	Reports   *reports.Service
	Records   *records.Cache

	manager *system.Manager
	log     *logger.Logger
}

// New builds the application. Missing stores default to one in-memory
// store backing all three roles.
func New(stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Policies == nil || stores.Ledger == nil || stores.Watcher == nil {
		mem := memory.New()
		if stores.Policies == nil {
			stores.Policies = mem
		}
		if stores.Ledger == nil {
			stores.Ledger = mem
		}
		if stores.Watcher == nil {
			stores.Watcher = mem
		}
	}

	app := &Application{
		Policies:  policies.New(stores.Policies, stores.Ledger, log.WithField("service", "policies")),
		Ledgers:   ledgers.New(stores.Ledger, log.WithField("service", "ledgers")),
		Customers: customers.New(stores.Policies, log.WithField("service", "customers")),
		Reports:   reports.New(stores.Policies, stores.Ledger, log.WithField("service", "reports")),
		Records:   records.NewCache(stores.Watcher, log.WithField("service", "records")),
		manager:   system.NewManager(),
		log:       log,
	}

	if err := app.manager.Register(app.Records); err != nil {
		return nil, fmt.Errorf("register record cache: %w", err)
	}
	return app, nil
}

// Start brings up the managed runners.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts the managed runners down in reverse start order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
