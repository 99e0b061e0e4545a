// Package customers derives the per-customer aggregate view from the policy
// snapshot and applies customer edits across every policy sharing the same
// ID number.
package customers

import (
	"context"
	"fmt"

	"github.com/agencydesk/agencydesk/internal/app/batch"
	"github.com/agencydesk/agencydesk/internal/app/domain/customer"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
	"github.com/agencydesk/agencydesk/internal/app/metrics"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/app/validation"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

// Derive folds a policy snapshot into one row per distinct customer ID
// number. Policies without an ID number are skipped; identity fields come
// from the first policy seen and rows keep first-appearance order.
func Derive(policies []policy.Policy) []customer.Derived {
	index := make(map[string]int)
	var rows []customer.Derived

	for _, p := range policies {
		idNumber := p.Customer.IDNumber
		if idNumber == "" {
			continue
		}
		i, seen := index[idNumber]
		if !seen {
			c := p.Customer
			rows = append(rows, customer.Derived{
				IDNumber:    idNumber,
				FirstName:   c.FirstName,
				LastName:    c.LastName,
				PhoneNumber: c.PhoneNumber,
				Address:     c.Address,
				City:        c.City,
				PostalCode:  c.PostalCode,
			})
			i = len(rows) - 1
			index[idNumber] = i
		}
		rows[i].PoliciesCount++
		rows[i].TotalPolicyValue += p.Amount()
		rows[i].AssociatedPolicies = append(rows[i].AssociatedPolicies, customer.PolicyRef{
			ID:          p.ID,
			Number:      p.Number,
			Type:        string(p.Type),
			TotalAmount: p.TotalAmount,
			PolicyDate:  p.PolicyDate,
		})
	}
	return rows
}

// Service exposes the derived view and the fan-out customer update.
type Service struct {
	store storage.PolicyStore
	log   *logger.Logger
}

// New constructs a customers service.
func New(store storage.PolicyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("customers")
	}
	return &Service{store: store, log: log}
}

// List derives the customer rows from the current policy snapshot.
func (s *Service) List(ctx context.Context) ([]customer.Derived, error) {
	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	return Derive(policies), nil
}

// Get returns the derived row for one ID number.
func (s *Service) Get(ctx context.Context, idNumber string) (customer.Derived, error) {
	if idNumber == "" {
		return customer.Derived{}, validation.Errorf("customer id number is required")
	}
	rows, err := s.List(ctx)
	if err != nil {
		return customer.Derived{}, err
	}
	for _, row := range rows {
		if row.IDNumber == idNumber {
			return row, nil
		}
	}
	return customer.Derived{}, fmt.Errorf("customer %s: %w", idNumber, storage.ErrNotFound)
}

// UpdateAcross writes the editable identity fields through to every policy
// whose embedded customer carries the ID number. The writes are independent
// and not transactional: the batch result reports each policy individually,
// and a partial failure is a terminal state the caller must surface.
func (s *Service) UpdateAcross(ctx context.Context, idNumber string, upd customer.Update) (*batch.Result, error) {
	if idNumber == "" {
		return nil, validation.Errorf("customer id number is required")
	}

	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}

	result := batch.NewResult("update customer across policies")
	for _, p := range policies {
		if p.Customer.IDNumber != idNumber {
			continue
		}
		p.Customer.FirstName = upd.FirstName
		p.Customer.LastName = upd.LastName
		p.Customer.PhoneNumber = upd.PhoneNumber
		p.Customer.Address = upd.Address
		p.Customer.City = upd.City
		p.Customer.PostalCode = upd.PostalCode

		_, err := s.store.UpdatePolicy(ctx, p)
		result.Record(p.ID, err)
		metrics.RecordFanoutWrite("customer_update", err == nil)
	}

	if len(result.Items) == 0 {
		return nil, fmt.Errorf("customer %s: %w", idNumber, storage.ErrNotFound)
	}

	log := s.log.WithField("id_number", idNumber).WithField("policies", len(result.Items))
	if !result.AllOK() {
		log.WithField("failed", result.Failed()).Warn("customer fan-out update incomplete")
	} else {
		log.Info("customer updated across policies")
	}
	return result, nil
}
