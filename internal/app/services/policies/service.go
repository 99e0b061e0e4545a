// Package policies implements the mutation gateway and the filter/sort
// engine for policy records.
package policies

import (
	"context"
	"fmt"
	"time"

	"github.com/agencydesk/agencydesk/internal/app/batch"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
	"github.com/agencydesk/agencydesk/internal/app/metrics"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/app/validation"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

// DateLayout is the calendar-date form the console submits.
const DateLayout = "2006-01-02"

// Input carries the denormalized form fields of a policy create or update.
// Parsing and coercion happen in one place here rather than at call sites.
type Input struct {
	Type           string          `json:"policy_type"`
	Number         string          `json:"policy_number"`
	PolicyDate     string          `json:"policy_date"`
	ValidUntil     string          `json:"valid_until"`
	TotalAmount    string          `json:"total_amount"`
	Commission     string          `json:"commission"`
	VehicleNumber  string          `json:"vehicle_number"`
	InsuranceType  string          `json:"insurance_type"`
	PaidByCustomer bool            `json:"paid_by_customer"`
	PaidToInsurer  bool            `json:"paid_to_insurer"`
	Customer       policy.Customer `json:"customer"`
}

// Service validates and forwards policy mutations to the external store and
// answers filtered, sorted views of the current snapshot.
type Service struct {
	store   storage.PolicyStore
	entries storage.LedgerStore
	log     *logger.Logger
}

// New constructs a policies service.
func New(store storage.PolicyStore, entries storage.LedgerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("policies")
	}
	return &Service{store: store, entries: entries, log: log}
}

// Add validates the input and creates a policy. Nothing reaches the store
// when validation fails; the store stamps the creation timestamp.
func (s *Service) Add(ctx context.Context, in Input) (policy.Policy, error) {
	p, err := buildPolicy(in)
	if err != nil {
		return policy.Policy{}, err
	}

	created, err := s.store.CreatePolicy(ctx, p)
	if err != nil {
		return policy.Policy{}, err
	}
	metrics.RecordMutation("policy_create", true)
	s.log.WithField("policy_id", created.ID).
		WithField("policy_number", created.Number).
		Info("policy created")
	return created, nil
}

// Update replaces every field of the policy except its identity and creation
// timestamp. There is no partial-field diffing.
func (s *Service) Update(ctx context.Context, id string, in Input) (policy.Policy, error) {
	if id == "" {
		return policy.Policy{}, validation.Errorf("policy id is required")
	}
	p, err := buildPolicy(in)
	if err != nil {
		return policy.Policy{}, err
	}
	p.ID = id

	updated, err := s.store.UpdatePolicy(ctx, p)
	if err != nil {
		return policy.Policy{}, err
	}
	metrics.RecordMutation("policy_update", true)
	s.log.WithField("policy_id", id).Info("policy updated")
	return updated, nil
}

// Delete removes the policy, then every ledger entry linked to it as a
// best-effort set of independent deletes. The cascade is not transactional:
// the returned batch result reports each entry individually and a partial
// failure leaves the store in a state the caller must reconcile. The
// irreversible-action confirmation happens at the API boundary before this
// method is invoked at all.
func (s *Service) Delete(ctx context.Context, id string) (*batch.Result, error) {
	if id == "" {
		return nil, validation.Errorf("policy id is required")
	}

	linked, err := s.entries.ListEntriesByPolicy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list linked entries: %w", err)
	}

	if err := s.store.DeletePolicy(ctx, id); err != nil {
		return nil, err
	}

	result := batch.NewResult("delete policy cascade")
	for _, e := range linked {
		result.Record(e.ID, s.entries.DeleteEntry(ctx, e.ID))
	}
	metrics.RecordMutation("policy_delete", result.AllOK())
	log := s.log.WithField("policy_id", id).WithField("cascade_count", len(linked))
	if !result.AllOK() {
		log.WithField("failed", result.Failed()).Warn("policy cascade delete incomplete")
	} else {
		log.Info("policy deleted")
	}
	return result, nil
}

// Get retrieves one policy.
func (s *Service) Get(ctx context.Context, id string) (policy.Policy, error) {
	return s.store.GetPolicy(ctx, id)
}

// List returns the unfiltered snapshot.
func (s *Service) List(ctx context.Context) ([]policy.Policy, error) {
	return s.store.ListPolicies(ctx)
}

// Query returns the snapshot narrowed by the filter and ordered by the sort
// selection.
func (s *Service) Query(ctx context.Context, f Filter, sel Sort) ([]policy.Policy, error) {
	snapshot, err := s.store.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(snapshot, f, sel), nil
}

// buildPolicy validates required fields and coerces dates and amounts.
func buildPolicy(in Input) (policy.Policy, error) {
	if in.Number == "" {
		return policy.Policy{}, validation.Errorf("policy number is required")
	}
	if in.TotalAmount == "" {
		return policy.Policy{}, validation.Errorf("total amount is required")
	}
	if in.PolicyDate == "" {
		return policy.Policy{}, validation.Errorf("policy date is required")
	}
	if in.ValidUntil == "" {
		return policy.Policy{}, validation.Errorf("valid until date is required")
	}
	if in.Customer.FirstName == "" || in.Customer.LastName == "" {
		return policy.Policy{}, validation.Errorf("customer first and last name are required")
	}

	policyDate, err := time.Parse(DateLayout, in.PolicyDate)
	if err != nil {
		return policy.Policy{}, validation.Errorf("invalid policy date %q", in.PolicyDate)
	}
	validUntil, err := time.Parse(DateLayout, in.ValidUntil)
	if err != nil {
		return policy.Policy{}, validation.Errorf("invalid valid until date %q", in.ValidUntil)
	}

	total := policy.ParseAmount(in.TotalAmount)
	if total < 0 {
		return policy.Policy{}, validation.Errorf("total amount must not be negative")
	}
	commission := policy.ParseAmount(in.Commission)
	if commission < 0 {
		return policy.Policy{}, validation.Errorf("commission must not be negative")
	}

	return policy.Policy{
		Type:           policy.Type(in.Type),
		Number:         in.Number,
		PolicyDate:     policyDate,
		ValidUntil:     &validUntil,
		TotalAmount:    policy.FormatAmount(total),
		Commission:     policy.FormatAmount(commission),
		VehicleNumber:  in.VehicleNumber,
		InsuranceType:  in.InsuranceType,
		PaidByCustomer: in.PaidByCustomer,
		PaidToInsurer:  in.PaidToInsurer,
		Customer:       in.Customer,
	}, nil
}
