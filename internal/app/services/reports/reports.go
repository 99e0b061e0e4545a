// Package reports computes dashboard and financial summaries over the
// current policy and ledger snapshots. All computations are pure folds over
// the supplied records; empty input yields all-zero summaries.
package reports

import (
	"context"
	"time"

	"github.com/agencydesk/agencydesk/internal/app/dates"
	"github.com/agencydesk/agencydesk/internal/app/domain/ledger"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

// DashboardSummary holds the headline numbers shown on the console landing
// page.
type DashboardSummary struct {
	TotalPolicies       int     `json:"total_policies"`
	TotalPolicyValue    float64 `json:"total_policy_value"`
	TotalCommission     float64 `json:"total_commission"`
	PaidByCustomerCount int     `json:"paid_by_customer_count"`
	PaidToInsurerCount  int     `json:"paid_to_insurer_count"`
	OverdueCount        int     `json:"overdue_count"`
}

// FinancialReport aggregates income, commission and expenses, optionally
// restricted to a day-granular window.
type FinancialReport struct {
	TotalIncome                float64 `json:"total_income"`
	TotalCommission            float64 `json:"total_commission"`
	TotalExpenses              float64 `json:"total_expenses"`
	CommissionNotPaidToInsurer float64 `json:"commission_not_paid_to_insurer"`
	TotalUnpaidToInsurer       float64 `json:"total_unpaid_to_insurer"`
	AmountDueToInsurer         float64 `json:"amount_due_to_insurer"`
	PolicyCount                int     `json:"policy_count"`
	EntryCount                 int     `json:"entry_count"`
}

// Dashboard folds a policy snapshot into the landing-page summary. A policy
// is overdue when its validity ended on an earlier calendar day than now.
func Dashboard(policies []policy.Policy, now time.Time) DashboardSummary {
	var out DashboardSummary
	out.TotalPolicies = len(policies)
	for _, p := range policies {
		out.TotalPolicyValue += p.Amount()
		out.TotalCommission += p.CommissionAmount()
		if p.PaidByCustomer {
			out.PaidByCustomerCount++
		}
		if p.PaidToInsurer {
			out.PaidToInsurerCount++
		}
		if p.ValidUntil != nil && dates.BeforeDay(*p.ValidUntil, now) {
			out.OverdueCount++
		}
	}
	return out
}

// Financial computes the financial report over the given snapshots. When the
// window is non-zero, policies and entries are first filtered to records
// whose effective timestamp falls within it. The policy test prefers
// CreatedAt and falls back to the policy date; the ledger test prefers
// CreatedAt and falls back to the entry's own date.
func Financial(policies []policy.Policy, entries []ledger.Entry, window dates.Range) FinancialReport {
	var out FinancialReport
	for _, p := range policies {
		if !window.IsZero() && !window.Contains(policyTime(p)) {
			continue
		}
		out.PolicyCount++
		out.TotalIncome += p.Amount()
		out.TotalCommission += p.CommissionAmount()
		if !p.PaidToInsurer {
			out.CommissionNotPaidToInsurer += p.CommissionAmount()
			out.TotalUnpaidToInsurer += p.Amount()
		}
	}
	for _, e := range entries {
		if !window.IsZero() && !window.Contains(e.EffectiveTime()) {
			continue
		}
		out.EntryCount++
		if e.Type == ledger.TypeExpense {
			out.TotalExpenses += e.AmountValue()
		}
	}
	out.AmountDueToInsurer = out.TotalUnpaidToInsurer - out.CommissionNotPaidToInsurer
	return out
}

func policyTime(p policy.Policy) time.Time {
	if !p.CreatedAt.IsZero() {
		return p.CreatedAt
	}
	return p.PolicyDate
}

// Service exposes the report computations over the persistence layer.
type Service struct {
	policies storage.PolicyStore
	entries  storage.LedgerStore
	log      *logger.Logger
	now      func() time.Time
}

// New constructs a reports service.
func New(policies storage.PolicyStore, entries storage.LedgerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reports")
	}
	return &Service{
		policies: policies,
		entries:  entries,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the wall clock. Mainly used by tests.
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

// Dashboard computes the landing-page summary from the current snapshot.
func (s *Service) Dashboard(ctx context.Context) (DashboardSummary, error) {
	policies, err := s.policies.ListPolicies(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	return Dashboard(policies, s.now()), nil
}

// Financial computes the financial report, optionally windowed.
func (s *Service) Financial(ctx context.Context, window dates.Range) (FinancialReport, error) {
	policies, err := s.policies.ListPolicies(ctx)
	if err != nil {
		return FinancialReport{}, err
	}
	entries, err := s.entries.ListEntries(ctx)
	if err != nil {
		return FinancialReport{}, err
	}
	return Financial(policies, entries, window), nil
}
