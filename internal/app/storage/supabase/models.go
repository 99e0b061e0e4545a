package supabase

import (
	"time"

	"github.com/agencydesk/agencydesk/internal/app/domain/ledger"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
)

// policyRow is the PostgREST representation of a policy. The embedded
// customer block stays a JSON document, matching the denormalized shape the
// console stores. Namespace scopes rows to one user of one deployment.
type policyRow struct {
	ID             string          `json:"id,omitempty"`
	Namespace      string          `json:"namespace"`
	PolicyType     string          `json:"policy_type"`
	PolicyNumber   string          `json:"policy_number"`
	PolicyDate     time.Time       `json:"policy_date"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	TotalAmount    string          `json:"total_amount"`
	Commission     string          `json:"commission,omitempty"`
	VehicleNumber  string          `json:"vehicle_number,omitempty"`
	InsuranceType  string          `json:"insurance_type,omitempty"`
	PaidByCustomer bool            `json:"paid_by_customer"`
	PaidToInsurer  bool            `json:"paid_to_insurer"`
	Customer       policy.Customer `json:"customer"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

type entryRow struct {
	ID        string     `json:"id,omitempty"`
	Namespace string     `json:"namespace"`
	Type      string     `json:"type"`
	Date      time.Time  `json:"date"`
	Amount    string     `json:"amount"`
	Reason    string     `json:"reason,omitempty"`
	PolicyID  string     `json:"policy_id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func toPolicyRow(namespace string, p policy.Policy) policyRow {
	row := policyRow{
		ID:             p.ID,
		Namespace:      namespace,
		PolicyType:     string(p.Type),
		PolicyNumber:   p.Number,
		PolicyDate:     p.PolicyDate,
		ValidUntil:     p.ValidUntil,
		TotalAmount:    p.TotalAmount,
		Commission:     p.Commission,
		VehicleNumber:  p.VehicleNumber,
		InsuranceType:  p.InsuranceType,
		PaidByCustomer: p.PaidByCustomer,
		PaidToInsurer:  p.PaidToInsurer,
		Customer:       p.Customer,
	}
	return row
}

func (r policyRow) toDomain() policy.Policy {
	p := policy.Policy{
		ID:             r.ID,
		Type:           policy.Type(r.PolicyType),
		Number:         r.PolicyNumber,
		PolicyDate:     r.PolicyDate,
		ValidUntil:     r.ValidUntil,
		TotalAmount:    r.TotalAmount,
		Commission:     r.Commission,
		VehicleNumber:  r.VehicleNumber,
		InsuranceType:  r.InsuranceType,
		PaidByCustomer: r.PaidByCustomer,
		PaidToInsurer:  r.PaidToInsurer,
		Customer:       r.Customer,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

func toEntryRow(namespace string, e ledger.Entry) entryRow {
	return entryRow{
		ID:        e.ID,
		Namespace: namespace,
		Type:      string(e.Type),
		Date:      e.Date,
		Amount:    e.Amount,
		Reason:    e.Reason,
		PolicyID:  e.PolicyID,
	}
}

func (r entryRow) toDomain() ledger.Entry {
	e := ledger.Entry{
		ID:       r.ID,
		Type:     ledger.EntryType(r.Type),
		Date:     r.Date,
		Amount:   r.Amount,
		Reason:   r.Reason,
		PolicyID: r.PolicyID,
	}
	if r.CreatedAt != nil {
		e.CreatedAt = *r.CreatedAt
	}
	return e
}
