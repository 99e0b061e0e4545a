// Package policy defines the policy record and its embedded customer block.
package policy

import (
	"strconv"
	"strings"
	"time"
)

// Type enumerates the kinds of insurance transactions the agency records.
type Type string

const (
	TypeNewPolicy   Type = "New Policy"
	TypePayment     Type = "Policy Payment"
	TypeToll        Type = "Toll"
	TypeAssessment  Type = "Assessment"
	TypeSticker     Type = "Sticker"
	TypeCertificate Type = "Certificate"
)

// Customer is the customer block embedded in every policy. It is not a
// standalone stored entity; the ID number is the business key shared across
// policies and is immutable once referenced.
type Customer struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IDNumber    string `json:"id_number"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
}

// Policy represents one insurance transaction.
//
// Monetary fields keep the denormalized string form the console submits;
// Amount and CommissionAmount coerce them on read so a malformed value
// never aborts an aggregation.
type Policy struct {
	ID             string     `json:"id"`
	Type           Type       `json:"policy_type"`
	Number         string     `json:"policy_number"`
	PolicyDate     time.Time  `json:"policy_date"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	TotalAmount    string     `json:"total_amount"`
	Commission     string     `json:"commission,omitempty"`
	VehicleNumber  string     `json:"vehicle_number,omitempty"`
	InsuranceType  string     `json:"insurance_type,omitempty"`
	PaidByCustomer bool       `json:"paid_by_customer"`
	PaidToInsurer  bool       `json:"paid_to_insurer"`
	Customer       Customer   `json:"customer"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Amount returns the policy total as a number, 0 when blank or unparseable.
func (p Policy) Amount() float64 {
	return ParseAmount(p.TotalAmount)
}

// CommissionAmount returns the commission as a number, 0 when blank or
// unparseable.
func (p Policy) CommissionAmount() float64 {
	return ParseAmount(p.Commission)
}

// CustomerName composes "first last" for display and matching.
func (p Policy) CustomerName() string {
	return strings.TrimSpace(p.Customer.FirstName + " " + p.Customer.LastName)
}

// ParseAmount coerces a form-submitted amount into a float. Absent or
// non-numeric input yields 0, never an error.
func ParseAmount(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatAmount renders a coerced amount back into the stored string form.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
