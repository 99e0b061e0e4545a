// Package customer defines the derived per-customer aggregate view.
package customer

import "time"

// PolicyRef is a lightweight reference to a policy contributing to a derived
// customer row.
type PolicyRef struct {
	ID          string    `json:"id"`
	Number      string    `json:"policy_number"`
	Type        string    `json:"policy_type"`
	TotalAmount string    `json:"total_amount"`
	PolicyDate  time.Time `json:"policy_date"`
}

// Derived is a non-persisted aggregate: one row per distinct customer ID
// number, folded over every policy embedding that ID number.
type Derived struct {
	IDNumber           string      `json:"id_number"`
	FirstName          string      `json:"first_name"`
	LastName           string      `json:"last_name"`
	PhoneNumber        string      `json:"phone_number,omitempty"`
	Address            string      `json:"address,omitempty"`
	City               string      `json:"city,omitempty"`
	PostalCode         string      `json:"postal_code,omitempty"`
	PoliciesCount      int         `json:"policies_count"`
	TotalPolicyValue   float64     `json:"total_policy_value"`
	AssociatedPolicies []PolicyRef `json:"associated_policies"`
}

// Update carries the editable identity fields of a fan-out customer edit.
// The ID number itself is immutable and deliberately absent.
type Update struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
}
