// Package ledger defines payment and expense entries.
package ledger

import (
	"time"

	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
)

// EntryType distinguishes money received from money spent.
type EntryType string

const (
	TypePayment EntryType = "Payment"
	TypeExpense EntryType = "Expense"
)

// Entry represents one ledger record. PolicyID is empty for unlinked entries.
// Entries are never updated in place; they are created and deleted only.
type Entry struct {
	ID        string    `json:"id"`
	Type      EntryType `json:"type"`
	Date      time.Time `json:"date"`
	Amount    string    `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	PolicyID  string    `json:"policy_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AmountValue returns the entry amount as a number, 0 when unparseable.
func (e Entry) AmountValue() float64 {
	return policy.ParseAmount(e.Amount)
}

// EffectiveTime is the timestamp used for ordering and report windows:
// CreatedAt when the store stamped one, otherwise the entry's own date.
func (e Entry) EffectiveTime() time.Time {
	if !e.CreatedAt.IsZero() {
		return e.CreatedAt
	}
	return e.Date
}
