package policies

import (
	"sort"
	"strings"
	"time"

	"github.com/agencydesk/agencydesk/internal/app/dates"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
)

// Tri-state values for the paid filters.
const (
	PaidAll = "all"
	PaidYes = "yes"
	PaidNo  = "no"
)

// Filter narrows a policy snapshot. A policy passes when every populated
// predicate holds; empty fields constrain nothing.
type Filter struct {
	Type           string
	CustomerName   string
	Number         string
	PaidByCustomer string // "all", "yes" or "no"; empty means all
	PaidToInsurer  string
	ValidFrom      time.Time // zero = unbounded
	ValidTo        time.Time
}

// Match evaluates the conjunction of predicates against one policy.
func (f Filter) Match(p policy.Policy) bool {
	if f.Type != "" && !containsFold(string(p.Type), f.Type) {
		return false
	}
	if f.CustomerName != "" &&
		!containsFold(p.Customer.FirstName, f.CustomerName) &&
		!containsFold(p.Customer.LastName, f.CustomerName) {
		return false
	}
	if f.Number != "" && !containsFold(p.Number, f.Number) {
		return false
	}
	if !matchPaid(f.PaidByCustomer, p.PaidByCustomer) {
		return false
	}
	if !matchPaid(f.PaidToInsurer, p.PaidToInsurer) {
		return false
	}
	// Validity bounds only apply when the policy carries a validUntil date.
	if p.ValidUntil != nil {
		if !f.ValidFrom.IsZero() && p.ValidUntil.Before(dates.DayStart(f.ValidFrom)) {
			return false
		}
		if !f.ValidTo.IsZero() && p.ValidUntil.After(dates.DayEnd(f.ValidTo)) {
			return false
		}
	}
	return true
}

func matchPaid(filter string, value bool) bool {
	switch filter {
	case "", PaidAll:
		return true
	default:
		return value == (filter == PaidYes)
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// SortKey selects the ordering column.
type SortKey string

const (
	SortByNumber     SortKey = "policy_number"
	SortByCustomer   SortKey = "customer"
	SortByType       SortKey = "policy_type"
	SortByAmount     SortKey = "total_amount"
	SortByPolicyDate SortKey = "policy_date"
	SortByValidUntil SortKey = "valid_until"
	SortByCreatedAt  SortKey = "created_at"
)

// Sort holds the current ordering selection.
type Sort struct {
	Key        SortKey
	Descending bool
}

// Toggle returns the ordering after the user selects a key: re-selecting the
// current key flips the direction, a new key resets to ascending.
func (s Sort) Toggle(key SortKey) Sort {
	if s.Key == key {
		return Sort{Key: key, Descending: !s.Descending}
	}
	return Sort{Key: key}
}

// Apply filters and orders a snapshot. The input slice is never mutated and
// the sort is stable, so ties keep their prior relative order.
func Apply(policies []policy.Policy, f Filter, s Sort) []policy.Policy {
	result := make([]policy.Policy, 0, len(policies))
	for _, p := range policies {
		if f.Match(p) {
			result = append(result, p)
		}
	}
	if s.Key == "" {
		return result
	}
	sort.SliceStable(result, func(i, j int) bool {
		if s.Descending {
			i, j = j, i
		}
		return lessByKey(result[i], result[j], s.Key)
	})
	return result
}

func lessByKey(a, b policy.Policy, key SortKey) bool {
	switch key {
	case SortByNumber:
		return lessFold(a.Number, b.Number)
	case SortByCustomer:
		return lessFold(a.CustomerName(), b.CustomerName())
	case SortByType:
		return lessFold(string(a.Type), string(b.Type))
	case SortByAmount:
		return a.Amount() < b.Amount()
	case SortByPolicyDate:
		return a.PolicyDate.Before(b.PolicyDate)
	case SortByValidUntil:
		return timeOrZero(a.ValidUntil).Before(timeOrZero(b.ValidUntil))
	case SortByCreatedAt:
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return false
	}
}

func lessFold(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
