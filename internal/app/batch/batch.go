// Package batch reports per-item outcomes of non-transactional fan-out
// mutations. Cascade deletes and customer-wide updates issue N independent
// writes; callers must be able to tell full success, partial success, and
// full failure apart instead of receiving a single collapsed error.
package batch

import (
	"fmt"
	"strings"
)

// Item records the outcome of one write in a fan-out operation.
type Item struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// OK reports whether this item's write succeeded.
func (i Item) OK() bool { return i.Error == "" }

// Result aggregates the outcomes of a fan-out operation.
type Result struct {
	Operation string `json:"operation"`
	Items     []Item `json:"items"`
}

// NewResult creates an empty result for the named operation.
func NewResult(operation string) *Result {
	return &Result{Operation: operation}
}

// Record appends one item outcome. A nil err marks success.
func (r *Result) Record(id string, err error) {
	item := Item{ID: id}
	if err != nil {
		item.Error = err.Error()
	}
	r.Items = append(r.Items, item)
}

// Succeeded counts items that completed.
func (r *Result) Succeeded() int {
	n := 0
	for _, item := range r.Items {
		if item.OK() {
			n++
		}
	}
	return n
}

// Failed counts items that did not complete.
func (r *Result) Failed() int {
	return len(r.Items) - r.Succeeded()
}

// AllOK reports whether every item succeeded.
func (r *Result) AllOK() bool { return r.Failed() == 0 }

// Err returns nil on full success, otherwise an error summarising the
// partial or total failure. The per-item detail stays available on the
// result; there is no rollback to attempt.
func (r *Result) Err() error {
	failed := r.Failed()
	if failed == 0 {
		return nil
	}
	var msgs []string
	for _, item := range r.Items {
		if !item.OK() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", item.ID, item.Error))
		}
	}
	return fmt.Errorf("%s: %d of %d writes failed: %s",
		r.Operation, failed, len(r.Items), strings.Join(msgs, "; "))
}
