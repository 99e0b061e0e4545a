// Package ledgers implements the mutation gateway for payment and expense
// entries and the per-policy linked view.
package ledgers

import (
	"context"
	"sort"
	"time"

	"github.com/agencydesk/agencydesk/internal/app/domain/ledger"
	"github.com/agencydesk/agencydesk/internal/app/metrics"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/app/validation"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

// DateLayout is the calendar-date form the console submits.
const DateLayout = "2006-01-02"

// Input carries the form fields of a ledger entry create. PolicyID is
// optional; empty means the entry is unlinked.
type Input struct {
	Type     string `json:"type"`
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Reason   string `json:"reason"`
	PolicyID string `json:"policy_id"`
}

// Service validates and forwards ledger mutations to the external store.
type Service struct {
	store storage.LedgerStore
	log   *logger.Logger
}

// New constructs a ledger service.
func New(store storage.LedgerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledgers")
	}
	return &Service{store: store, log: log}
}

// Add validates the input and creates an entry. Entries have no update
// operation; a mistake is deleted and re-entered.
func (s *Service) Add(ctx context.Context, in Input) (ledger.Entry, error) {
	if in.Date == "" {
		return ledger.Entry{}, validation.Errorf("date is required")
	}
	if in.Amount == "" {
		return ledger.Entry{}, validation.Errorf("amount is required")
	}
	switch ledger.EntryType(in.Type) {
	case ledger.TypePayment, ledger.TypeExpense:
	case "":
		return ledger.Entry{}, validation.Errorf("type is required")
	default:
		return ledger.Entry{}, validation.Errorf("unknown entry type %q", in.Type)
	}

	date, err := time.Parse(DateLayout, in.Date)
	if err != nil {
		return ledger.Entry{}, validation.Errorf("invalid date %q", in.Date)
	}

	created, err := s.store.CreateEntry(ctx, ledger.Entry{
		Type:     ledger.EntryType(in.Type),
		Date:     date,
		Amount:   in.Amount,
		Reason:   in.Reason,
		PolicyID: in.PolicyID,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	metrics.RecordMutation("entry_create", true)
	s.log.WithField("entry_id", created.ID).
		WithField("type", created.Type).
		Info("ledger entry created")
	return created, nil
}

// Delete removes one entry. The irreversible-action confirmation happens at
// the API boundary before this method is invoked.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return validation.Errorf("entry id is required")
	}
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	metrics.RecordMutation("entry_delete", true)
	s.log.WithField("entry_id", id).Info("ledger entry deleted")
	return nil
}

// List returns the unfiltered snapshot.
func (s *Service) List(ctx context.Context) ([]ledger.Entry, error) {
	return s.store.ListEntries(ctx)
}

// ListForPolicy returns the entries linked to a policy, newest first by
// creation time, falling back to the entry date when the store never
// stamped one.
func (s *Service) ListForPolicy(ctx context.Context, policyID string) ([]ledger.Entry, error) {
	if policyID == "" {
		return nil, validation.Errorf("policy id is required")
	}
	entries, err := s.store.ListEntriesByPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EffectiveTime().After(entries[j].EffectiveTime())
	})
	return entries, nil
}
