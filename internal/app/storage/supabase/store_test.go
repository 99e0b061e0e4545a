package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/database"
)

// fakeREST is a minimal PostgREST stand-in for the policies table.
type fakeREST struct {
	t *testing.T

	mu   sync.Mutex
	rows []policyRow
}

func (f *fakeREST) seed(row policyRow) {
	f.mu.Lock()
	f.rows = append(f.rows, row)
	f.mu.Unlock()
}

func (f *fakeREST) snapshot() []policyRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]policyRow(nil), f.rows...)
}

func (f *fakeREST) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/policies" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		query := r.URL.Query()
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			var row policyRow
			if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
				f.t.Errorf("decode insert: %v", err)
			}
			row.ID = "generated-1"
			now := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
			row.CreatedAt = &now
			f.rows = append(f.rows, row)
			writeRows(w, []policyRow{row})
		case http.MethodGet:
			writeRows(w, f.match(query))
		case http.MethodDelete:
			kept := f.rows[:0]
			for _, row := range f.rows {
				if !rowMatches(row, query) {
					kept = append(kept, row)
				}
			}
			f.rows = kept
			writeRows(w, nil)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakeREST) match(query url.Values) []policyRow {
	var out []policyRow
	for _, row := range f.rows {
		if rowMatches(row, query) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row policyRow, query url.Values) bool {
	if ns := query.Get("namespace"); ns != "" && ns != "eq."+row.Namespace {
		return false
	}
	if id := query.Get("id"); id != "" && id != "eq."+row.ID {
		return false
	}
	return true
}

func writeRows(w http.ResponseWriter, rows []policyRow) {
	if rows == nil {
		rows = []policyRow{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func newTestStore(t *testing.T) (*Store, *fakeREST) {
	t.Helper()
	fake := &fakeREST{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client, err := database.NewClient(database.Config{URL: srv.URL, ServiceKey: "key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	store, err := New(client, "brokerage-prod", "user-1", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, fake
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, "d", "u", nil); err == nil {
		t.Fatal("nil client must be rejected")
	}
	client, _ := database.NewClient(database.Config{URL: "https://example.supabase.co", ServiceKey: "key"})
	if _, err := New(client, "", "u", nil); err == nil {
		t.Fatal("missing deployment must be rejected")
	}
	if _, err := New(client, "d", "", nil); err == nil {
		t.Fatal("missing user must be rejected")
	}
}

func TestCreateScopesNamespace(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)

	created, err := store.CreatePolicy(ctx, policy.Policy{Number: "PN-1", TotalAmount: "100"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "generated-1" {
		t.Fatalf("id = %q", created.ID)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("server-stamped creation time was dropped")
	}
	rows := fake.snapshot()
	if len(rows) != 1 || rows[0].Namespace != "artifacts/brokerage-prod/users/user-1" {
		t.Fatalf("stored rows = %+v", rows)
	}
}

func TestGetMissingPolicy(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.GetPolicy(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if _, err := store.CreatePolicy(ctx, policy.Policy{Number: "PN-1", TotalAmount: "100"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := store.ListPolicies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Number != "PN-1" {
		t.Fatalf("list = %+v", list)
	}
}

func TestDeleteScopesToNamespace(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)

	// A row belonging to another user must survive this store's delete.
	fake.seed(policyRow{ID: "foreign", Namespace: "artifacts/brokerage-prod/users/user-2"})

	created, err := store.CreatePolicy(ctx, policy.Policy{Number: "PN-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.DeletePolicy(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows := fake.snapshot()
	if len(rows) != 1 || rows[0].ID != "foreign" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestWatchPoliciesPolls(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	store.WithPollInterval(10 * time.Millisecond)

	snapshots := make(chan []policy.Policy, 16)
	cancel, err := store.WatchPolicies(ctx, func(ps []policy.Policy) {
		snapshots <- ps
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	// The initial refresh delivers before the first tick.
	select {
	case got := <-snapshots:
		if len(got) != 0 {
			t.Fatalf("initial snapshot = %+v", got)
		}
	default:
		t.Fatal("initial snapshot missing")
	}

	if _, err := store.CreatePolicy(ctx, policy.Policy{Number: "PN-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-snapshots:
			if len(got) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("poll never delivered the new policy")
		}
	}
}
