// Package httpapi exposes the console REST API. Handlers stay thin:
// decode, call the service, map the error class to a status code.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/agencydesk/agencydesk/internal/app"
	"github.com/agencydesk/agencydesk/internal/app/batch"
	"github.com/agencydesk/agencydesk/internal/app/dates"
	"github.com/agencydesk/agencydesk/internal/app/domain/customer"
	"github.com/agencydesk/agencydesk/internal/app/services/ledgers"
	"github.com/agencydesk/agencydesk/internal/app/services/policies"
	"github.com/agencydesk/agencydesk/internal/app/storage"
	"github.com/agencydesk/agencydesk/internal/app/validation"
	"github.com/agencydesk/agencydesk/internal/auth"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	identity *auth.Client
	log      *logger.Logger
}

// NewHandler returns a router exposing the console REST API. identity may
// be nil, in which case the auth endpoints are not registered.
func NewHandler(application *app.Application, identity *auth.Client, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, identity: identity, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	r.HandleFunc("/policies", h.createPolicy).Methods(http.MethodPost)
	r.HandleFunc("/policies", h.listPolicies).Methods(http.MethodGet)
	r.HandleFunc("/policies/{id}", h.getPolicy).Methods(http.MethodGet)
	r.HandleFunc("/policies/{id}", h.updatePolicy).Methods(http.MethodPut)
	r.HandleFunc("/policies/{id}", h.deletePolicy).Methods(http.MethodDelete)
	r.HandleFunc("/policies/{id}/entries", h.policyEntries).Methods(http.MethodGet)

	r.HandleFunc("/entries", h.createEntry).Methods(http.MethodPost)
	r.HandleFunc("/entries", h.listEntries).Methods(http.MethodGet)
	r.HandleFunc("/entries/{id}", h.deleteEntry).Methods(http.MethodDelete)

	r.HandleFunc("/customers", h.listCustomers).Methods(http.MethodGet)
	r.HandleFunc("/customers/{idNumber}", h.getCustomer).Methods(http.MethodGet)
	r.HandleFunc("/customers/{idNumber}", h.updateCustomer).Methods(http.MethodPut)

	r.HandleFunc("/reports/dashboard", h.dashboard).Methods(http.MethodGet)
	r.HandleFunc("/reports/financial", h.financial).Methods(http.MethodGet)

	if identity != nil {
		r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
		r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
		r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	}

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"synced": h.app.Records.Synced(),
	})
}

// Policies ---------------------------------------------------------------------

func (h *handler) createPolicy(w http.ResponseWriter, r *http.Request) {
	var in policies.Input
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.app.Policies.Add(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	filter, sel, err := queryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := h.app.Policies.Query(r.Context(), filter, sel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Policies.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	var in policies.Input
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.app.Policies.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, http.StatusBadRequest, errConfirmRequired)
		return
	}
	result, err := h.app.Policies.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeBatch(w, result)
}

func (h *handler) policyEntries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.app.Policies.Get(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	entries, err := h.app.Ledgers.ListForPolicy(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Ledger entries ---------------------------------------------------------------

func (h *handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var in ledgers.Input
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := h.app.Ledgers.Add(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Ledgers.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, http.StatusBadRequest, errConfirmRequired)
		return
	}
	if err := h.app.Ledgers.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Customers --------------------------------------------------------------------

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Customers.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Customers.Get(r.Context(), mux.Vars(r)["idNumber"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var upd customer.Update
	if err := decodeJSON(r.Body, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.app.Customers.UpdateAcross(r.Context(), mux.Vars(r)["idNumber"], upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeBatch(w, result)
}

// Reports ----------------------------------------------------------------------

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.Reports.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) financial(w http.ResponseWriter, r *http.Request) {
	window, err := queryWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := h.app.Reports.Financial(r.Context(), window)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Auth -------------------------------------------------------------------------

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(r.Body, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	session, err := h.identity.Register(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	h.rescope(r, session.User.ID)
	writeJSON(w, http.StatusCreated, session)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(r.Body, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	session, err := h.identity.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	h.rescope(r, session.User.ID)
	writeJSON(w, http.StatusOK, session)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromContext(r.Context())
	if token == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("not signed in"))
		return
	}
	if err := h.identity.Logout(r.Context(), token); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	h.rescope(r, "")
	w.WriteHeader(http.StatusNoContent)
}

// rescope re-subscribes the record cache to the signed-in user's rows. An
// empty user tears the subscriptions down.
func (h *handler) rescope(r *http.Request, userID string) {
	if err := h.app.Records.SetUser(r.Context(), userID); err != nil {
		h.log.WithError(err).Warn("record cache rescope failed")
	}
}

// Helpers ----------------------------------------------------------------------

var errConfirmRequired = errors.New("confirm=true is required for delete")

func confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}

func queryFilter(r *http.Request) (policies.Filter, policies.Sort, error) {
	q := r.URL.Query()
	f := policies.Filter{
		Type:           q.Get("type"),
		CustomerName:   q.Get("customer"),
		Number:         q.Get("number"),
		PaidByCustomer: q.Get("paid_by_customer"),
		PaidToInsurer:  q.Get("paid_to_insurer"),
	}
	var err error
	if f.ValidFrom, err = queryDate(q.Get("valid_from")); err != nil {
		return policies.Filter{}, policies.Sort{}, err
	}
	if f.ValidTo, err = queryDate(q.Get("valid_to")); err != nil {
		return policies.Filter{}, policies.Sort{}, err
	}

	sel := policies.Sort{Key: policies.SortKey(q.Get("sort"))}
	if sel.Key == "" {
		sel.Key = policies.SortByCreatedAt
	}
	switch q.Get("order") {
	case "", "asc":
	case "desc":
		sel.Descending = true
	default:
		return policies.Filter{}, policies.Sort{}, fmt.Errorf("order must be asc or desc")
	}
	return f, sel, nil
}

func queryWindow(r *http.Request) (dates.Range, error) {
	q := r.URL.Query()
	var window dates.Range
	var err error
	if window.Start, err = queryDate(q.Get("start")); err != nil {
		return dates.Range{}, err
	}
	if window.End, err = queryDate(q.Get("end")); err != nil {
		return dates.Range{}, err
	}
	if !window.Start.IsZero() && !window.End.IsZero() && window.End.Before(window.Start) {
		return dates.Range{}, fmt.Errorf("end must not precede start")
	}
	return window, nil
}

func queryDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(policies.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}

// writeBatch reports a fan-out result: 200 when every write landed, 207
// when some did not so the caller can inspect the per-item outcomes.
func writeBatch(w http.ResponseWriter, result *batch.Result) {
	status := http.StatusOK
	if !result.AllOK() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

// writeServiceError maps an error from the service layer: invalid input is
// the caller's fault, a missing record is 404, anything else came from the
// external store and surfaces verbatim as a bad gateway.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case validation.IsValidation(err):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
