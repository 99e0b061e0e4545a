package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/agencydesk/agencydesk/internal/app"
	"github.com/agencydesk/agencydesk/internal/app/batch"
	"github.com/agencydesk/agencydesk/internal/app/domain/policy"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Application) {
	t.Helper()
	application, err := app.New(app.Stores{}, nil)
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	srv := httptest.NewServer(NewHandler(application, nil, nil))
	t.Cleanup(srv.Close)
	return srv, application
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func policyPayload(number string) map[string]any {
	return map[string]any{
		"policy_type":   "New Policy",
		"policy_number": number,
		"policy_date":   "2026-01-15",
		"valid_until":   "2027-01-14",
		"total_amount":  "300",
		"commission":    "30",
		"customer": map[string]any{
			"first_name": "Maria",
			"last_name":  "Kovachev",
			"id_number":  "A1",
		},
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestPolicyCreateAndGet(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/policies", policyPayload("PN-100"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[policy.Policy](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "PN-100", created.Number)

	got := doJSON(t, http.MethodGet, srv.URL+"/policies/"+created.ID, nil)
	require.Equal(t, http.StatusOK, got.StatusCode)
}

func TestPolicyCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := policyPayload("PN-100")
	payload["total_amount"] = ""

	resp := doJSON(t, http.MethodPost, srv.URL+"/policies", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Contains(t, body["error"], "total amount")
}

func TestPolicyNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/policies/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPolicyListFilterAndSort(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, n := range []string{"PN-1", "PN-2"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/policies", policyPayload(n))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/policies?number=PN-2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]policy.Policy](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "PN-2", list[0].Number)

	resp = doJSON(t, http.MethodGet, srv.URL+"/policies?sort=policy_number&order=desc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = decode[[]policy.Policy](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, "PN-2", list[0].Number)

	resp = doJSON(t, http.MethodGet, srv.URL+"/policies?order=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPolicyDeleteRequiresConfirmation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/policies", policyPayload("PN-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[policy.Policy](t, resp)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/policies/"+created.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/policies/"+created.ID+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[batch.Result](t, resp)
	assert.Equal(t, "delete policy cascade", result.Operation)

	resp = doJSON(t, http.MethodGet, srv.URL+"/policies/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPolicyDeleteCascade(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/policies", policyPayload("PN-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[policy.Policy](t, resp)

	entry := map[string]any{"type": "Payment", "date": "2026-02-01", "amount": "50", "policy_id": created.ID}
	resp = doJSON(t, http.MethodPost, srv.URL+"/entries", entry)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/policies/"+created.ID+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[batch.Result](t, resp)
	assert.Len(t, result.Items, 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/entries", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]map[string]any](t, resp)
	assert.Empty(t, entries)
}

func TestEntryLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/entries", map[string]any{
		"type": "Expense", "date": "2026-04-05", "amount": "40", "reason": "office supplies",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/entries/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/entries/"+id+"?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/entries", map[string]any{
		"type": "Refund", "date": "2026-04-05", "amount": "40",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCustomerViewsAndUpdate(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, n := range []string{"PN-1", "PN-2"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/policies", policyPayload(n))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/customers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	customers := decode[[]map[string]any](t, resp)
	require.Len(t, customers, 1)
	assert.Equal(t, float64(2), customers[0]["policies_count"])

	resp = doJSON(t, http.MethodPut, srv.URL+"/customers/A1", map[string]any{
		"first_name": "Maria", "last_name": "Dimitrova",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[batch.Result](t, resp)
	assert.Len(t, result.Items, 2)

	resp = doJSON(t, http.MethodGet, srv.URL+"/customers/A1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	row := decode[map[string]any](t, resp)
	assert.Equal(t, "Dimitrova", row["last_name"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/customers/ZZ", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReports(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/policies", policyPayload("PN-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/entries", map[string]any{
		"type": "Expense", "date": "2026-04-05", "amount": "40",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dashboard := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), dashboard["total_policies"])
	assert.Equal(t, float64(300), dashboard["total_policy_value"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/reports/financial", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	financial := decode[map[string]any](t, resp)
	assert.Equal(t, float64(40), financial["total_expenses"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/reports/financial?start=garbage", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/reports/financial?start=2026-05-01&end=2026-04-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := policyPayload("PN-1")
	payload["unexpected"] = true

	resp := doJSON(t, http.MethodPost, srv.URL+"/policies", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
