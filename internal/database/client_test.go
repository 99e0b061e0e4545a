package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{ServiceKey: "key"}); err == nil {
		t.Fatal("missing URL must be rejected")
	}
	if _, err := NewClient(Config{URL: "https://example.supabase.co"}); err == nil {
		t.Fatal("missing service key must be rejected")
	}
}

func TestRequestHeadersAndPath(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotAPIKey, gotPrefer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		gotPrefer = r.Header.Get("Prefer")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL + "/", ServiceKey: "service-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	body, err := client.Request(context.Background(), http.MethodGet, "policies", nil, "id=eq.42")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(body) != "[]" {
		t.Fatalf("body = %q", body)
	}
	if gotPath != "/rest/v1/policies" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "id=eq.42" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer service-key" || gotAPIKey != "service-key" {
		t.Fatalf("auth headers = %q / %q", gotAuth, gotAPIKey)
	}
	if gotPrefer != "return=representation" {
		t.Fatalf("prefer = %q", gotPrefer)
	}
}

func TestRequestErrorSurfacesVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"duplicate key value"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, ServiceKey: "key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Request(context.Background(), http.MethodPost, "policies", map[string]string{"id": "x"}, "")
	if err == nil {
		t.Fatal("4xx must surface as an error")
	}
	want := `supabase API error 409: {"message":"duplicate key value"}`
	if err.Error() != want {
		t.Fatalf("err = %q, want %q", err.Error(), want)
	}
}

func TestRequestTruncatesHugeErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 64<<10)))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, ServiceKey: "key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Request(context.Background(), http.MethodGet, "policies", nil, "")
	if err == nil {
		t.Fatal("5xx must surface as an error")
	}
	if !strings.HasSuffix(err.Error(), "...(truncated)") {
		t.Fatalf("huge error body should be truncated, got %d bytes", len(err.Error()))
	}
}
