package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-signing-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func echoUser(t *testing.T) (http.Handler, **User) {
	t.Helper()
	var captured *User
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &captured
}

func TestHandlerPassesThroughWithoutHeader(t *testing.T) {
	m := NewMiddleware(Config{JWTSecret: testSecret})
	next, captured := echoUser(t)

	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if *captured != nil {
		t.Fatal("anonymous request must carry no user")
	}
}

func TestHandlerValidatesLocally(t *testing.T) {
	m := NewMiddleware(Config{JWTSecret: testSecret})
	next, captured := echoUser(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-1",
		"email": "maria@example.com",
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/policies", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	user := *captured
	if user == nil || user.ID != "user-1" || user.Email != "maria@example.com" {
		t.Fatalf("user = %+v", user)
	}
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	// No remote fallback configured, so a bad signature is terminal.
	m := NewMiddleware(Config{JWTSecret: testSecret, URL: "http://127.0.0.1:0"})
	next, _ := echoUser(t)

	token := signToken(t, "a-different-secret", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/policies", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandlerRejectsMalformedHeader(t *testing.T) {
	m := NewMiddleware(Config{JWTSecret: testSecret})
	next, _ := echoUser(t)

	req := httptest.NewRequest(http.MethodGet, "/policies", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandlerRemoteFallback(t *testing.T) {
	identity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"user-9","email":"ivan@example.com"}`))
	}))
	defer identity.Close()

	// No local secret forces the REST fallback.
	m := NewMiddleware(Config{URL: identity.URL, AnonKey: "anon"})
	next, captured := echoUser(t)

	req := httptest.NewRequest(http.MethodGet, "/policies", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	user := *captured
	if user == nil || user.ID != "user-9" {
		t.Fatalf("user = %+v", user)
	}
}

func TestRequireAuth(t *testing.T) {
	next, _ := echoUser(t)
	rec := httptest.NewRecorder()
	RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
